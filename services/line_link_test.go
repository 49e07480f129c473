package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLineLinkTokens(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, time.September, 12, 9, 0, 0, 0, time.UTC)
	tokens := NewMemoryLineLinkTokens(10 * time.Minute)
	tokens.now = func() time.Time { return now }

	first, err := tokens.Issue(ctx, 3)
	require.NoError(t, err)
	second, err := tokens.Issue(ctx, 3)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	tests := []struct {
		name    string
		token   string
		advance time.Duration
		userID  uint
		ok      bool
	}{
		{"unknown", "S-0001", 0, 0, false},
		{"empty", "", 0, 0, false},
		{"lower case is accepted", " " + strings.ToLower(first) + " ", 0, 3, true},
		{"single use", first, 0, 0, false},
		{"expired", second, 11 * time.Minute, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now = now.Add(tt.advance)
			userID, ok, err := tokens.Consume(ctx, tt.token)
			require.NoError(t, err)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.userID, userID)
		})
	}
}

func TestNewLineLinkTokensFallsBackToMemory(t *testing.T) {
	tokens := NewLineLinkTokens(nil, 0)
	_, ok := tokens.(*MemoryLineLinkTokens)
	assert.True(t, ok)
	assert.Equal(t, LineLinkTokenTTL, tokens.TTL())
}
