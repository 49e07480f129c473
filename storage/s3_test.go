package storage

import (
	"context"
	"io"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectKey(t *testing.T) {
	at := time.Date(2025, time.September, 8, 10, 0, 0, 0, time.UTC)
	key := ObjectKey("/exports/attendance/", "math sept.xlsx", at)
	assert.Regexp(t, regexp.MustCompile(`^exports/attendance/2025/09/[0-9a-f-]{36}_math_sept\.xlsx$`), key)
	assert.NotEqual(t, key, ObjectKey("exports/attendance", "math sept.xlsx", at))
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, m.Put(ctx, "a/b", "text/plain", []byte("hello")))

	r, err := m.Get(ctx, "a/b")
	require.NoError(t, err)
	defer r.Close()
	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(b))
	assert.Equal(t, "text/plain", m.ContentType("a/b"))
	assert.Equal(t, []string{"a/b"}, m.Keys())

	_, err = m.Get(ctx, "missing")
	assert.Error(t, err)
}
