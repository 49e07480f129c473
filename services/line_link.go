package services

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const (
	LineLinkTokenTTL    = 15 * time.Minute
	lineLinkTokenPrefix = "line:link:"
)

// LineLinkTokens issues one-time codes a parent sends to the LINE bot as
// "LINK <token>" to attach their LINE account.
type LineLinkTokens interface {
	Issue(ctx context.Context, userID uint) (string, error)
	// Consume returns the user the token was issued to and deletes it.
	Consume(ctx context.Context, token string) (uint, bool, error)
	TTL() time.Duration
}

// NewLineLinkTokens keeps tokens in Redis when available, otherwise in process memory
func NewLineLinkTokens(client *redis.Client, ttl time.Duration) LineLinkTokens {
	if ttl <= 0 {
		ttl = LineLinkTokenTTL
	}
	if client == nil {
		return NewMemoryLineLinkTokens(ttl)
	}
	return &RedisLineLinkTokens{client: client, ttl: ttl}
}

func newLinkToken() string {
	return strings.ToUpper(uuid.NewString())
}

func normalizeLinkToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

// RedisLineLinkTokens stores token -> user id with an expiry
type RedisLineLinkTokens struct {
	client *redis.Client
	ttl    time.Duration
}

func (r *RedisLineLinkTokens) TTL() time.Duration { return r.ttl }

func (r *RedisLineLinkTokens) Issue(ctx context.Context, userID uint) (string, error) {
	token := newLinkToken()
	if err := r.client.Set(ctx, lineLinkTokenPrefix+token, strconv.FormatUint(uint64(userID), 10), r.ttl).Err(); err != nil {
		return "", fmt.Errorf("store line link token: %w", err)
	}
	return token, nil
}

func (r *RedisLineLinkTokens) Consume(ctx context.Context, token string) (uint, bool, error) {
	token = normalizeLinkToken(token)
	if token == "" {
		return 0, false, nil
	}
	raw, err := r.client.GetDel(ctx, lineLinkTokenPrefix+token).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("read line link token: %w", err)
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("corrupt line link token: %w", err)
	}
	return uint(id), true, nil
}

// MemoryLineLinkTokens is the single-instance fallback used without Redis
type MemoryLineLinkTokens struct {
	mu     sync.Mutex
	ttl    time.Duration
	now    func() time.Time
	tokens map[string]memoryLinkToken
}

type memoryLinkToken struct {
	userID  uint
	expires time.Time
}

func NewMemoryLineLinkTokens(ttl time.Duration) *MemoryLineLinkTokens {
	return &MemoryLineLinkTokens{ttl: ttl, now: time.Now, tokens: map[string]memoryLinkToken{}}
}

func (m *MemoryLineLinkTokens) TTL() time.Duration { return m.ttl }

func (m *MemoryLineLinkTokens) Issue(_ context.Context, userID uint) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	for k, v := range m.tokens {
		if now.After(v.expires) {
			delete(m.tokens, k)
		}
	}
	token := newLinkToken()
	m.tokens[token] = memoryLinkToken{userID: userID, expires: now.Add(m.ttl)}
	return token, nil
}

func (m *MemoryLineLinkTokens) Consume(_ context.Context, token string) (uint, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	token = normalizeLinkToken(token)
	t, ok := m.tokens[token]
	if !ok {
		return 0, false, nil
	}
	delete(m.tokens, token)
	if m.now().After(t.expires) {
		return 0, false, nil
	}
	return t.userID, true, nil
}
