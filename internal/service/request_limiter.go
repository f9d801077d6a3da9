package service

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RequestLimiter limita la frecuencia de solicitudes por email.
type RequestLimiter interface {
	Allow(ctx context.Context, email string) bool
}

type memoryRequestLimiter struct {
	mu        sync.Mutex
	window    time.Duration
	max       int
	hits      map[string][]time.Time
	lastSweep time.Time
	now       func() time.Time
}

// NewRequestLimiter crea un limitador en memoria, válido para una sola instancia.
func NewRequestLimiter(window time.Duration, max int) RequestLimiter {
	if max <= 0 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &memoryRequestLimiter{
		window: window,
		max:    max,
		hits:   make(map[string][]time.Time),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func (l *memoryRequestLimiter) Allow(_ context.Context, email string) bool {
	key := normalizeEmail(email)
	if key == "" {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	cutoff := now.Add(-l.window)
	if now.Sub(l.lastSweep) >= l.window {
		l.sweep(cutoff)
		l.lastSweep = now
	}

	kept := l.hits[key][:0]
	for _, ts := range l.hits[key] {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	if len(kept) >= l.max {
		l.hits[key] = kept
		return false
	}
	l.hits[key] = append(kept, now)
	return true
}

// sweep borra los emails cuyo último pedido quedó fuera de la ventana.
func (l *memoryRequestLimiter) sweep(cutoff time.Time) {
	for key, entries := range l.hits {
		if len(entries) == 0 || !entries[len(entries)-1].After(cutoff) {
			delete(l.hits, key)
		}
	}
}

// El PTTL repara claves que quedaron sin expiración si un PEXPIRE anterior falló.
const forgotPasswordScript = `
local current = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`

const redisLimiterTimeout = 500 * time.Millisecond

type redisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
}

type redisRequestLimiter struct {
	client redisEvaler
	logger *zap.Logger
	window time.Duration
	max    int
	prefix string
}

// NewRedisRequestLimiter comparte el conteo entre instancias. En Redis se
// guarda el digest del email, nunca la dirección.
func NewRedisRequestLimiter(client *redis.Client, logger *zap.Logger, prefix string, window time.Duration, max int) RequestLimiter {
	if client == nil {
		return nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if window <= 0 {
		window = time.Minute
	}
	if max <= 0 {
		max = 1
	}
	if prefix == "" {
		prefix = "auth:forgot:"
	}
	return &redisRequestLimiter{
		client: client,
		logger: logger,
		window: window,
		max:    max,
		prefix: prefix,
	}
}

func (l *redisRequestLimiter) key(email string) string {
	return l.prefix + HashToken(email)
}

// Allow falla abierto: si Redis no responde, el pedido pasa y queda en el log.
func (l *redisRequestLimiter) Allow(ctx context.Context, email string) bool {
	if l == nil || l.client == nil {
		return true
	}
	email = normalizeEmail(email)
	if email == "" {
		return false
	}
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithTimeout(ctx, redisLimiterTimeout)
	defer cancel()

	windowMs := l.window.Milliseconds()
	if windowMs <= 0 {
		windowMs = time.Minute.Milliseconds()
	}
	count, err := l.client.Eval(ctx, forgotPasswordScript, []string{l.key(email)}, windowMs).Int()
	if err != nil {
		if l.logger != nil {
			l.logger.Warn("forgot password limiter unavailable", zap.Error(err))
		}
		return true
	}
	return count <= l.max
}
