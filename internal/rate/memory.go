package rate

import (
	"context"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryLimiter: misma ventana fija que RedisLimiter, en memoria del proceso.
type MemoryLimiter struct {
	c      *gocache.Cache
	max    int64
	window time.Duration
}

func NewMemoryLimiter(max int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		c:      gocache.New(window, 2*window),
		max:    int64(max),
		window: window,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	// Add falla si la ventana ya existe; en ese caso solo se incrementa.
	_ = l.c.Add(key, int64(0), l.window)
	hits, err := l.c.IncrementInt64(key, 1)
	if err != nil {
		// La ventana expiró entre Add e Increment: empieza una nueva.
		l.c.Set(key, int64(1), l.window)
		hits = 1
	}

	var ttl time.Duration
	if _, exp, ok := l.c.GetWithExpiration(key); ok && !exp.IsZero() {
		ttl = time.Until(exp)
	}
	return newResult(hits, l.max, ttl, l.window), nil
}
