package limiter

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"
)

// Guard throttles repeat work per worksheet. Two mechanisms:
//   - a local in-process semaphore so two workers never render the same
//     worksheet concurrently
//   - a Redis-backed cooldown with exponential backoff for worksheets
//     whose exports keep failing
type Guard struct {
	rdb         *redis.Client
	baseBackoff time.Duration
	maxBackoff  time.Duration
	mu          sync.Mutex
	sem         map[string]chan struct{}
}

type Options struct {
	RedisURL    string
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
}

func New(opts Options) (*Guard, error) {
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = 30 * time.Second
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = 5 * time.Minute
	}
	ro, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		return nil, err
	}
	c := redis.NewClient(ro)
	if err := c.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	return &Guard{rdb: c, baseBackoff: opts.BaseBackoff, maxBackoff: opts.MaxBackoff, sem: map[string]chan struct{}{}}, nil
}

func (g *Guard) key(docID string) string {
	return fmt.Sprintf("cooldown:%s", strings.ToLower(docID))
}

// IsCoolingDown returns true while a failing worksheet is in cooldown.
func (g *Guard) IsCoolingDown(ctx context.Context, docID string) bool {
	ts, err := g.rdb.Get(ctx, g.key(docID)).Int64()
	if err != nil {
		return false
	}
	return time.Now().Unix() < ts
}

// MarkFailure sets/extends the cooldown with exponential backoff per failure.
func (g *Guard) MarkFailure(ctx context.Context, docID string) {
	k := g.key(docID)
	cntKey := k + ":attempts"
	attempts, _ := g.rdb.Incr(ctx, cntKey).Result()
	if attempts < 1 {
		attempts = 1
	}
	// backoff doubles up to maxBackoff
	d := g.baseBackoff * (1 << (attempts - 1))
	if d > g.maxBackoff || d <= 0 {
		d = g.maxBackoff
	}
	until := time.Now().Add(d).Unix()
	_ = g.rdb.Set(ctx, k, until, d).Err()
	_ = g.rdb.Expire(ctx, cntKey, g.maxBackoff*4).Err()
}

// Reset clears the cooldown after a successful export.
func (g *Guard) Reset(ctx context.Context, docID string) {
	k := g.key(docID)
	_ = g.rdb.Del(ctx, k, k+":attempts").Err()
}

// Allow tries to reserve the in-process slot for a worksheet. Returns a
// release function and true if allowed; otherwise nil work should be
// deferred and the job re-queued.
func (g *Guard) Allow(docID string) (func(), bool) {
	key := strings.ToLower(docID)
	g.mu.Lock()
	ch, ok := g.sem[key]
	if !ok {
		ch = make(chan struct{}, 1)
		g.sem[key] = ch
	}
	g.mu.Unlock()
	select {
	case ch <- struct{}{}:
		return func() { <-ch }, true
	default:
		return func() {}, false
	}
}

func (g *Guard) Close() error { return g.rdb.Close() }
