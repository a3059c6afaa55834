package infra

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"api-demo/middleware/ratelimit/domain"
)

// BucketStore implementa domain.BurstStore com um rate.Limiter por chave.
//
// Uma tentativa negada não consome token: a reserva é cancelada e Wait informa
// quanto falta para o próximo token.
type BucketStore struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	limit rate.Limit
	burst int

	idleTTL      time.Duration
	cleanupEvery time.Duration
	now          func() time.Time
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

var _ domain.BurstStore = (*BucketStore)(nil)

type BucketOption func(*BucketStore)

// WithIdleTTL define após quanto tempo sem uso o bucket de uma chave é descartado.
func WithIdleTTL(d time.Duration) BucketOption {
	return func(s *BucketStore) { s.idleTTL = d }
}

func WithCleanupEvery(d time.Duration) BucketOption {
	return func(s *BucketStore) { s.cleanupEvery = d }
}

func WithBucketClock(now func() time.Time) BucketOption {
	return func(s *BucketStore) { s.now = now }
}

func NewBucketStore(rps float64, burst int, opts ...BucketOption) *BucketStore {
	s := &BucketStore{
		buckets:      make(map[string]*bucket),
		limit:        rate.Limit(rps),
		burst:        burst,
		idleTTL:      15 * time.Minute,
		cleanupEvery: 2 * time.Minute,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *BucketStore) Burst() int { return s.burst }

func (s *BucketStore) Take(key string) domain.BurstTake {
	now := s.now()
	lim := s.touch(key, now)

	res := lim.ReserveN(now, 1)
	if !res.OK() {
		return domain.BurstTake{Tokens: lim.TokensAt(now)}
	}
	if wait := res.DelayFrom(now); wait > 0 {
		res.CancelAt(now)
		return domain.BurstTake{Tokens: lim.TokensAt(now), Wait: wait}
	}
	return domain.BurstTake{Allowed: true, Tokens: lim.TokensAt(now)}
}

func (s *BucketStore) touch(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(s.limit, s.burst)}
		s.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

// Len retorna o número de chaves com bucket ativo.
func (s *BucketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// Cleanup descarta buckets ociosos e retorna quantos removeu. Um bucket ocioso por
// idleTTL já está cheio de novo, então descartá-lo não muda nenhuma decisão futura
// enquanto idleTTL >= burst/rps.
func (s *BucketStore) Cleanup() int {
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for k, b := range s.buckets {
		if b.lastSeen.Before(cutoff) {
			delete(s.buckets, k)
			removed++
		}
	}
	return removed
}

// StartJanitor roda Cleanup a cada cleanupEvery até ctx ser cancelado.
func (s *BucketStore) StartJanitor(ctx context.Context) {
	if s.cleanupEvery <= 0 {
		return
	}
	go func() {
		t := time.NewTicker(s.cleanupEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.Cleanup()
			}
		}
	}()
}
