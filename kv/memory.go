package kv

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
)

// MemoryStore é uma implementação de Store em memória com expiração preguiçosa
// (a chave só é removida quando acessada depois de expirar).
//
// Útil para testes (relógio injetável, injeção de falhas) e para rodar sem Redis.
// Não é compartilhada entre processos, portanto não serve para múltiplas réplicas.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]memEntry
	now     func() time.Time
	failErr error
}

type memEntry struct {
	value     string
	expiresAt time.Time // zero = sem expiração
}

var _ Store = (*MemoryStore)(nil)

type MemoryOption func(*MemoryStore)

// WithClock substitui time.Now (ex: relógio fake em testes).
func WithClock(now func() time.Time) MemoryOption {
	return func(s *MemoryStore) { s.now = now }
}

func NewMemoryStore(opts ...MemoryOption) *MemoryStore {
	s := &MemoryStore{
		entries: make(map[string]memEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailWith faz todas as operações seguintes falharem com err (embrulhado em ErrUnavailable).
// nil restaura o funcionamento normal.
func (s *MemoryStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func (s *MemoryStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx, "get", key); err != nil {
		return "", false, err
	}
	ent, ok := s.lookup(key)
	if !ok {
		return "", false, nil
	}
	return ent.value, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx, "set", key); err != nil {
		return err
	}
	ent := memEntry{value: value}
	if ttl > 0 {
		ent.expiresAt = s.now().Add(ttl)
	}
	s.entries[key] = ent
	return nil
}

func (s *MemoryStore) Incr(ctx context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx, "incr", key); err != nil {
		return 0, err
	}
	ent, ok := s.lookup(key)
	var n int64
	if ok {
		var err error
		n, err = strconv.ParseInt(ent.value, 10, 64)
		if err != nil {
			return 0, unavailable("incr", key, errors.New("value is not an integer"))
		}
	}
	n++
	// INCR preserva o TTL existente.
	ent.value = strconv.FormatInt(n, 10)
	s.entries[key] = ent
	return n, nil
}

func (s *MemoryStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx, "expire", key); err != nil {
		return err
	}
	ent, ok := s.lookup(key)
	if !ok {
		return nil
	}
	if ttl <= 0 {
		delete(s.entries, key)
		return nil
	}
	ent.expiresAt = s.now().Add(ttl)
	s.entries[key] = ent
	return nil
}

func (s *MemoryStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.check(ctx, "ttl", key); err != nil {
		return 0, err
	}
	ent, ok := s.lookup(key)
	if !ok || ent.expiresAt.IsZero() {
		return 0, nil
	}
	return ent.expiresAt.Sub(s.now()), nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check(ctx, "ping", "")
}

// lookup aplica a expiração preguiçosa. Chamar com mu travado.
func (s *MemoryStore) lookup(key string) (memEntry, bool) {
	ent, ok := s.entries[key]
	if !ok {
		return memEntry{}, false
	}
	if !ent.expiresAt.IsZero() && !s.now().Before(ent.expiresAt) {
		delete(s.entries, key)
		return memEntry{}, false
	}
	return ent, true
}

func (s *MemoryStore) check(ctx context.Context, op, key string) error {
	if err := ctx.Err(); err != nil {
		return unavailable(op, key, err)
	}
	if s.failErr != nil {
		return fmt.Errorf("%w: %s %q: %w", ErrUnavailable, op, key, s.failErr)
	}
	return nil
}
