package application

import (
	"context"
	"fmt"
	"time"

	"github.com/ssgreg/logf"

	"api-demo/logging"
	"api-demo/middleware/ratelimit/domain"
)

const (
	DefaultLimit  = 5
	DefaultWindow = 60 * time.Second
	DefaultPrefix = "rate_limit"
)

// Service implementa o rate limit de janela fixa sobre um CounterStore.
//
// Cada cliente tem um contador em "{Prefix}:{clientId}". O TTL (Window) é definido
// apenas pelo incremento que cria a chave (count == 1); incrementos seguintes não
// renovam o TTL. Quando o store expira a chave, a próxima chamada reinicia a janela.
//
// Ele não sabe nada sobre HTTP (headers/status), apenas retorna uma decisão.
type Service struct {
	Store  domain.CounterStore
	Limit  int
	Window time.Duration
	Prefix string
}

// CheckAndRecord registra a requisição do cliente e decide allow/deny.
//
// Falha do store retorna erro embrulhando domain.ErrStoreUnavailable; nesse caso a
// decisão não existe (nem allow nem deny).
//
// Se o EXPIRE falhar (ou o processo cair antes dele), o contador fica sem expiração.
// O caminho de bloqueio detecta isso (TTL <= 0) e reaplica a janela, senão o
// cliente ficaria bloqueado para sempre.
func (s Service) CheckAndRecord(ctx context.Context, clientID domain.Key) (domain.Decision, error) {
	if clientID == "" {
		return domain.Decision{}, domain.ErrEmptyKey
	}
	if s.Store == nil {
		return domain.Decision{}, fmt.Errorf("%w: no store configured", domain.ErrStoreUnavailable)
	}
	limit, window := s.limit(), s.window()
	key := s.StoreKey(clientID)

	count, err := s.Store.Incr(ctx, key)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("%w: increment %q: %w", domain.ErrStoreUnavailable, key, err)
	}
	if count == 1 {
		if err := s.Store.Expire(ctx, key, window); err != nil {
			return domain.Decision{}, fmt.Errorf("%w: expire %q: %w", domain.ErrStoreUnavailable, key, err)
		}
	}

	dec := domain.Decision{Limit: limit, Count: count}
	if count <= int64(limit) {
		dec.Allowed = true
		dec.Remaining = limit - int(count)
		return dec, nil
	}

	ttl, err := s.Store.TTL(ctx, key)
	if err != nil {
		return domain.Decision{}, fmt.Errorf("%w: ttl %q: %w", domain.ErrStoreUnavailable, key, err)
	}
	dec.RetryAfter = ttl
	if ttl <= 0 {
		dec.RetryAfter = window
		// best-effort: o deny já está decidido, falha aqui só gera log.
		if err := s.Store.Expire(ctx, key, window); err != nil {
			logging.FromContext(ctx).Warn("failed to restore rate limit window",
				logf.String("key", key), logf.Error(err))
		}
	}
	return dec, nil
}

// StoreKey monta a chave do contador para o cliente.
func (s Service) StoreKey(clientID domain.Key) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return prefix + ":" + string(clientID)
}

func (s Service) limit() int {
	if s.Limit <= 0 {
		return DefaultLimit
	}
	return s.Limit
}

func (s Service) window() time.Duration {
	if s.Window <= 0 {
		return DefaultWindow
	}
	return s.Window
}
