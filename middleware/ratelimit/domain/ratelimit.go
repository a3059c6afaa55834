package domain

// Camada de domínio do rate limit.
//
// Regras e contratos (interfaces/tipos) sem dependência de net/http.

import (
	"context"
	"errors"
	"time"
)

type Key string

var (
	// ErrStoreUnavailable indica que a decisão não pôde ser avaliada (falha do store).
	// Não é um "deny": o chamador deve responder como falha de serviço.
	ErrStoreUnavailable = errors.New("ratelimit: store unavailable")

	// ErrEmptyKey indica chave de cliente vazia.
	ErrEmptyKey = errors.New("ratelimit: empty client key")
)

// CounterStore é o subconjunto do key-value store usado pela janela fixa.
//
// Incr precisa ser atômico no store: duas chamadas concorrentes nunca observam o mesmo valor.
type CounterStore interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// BurstTake é o resultado de consumir um token do bucket de uma chave.
type BurstTake struct {
	Allowed bool

	// Tokens que sobram no bucket após a tentativa (pode ser fracionário).
	Tokens float64

	// Wait até haver um token, quando !Allowed. 0 se o bucket nunca libera (burst 0).
	Wait time.Duration
}

// BurstStore mantém um token bucket por chave, local ao processo.
//
// Não é fonte de verdade: apenas corta rajadas antes do CounterStore compartilhado.
type BurstStore interface {
	Take(key string) BurstTake
	Burst() int
}

type Decision struct {
	Allowed bool

	// Limit e Count: limite da janela e contagem após o incremento.
	Limit int
	Count int64

	// Remaining só tem significado quando Allowed (L - count). Bloqueado => 0.
	Remaining int

	// RetryAfter é o valor a ser retornado em Retry-After quando bloquear.
	// Se 0, não há recomendação.
	RetryAfter time.Duration
}
