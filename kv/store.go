package kv

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable indica que o store não respondeu ou respondeu com erro.
var ErrUnavailable = errors.New("kv: store unavailable")

// Store é o contrato do key-value store externo.
//
// A expiração é responsabilidade do store: uma chave expirada é simplesmente ausente.
type Store interface {
	// Get retorna (valor, true) se a chave existe, ou ("", false) se ausente.
	Get(ctx context.Context, key string) (string, bool, error)

	// Set sobrescreve o valor. ttl == 0 significa sem expiração.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Incr incrementa atomicamente; cria a chave com valor 1 se ausente.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire define/renova o TTL de uma chave existente. No-op se ausente.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// TTL retorna o tempo de vida restante.
	// Valores <= 0 significam chave ausente ou sem expiração.
	TTL(ctx context.Context, key string) (time.Duration, error)

	Ping(ctx context.Context) error
}
