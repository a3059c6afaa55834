// Package kv define o contrato mínimo do key-value store com TTL usado pelo rate limit
// e pelo cache-aside, além de duas implementações:
//
//   - RedisStore: backend de produção usando github.com/redis/go-redis/v9
//   - MemoryStore: backend em memória com expiração preguiçosa, para testes e execução local
//
// Toda falha de rede/protocolo é reportada embrulhando ErrUnavailable.
// O ciclo de vida do cliente Redis pertence ao chamador (cmd/api cria e fecha).
package kv
