// Package infra contém implementações concretas (infraestrutura) para os contratos
// definidos no pacote domain.
//
//   - BucketStore: token bucket por chave usando golang.org/x/time/rate (guarda de borda)
//   - ChanPool: semáforo simples para limite de concorrência
//   - MemoryStatsStore / RedisStatsStore: estatísticas das decisões de rate limit
//
// O contador de janela fixa não mora aqui: ele é o próprio kv.Store.
package infra
