// Package ratelimit fornece adapters HTTP (net/http) para rate limit e limite de concorrência.
//
// Visão geral (camadas):
//
//   - domain: contratos e tipos do domínio (sem dependência de net/http)
//   - application: casos de uso (janela fixa, burst, acquire/timeout) sem net/http
//   - infra: implementações concretas (token bucket, semáforo, estatísticas)
//   - ratelimit (este pacote): middlewares HTTP + extração de chave + tradução para status/headers
//
// Fluxo do Middleware de janela fixa:
//
//  1. Extrai a chave do cliente (header/XFF/IP)
//  2. Chama application.Service.CheckAndRecord (INCR + EXPIRE no key-value store)
//  3. Bloqueado: 429 com Retry-After; store indisponível: 500
//  4. Permitido: guarda a Decision no contexto e chama o próximo handler
//
// Variáveis de ambiente do binário (cmd/api) controlam o comportamento,
// como RATE_LIMIT, RATE_WINDOW, CONCURRENCY_MAX e BURST_ENABLED.
package ratelimit
