package application

import (
	"math"

	"api-demo/middleware/ratelimit/domain"
)

// BurstService corta rajadas com um token bucket local antes da janela fixa.
//
// O bucket usa a mesma chave do Service ("{Prefix}:{clientId}"), então as duas
// camadas contam o mesmo cliente. O Service continua sendo a fonte de verdade
// compartilhada entre réplicas; este guarda é por processo.
type BurstService struct {
	Store  domain.BurstStore
	Prefix string
}

// Check consome um token do cliente. Sem Store, o guarda está desligado e tudo passa.
//
// Permitido: Remaining = tokens inteiros que sobram. Negado: RetryAfter = espera até o
// próximo token.
func (s BurstService) Check(clientID domain.Key) (domain.Decision, error) {
	if clientID == "" {
		return domain.Decision{}, domain.ErrEmptyKey
	}
	if s.Store == nil {
		return domain.Decision{Allowed: true}, nil
	}

	take := s.Store.Take(Service{Prefix: s.Prefix}.StoreKey(clientID))
	dec := domain.Decision{Allowed: take.Allowed, Limit: s.Store.Burst()}
	if !take.Allowed {
		dec.RetryAfter = take.Wait
		return dec, nil
	}
	dec.Remaining = int(math.Max(0, math.Floor(take.Tokens)))
	return dec, nil
}
