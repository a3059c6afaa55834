package domain

import (
	"context"
	"time"
)

// Outcome é o resultado de uma avaliação de rate limit.
type Outcome string

const (
	OutcomeAllowed Outcome = "allowed"
	OutcomeDenied  Outcome = "denied"
	// OutcomeUnavailable: o store falhou e a decisão não pôde ser tomada.
	OutcomeUnavailable Outcome = "unavailable"
	// OutcomeBurstDenied: cortado pelo token bucket local, antes da janela fixa.
	OutcomeBurstDenied Outcome = "burst_denied"
)

// OutcomeOf traduz uma decisão (ou erro) em Outcome.
func OutcomeOf(dec Decision, err error) Outcome {
	switch {
	case err != nil:
		return OutcomeUnavailable
	case dec.Allowed:
		return OutcomeAllowed
	default:
		return OutcomeDenied
	}
}

// StatsEvent representa um evento de decisão do rate limit.
//
// Method/Path são strings genéricas, sem acoplamento a net/http.
//
// Observação: cuidado com cardinalidade (ex.: salvar Key/Path sem controle pode
// explodir o número de chaves no Redis).
type StatsEvent struct {
	Key     Key
	Outcome Outcome

	Method string
	Path   string

	At time.Time
}

// StatsStore é a estratégia de persistência para estatísticas do rate limit.
//
// O middleware trata erro como best-effort (não derruba a request).
type StatsStore interface {
	Record(ctx context.Context, ev StatsEvent) error
}
