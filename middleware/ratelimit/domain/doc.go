// Package domain define contratos e tipos de domínio para rate limit e concorrência.
//
// Este pacote não depende de net/http nem de implementações concretas.
// O store de contadores (CounterStore) é satisfeito por kv.Store, mas o domínio
// só conhece a interface mínima de que precisa.
package domain
