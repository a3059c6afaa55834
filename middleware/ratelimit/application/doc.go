// Package application contém os casos de uso (regras de aplicação) para rate limit
// e limite de concorrência.
//
// Ele depende apenas do pacote domain e não conhece net/http.
// Ex.: Service.CheckAndRecord(ctx, key) retorna uma Decision (allow/deny + remaining)
// ou um erro embrulhando domain.ErrStoreUnavailable.
package application
