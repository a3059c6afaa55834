package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/xid"
	"github.com/ssgreg/logf"

	"api-demo/logging"
	"api-demo/restapi"
)

const HeaderRequestID = "X-Request-ID"

const recoveryStackSize = 8192

type ctxKeyRequestID struct{}

// RequestIDFromContext devolve o id gravado por RequestID ("" se ausente).
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID{}).(string)
	return id
}

// RequestID reaproveita o X-Request-ID recebido ou gera um novo (xid) e o devolve na resposta.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = xid.New().String()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyRequestID{}, id)))
	})
}

// Logging coloca no contexto um logger com o request id e registra cada resposta.
func Logging(logger *logf.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			reqLogger := logger.With(logf.String("request_id", RequestIDFromContext(r.Context())))

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(logging.NewContext(r.Context(), reqLogger)))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			duration := time.Since(started)
			reqLogger.Info(fmt.Sprintf("response completed in %.3fs", duration.Seconds()),
				logf.String("method", r.Method),
				logf.String("uri", r.RequestURI),
				logf.String("remote_addr", r.RemoteAddr),
				logf.Int("status", status),
				logf.Int("bytes_sent", ww.BytesWritten()),
				logf.Int64("duration_ms", duration.Milliseconds()),
			)
		})
	}
}

// Recovery converte panics em 500 {"error"} e loga o stack.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			p := recover()
			if p == nil {
				return
			}
			logger := logging.FromContext(r.Context())
			if p == http.ErrAbortHandler {
				logger.Warn("request has been aborted", logf.Error(http.ErrAbortHandler))
				panic(p)
			}
			stack := make([]byte, recoveryStackSize)
			stack = stack[:runtime.Stack(stack, false)]
			logger.Error(fmt.Sprintf("Panic: %+v", p), logf.String("stack", string(stack)))
			restapi.RespondError(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError), nil, nil)
		}()
		next.ServeHTTP(w, r)
	})
}
