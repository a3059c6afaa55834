// Package restapi escreve respostas JSON (sucesso e erro) de forma consistente.
package restapi

import (
	"bytes"
	"encoding/json"
	"net/http"

	"github.com/ssgreg/logf"
)

const ContentTypeAppJSON = "application/json"

// ErrorResponse é o corpo de erro: {"error": "..."}.
type ErrorResponse struct {
	Error string `json:"error"`
}

// JSON sem escape de HTML (ex: emojis e "<" ficam legíveis).
func jsonMarshal(v interface{}) ([]byte, error) {
	var buffer bytes.Buffer
	encoder := json.NewEncoder(&buffer)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return nil, err
	}
	return buffer.Bytes()[:buffer.Len()-1], nil
}

// RespondJSON responde 200 com respData serializado.
func RespondJSON(rw http.ResponseWriter, respData interface{}, logger *logf.Logger) {
	RespondCodeAndJSON(rw, http.StatusOK, respData, logger)
}

// RespondCodeAndJSON responde com o status informado e define "Content-Type"
// como "application/json" se ainda não estiver definido.
func RespondCodeAndJSON(rw http.ResponseWriter, statusCode int, respData interface{}, logger *logf.Logger) {
	if respData == nil {
		rw.WriteHeader(statusCode)
		return
	}

	if rw.Header().Get("Content-Type") == "" {
		rw.Header().Set("Content-Type", ContentTypeAppJSON)
	}

	respJSON, err := jsonMarshal(respData)
	if err != nil {
		if logger != nil {
			logger.Error("error while marshaling json for response body", logf.Error(err))
		}
		rw.WriteHeader(http.StatusInternalServerError)
		return
	}

	rw.WriteHeader(statusCode)
	if _, err = rw.Write(respJSON); err != nil && logger != nil {
		logger.Error("error while writing response body", logf.Error(err))
	}
}

// RespondError responde {"error": message}. Respostas 5xx são logadas com a causa.
func RespondError(rw http.ResponseWriter, statusCode int, message string, cause error, logger *logf.Logger) {
	if logger != nil && statusCode >= http.StatusInternalServerError {
		fields := []logf.Field{logf.Int("status", statusCode), logf.String("error_message", message)}
		if cause != nil {
			fields = append(fields, logf.Error(cause))
		}
		logger.Error("error in response", fields...)
	}
	RespondCodeAndJSON(rw, statusCode, ErrorResponse{Error: message}, logger)
}
