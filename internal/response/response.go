// Package response renders the uniform success/error JSON envelope used by
// every endpoint.
package response

import (
	"encoding/json"
	"net/http"
	"strings"
)

// Standard messages shared by the gate components.
const (
	MsgUnauthorized   = "Unauthorized"
	MsgForbidden      = "Forbidden"
	MsgInternalError  = "An internal error occurred"
	MsgNotFound       = "Resource not found"
	MsgMethodNotAllow = "Method not allowed"
)

// ErrorBody is the failure envelope.
type ErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Success builds a success envelope. Object payloads are flattened into the
// envelope; any other payload, including one that does not marshal as an
// object, is placed under "data".
func Success(payload any) map[string]any {
	body := map[string]any{}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil || json.Unmarshal(raw, &body) != nil || body == nil {
			body = map[string]any{"data": payload}
		}
	}
	body["success"] = true
	return body
}

// Failure builds an error envelope with the same text in both message fields.
func Failure(message string) ErrorBody {
	return ErrorBody{
		Success: false,
		Error:   message,
		Message: message,
	}
}

// ErrorMessage composes an error with a caller-supplied fallback. The two are
// joined only when the error text differs from the fallback.
func ErrorMessage(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	msg := strings.TrimSpace(err.Error())
	if msg == "" || msg == fallback {
		return fallback
	}
	if fallback == "" {
		return msg
	}
	return fallback + ": " + msg
}

// JSON writes data as JSON with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, status int, payload any) {
	JSON(w, status, Success(payload))
}

// WriteError writes an error envelope.
func WriteError(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Failure(message))
}
