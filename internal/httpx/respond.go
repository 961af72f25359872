// Package httpx holds the JSON response envelope shared by every HTTP service.
package httpx

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

// maxBodyBytes caps request bodies decoded by DecodeJSON.
const maxBodyBytes = 1 << 20

// ErrBadBody is returned by DecodeJSON for an empty, oversized or undecodable body.
var ErrBadBody = errors.New("invalid request body")

// Envelope is the response body of every API endpoint.
type Envelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Timestamp string `json:"timestamp"`
}

var now = func() time.Time { return time.Now().UTC() }

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a successful envelope.
func OK(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, Envelope{Success: true, Message: message, Data: data, Timestamp: now().Format(time.RFC3339)})
}

// Fail writes a failed envelope without data.
func Fail(w http.ResponseWriter, status int, message string) {
	JSON(w, status, Envelope{Success: false, Message: message, Timestamp: now().Format(time.RFC3339)})
}

// FailWithData writes a failed envelope carrying data, such as a field-to-message map.
func FailWithData(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, Envelope{Success: false, Message: message, Data: data, Timestamp: now().Format(time.RFC3339)})
}

// DecodeJSON decodes the first JSON value of the request body into target.
func DecodeJSON(r *http.Request, target any) error {
	if r.Body == nil {
		return ErrBadBody
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(target); err != nil {
		return errors.Join(ErrBadBody, err)
	}
	return nil
}
