package server

import (
	"encoding/json"
	"net/http"
)

// Client facing messages. UserNotFound and InvalidCredentials share one
// message, as do the two directory faults.
const (
	messageMissingCredentials = "username and password are required"
	messageInvalidUsername    = "invalid username"
	messageInvalidBody        = "invalid request body"
	messageBodyTooLarge       = "request body too large"
	messageRejected           = "invalid username or password"
	messageUnavailable        = "directory service unavailable"
	messageInternal           = "internal server error"
)

// authResponse is the body of every /api/auth/ldap response
type authResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// writeJSON writes v as application/json with the given status
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
