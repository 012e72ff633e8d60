package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"

	ldapauth "github.com/netresearch/simple-ldap-auth"
)

// loginRequest is the JSON body of POST /api/auth/ldap. Other fields the UI
// sends (ldapUrl, baseDN, domain) are ignored; the directory is configured
// server side only.
type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (s *Server) handleLDAPLogin(w http.ResponseWriter, r *http.Request) {
	log := s.logger.With(slog.String("request_id", chimw.GetReqID(r.Context())))

	req, err := decodeJSON[loginRequest](w, r, s.maxBodyBytes)
	if err != nil {
		status, msg := bindFailure(err)
		log.Debug("login_request_rejected",
			slog.Int("status", status),
			slog.Any("reasons", validationMessages(err)))
		writeJSON(w, status, authResponse{Success: false, Message: msg})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	outcome, err := s.auth.Verify(ctx, req.Username, req.Password)

	status, msg := outcomeResponse(outcome, err)
	writeJSON(w, status, authResponse{Success: outcome == ldapauth.OutcomeAuthenticated, Message: msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}

// bindFailure maps a decode error to a status and client message
func bindFailure(err error) (int, string) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		return http.StatusRequestEntityTooLarge, messageBodyTooLarge
	case errors.Is(err, errInvalidFields), errors.Is(err, errEmptyBody):
		return http.StatusBadRequest, messageMissingCredentials
	default:
		return http.StatusBadRequest, messageInvalidBody
	}
}

// outcomeResponse maps a verification outcome to a status and client message.
// err only refines OutcomeInvalidRequest: a supplied but unusable username is
// reported as such rather than as missing.
func outcomeResponse(outcome ldapauth.Outcome, err error) (int, string) {
	switch {
	case outcome == ldapauth.OutcomeAuthenticated:
		return http.StatusOK, ""
	case outcome == ldapauth.OutcomeInvalidRequest && errors.Is(err, ldapauth.ErrInvalidUsername):
		return http.StatusBadRequest, messageInvalidUsername
	case outcome == ldapauth.OutcomeInvalidRequest:
		return http.StatusBadRequest, messageMissingCredentials
	case outcome.IsCredentialRejection():
		return http.StatusUnauthorized, messageRejected
	default:
		return http.StatusInternalServerError, messageUnavailable
	}
}
