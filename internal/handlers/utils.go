package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/jason-s-yu/quizlive/internal/apperr"
	"github.com/jason-s-yu/quizlive/internal/middleware"
	"github.com/jason-s-yu/quizlive/internal/models"
	"github.com/jason-s-yu/quizlive/internal/session"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// writeError maps err onto its HTTP status. Internal errors are logged and
// their details withheld.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperr.GetCode(err)
	if code == apperr.CodeInternal {
		s.logger.WithField("path", r.URL.Path).Errorf("request failed: %v", err)
	}
	writeJSON(w, code.HTTPStatus(), errorBody{Code: string(code), Message: apperr.Message(err)})
}

// decodeBody reads a JSON body into v. An empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return apperr.Wrap(apperr.CodeInvalidArgument, err, "malformed request body")
	}
	return nil
}

func identity(r *http.Request) models.Identity {
	id, _ := middleware.IdentityFrom(r.Context())
	return id
}

// resolve looks up a session by its join code, case-insensitively.
func (s *Server) resolve(ctx context.Context, code string) (*models.Session, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if !session.ValidCode(code) {
		return nil, apperr.Newf(apperr.CodeNotFound, "no session with code %q", code)
	}
	return s.engine.GetSessionByCode(ctx, code)
}
