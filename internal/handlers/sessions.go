package handlers

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlive/internal/apperr"
	"github.com/jason-s-yu/quizlive/internal/game"
	"github.com/jason-s-yu/quizlive/internal/models"
	"github.com/julienschmidt/httprouter"
)

type createSessionRequest struct {
	QuizID   uuid.UUID        `json:"quizId"`
	Settings *models.Settings `json:"settings,omitempty"`
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req createSessionRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.QuizID == uuid.Nil {
		s.writeError(w, r, apperr.New(apperr.CodeInvalidArgument, "quizId is required"))
		return
	}
	sess, err := s.engine.CreateSession(r.Context(), identity(r), req.QuizID, req.Settings)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) viewSession(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sess, err := s.resolve(r.Context(), ps.ByName("code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) listLobby(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sess, err := s.resolve(r.Context(), ps.ByName("code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	active, err := s.engine.ListActive(r.Context(), sess.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, game.RosterPayload{HostID: sess.HostID, Participants: active})
}

func (s *Server) joinLobby(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sess, err := s.resolve(r.Context(), ps.ByName("code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.engine.JoinLobby(r.Context(), sess.ID, identity(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type readyRequest struct {
	Ready *bool `json:"ready"`
}

func (s *Server) setReady(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req readyRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ready := req.Ready == nil || *req.Ready

	sess, err := s.resolve(r.Context(), ps.ByName("code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.engine.SetReady(r.Context(), sess.ID, identity(r).UserID, ready)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) leaveLobby(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sess, err := s.resolve(r.Context(), ps.ByName("code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.engine.LeaveLobby(r.Context(), sess.ID, identity(r).UserID); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
