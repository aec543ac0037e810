package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/jason-s-yu/quizlive/internal/game"
	"github.com/jason-s-yu/quizlive/internal/models"
	"github.com/julienschmidt/httprouter"
)

// transition is a host-only session change such as start, advance or end.
type transition func(ctx context.Context, sessionID, callerID uuid.UUID) (*models.Session, error)

func (s *Server) hostAction(op transition) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		sess, err := s.resolve(r.Context(), ps.ByName("code"))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		out, err := op(r.Context(), sess.ID, identity(r).UserID)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, out)
	}
}

func (s *Server) joinGame(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sess, err := s.resolve(r.Context(), ps.ByName("code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	p, err := s.engine.JoinGame(r.Context(), sess.ID, identity(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) currentQuestion(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sess, err := s.resolve(r.Context(), ps.ByName("code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	view, err := s.engine.CurrentQuestion(r.Context(), sess.ID, identity(r).UserID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// answerRequest is shared with the websocket answer_submit event.
type answerRequest struct {
	QuestionID uuid.UUID          `json:"questionId"`
	Value      models.AnswerValue `json:"value"`
}

func (s *Server) submitAnswer(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	var req answerRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	sess, err := s.resolve(r.Context(), ps.ByName("code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.engine.SubmitAnswer(r.Context(), sess.ID, identity(r).UserID, req.QuestionID, req.Value)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	sess, err := s.resolve(r.Context(), ps.ByName("code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	board, err := s.engine.Leaderboard(r.Context(), sess.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, game.LeaderboardPayload{Leaderboard: board})
}
