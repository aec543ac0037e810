// Package handlers exposes the engine over HTTP and websockets.
package handlers

import (
	"net/http"

	"github.com/jason-s-yu/quizlive/internal/auth"
	"github.com/jason-s-yu/quizlive/internal/game"
	"github.com/jason-s-yu/quizlive/internal/middleware"
	"github.com/jason-s-yu/quizlive/internal/realtime"
	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"
)

// Server holds the dependencies shared by every route.
type Server struct {
	engine *game.Engine
	hub    *realtime.Hub
	ids    auth.IdentityProvider
	logger *logrus.Logger

	// PublicURL is the base of the join link encoded in QR codes. Empty
	// derives it from the request.
	PublicURL string
	// OriginPatterns are passed to the websocket upgrade.
	OriginPatterns []string
}

// NewServer wires the HTTP surface to an engine and its hub.
func NewServer(engine *game.Engine, hub *realtime.Hub, ids auth.IdentityProvider, logger *logrus.Logger) *Server {
	return &Server{
		engine:         engine,
		hub:            hub,
		ids:            ids,
		logger:         logger,
		OriginPatterns: []string{"*"},
	}
}

// Routes builds the router wrapped in request logging.
func (s *Server) Routes() http.Handler {
	mux := httprouter.New()
	mux.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		s.logger.WithField("path", r.URL.Path).Errorf("panic serving request: %v", v)
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: "INTERNAL", Message: "an unexpected error occurred"})
	}

	authed := middleware.RequireIdentity(s.ids)

	mux.GET("/healthz", s.health)

	mux.POST("/api/sessions", authed(s.createSession))
	mux.GET("/api/sessions/:code", authed(s.viewSession))
	mux.GET("/api/sessions/:code/qr.png", s.qr)

	mux.GET("/api/sessions/:code/lobby", authed(s.listLobby))
	mux.POST("/api/sessions/:code/lobby/join", authed(s.joinLobby))
	mux.POST("/api/sessions/:code/lobby/ready", authed(s.setReady))
	mux.POST("/api/sessions/:code/lobby/leave", authed(s.leaveLobby))

	mux.POST("/api/sessions/:code/start", authed(s.hostAction(s.engine.StartSession)))
	mux.POST("/api/sessions/:code/advance", authed(s.hostAction(s.engine.AdvanceQuestion)))
	mux.POST("/api/sessions/:code/end", authed(s.hostAction(s.engine.EndSession)))
	mux.POST("/api/sessions/:code/join", authed(s.joinGame))
	mux.GET("/api/sessions/:code/question", authed(s.currentQuestion))
	mux.POST("/api/sessions/:code/answers", authed(s.submitAnswer))
	mux.GET("/api/sessions/:code/leaderboard", authed(s.leaderboard))

	mux.GET("/ws/:code", s.serveWS)

	return middleware.LogMiddleware(s.logger)(mux)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
