package api

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/teris-io/shortid"

	"github.com/dechat-im/dechat/internal/config"
	"github.com/dechat-im/dechat/internal/database"
	"github.com/dechat-im/dechat/internal/relay"
	"github.com/dechat-im/dechat/internal/stats"
)

type DechatApp struct {
	log            *log.Logger
	db             database.DechatRepository
	mux            *http.Server
	rs             *relay.RelayServer
	stats          stats.StatsProvider
	signingKey     []byte
	allowedOrigins []string

	generateShortId func() (string, error)
}

func NewDechatApp(mux *http.ServeMux, logger *log.Logger, rs *relay.RelayServer, db database.DechatRepository, su stats.StatsProvider, cfg *config.Config) *DechatApp {
	s := &DechatApp{
		log:             logger,
		db:              db,
		rs:              rs,
		stats:           su,
		signingKey:      cfg.SigningKey,
		allowedOrigins:  cfg.AllowedOrigins,
		generateShortId: shortid.Generate,
	}

	mux.HandleFunc("POST /api/auth/register", s.createAccount)
	mux.HandleFunc("POST /api/auth/login", s.login)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.Handle("GET /api/auth/logout", s.authMiddleware(s.logout))
	mux.Handle("POST /api/chats", s.authMiddleware(s.createChat))
	mux.Handle("GET /api/chats", s.authMiddleware(s.listChats))
	mux.Handle("GET /api/chats/participants", s.authMiddleware(s.getParticipants))
	mux.Handle("GET /api/chats/messages", s.authMiddleware(s.getChatMessages))
	mux.Handle("GET /api/history", s.authMiddleware(s.getDirectHistory))
	mux.Handle("GET /ws", s.authMiddleware(s.serveWs))
	mux.HandleFunc("GET /health", s.health)

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept"}),
		handlers.AllowCredentials(),
	)(mux)

	h = s.errorHandler(h)

	srv := &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	s.mux = srv
	return s
}

func (s *DechatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *DechatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
