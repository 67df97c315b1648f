package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/handlers"
	"github.com/propertyhub/chatserver/internal/config"
	"github.com/propertyhub/chatserver/internal/database"
	"github.com/propertyhub/chatserver/internal/server"
	"github.com/teris-io/shortid"
)

type ChatApp struct {
	log            *log.Logger
	db             database.ChatRepository
	mux            *http.Server
	cs             *server.ChatServer
	signingKey     []byte
	allowedOrigins []string
	sid            *shortid.Shortid
	startTime      time.Time
}

func NewChatApp(mux *http.ServeMux, logger *log.Logger, cs *server.ChatServer, db database.ChatRepository, cfg *config.Config) (*ChatApp, error) {
	sid, err := shortid.New(1, shortid.DefaultABC, 2342)
	if err != nil {
		return nil, fmt.Errorf("shortid: %w", err)
	}

	s := &ChatApp{
		log:            logger,
		db:             db,
		cs:             cs,
		signingKey:     cfg.SigningKey,
		allowedOrigins: cfg.AllowedOrigins,
		sid:            sid,
		startTime:      time.Now(),
	}

	mux.HandleFunc("GET /health", s.health)
	mux.HandleFunc("GET /api/auth/session", s.authMiddleware(s.session))
	mux.HandleFunc("GET /api/chats", s.authMiddleware(s.getChats))
	mux.HandleFunc("POST /api/chats", s.authMiddleware(s.addChat))
	mux.HandleFunc("GET /api/chats/{id}", s.authMiddleware(s.getChat))
	mux.HandleFunc("PUT /api/chats/read/{id}", s.authMiddleware(s.readChat))
	mux.HandleFunc("DELETE /api/chats/{id}", s.authMiddleware(s.deleteChat))
	mux.HandleFunc("POST /api/messages/{chatId}", s.authMiddleware(s.addMessage))
	mux.HandleFunc("GET /api/messages/{chatId}", s.authMiddleware(s.getMessages))
	mux.HandleFunc("DELETE /api/messages/{messageId}", s.authMiddleware(s.deleteMessage))
	mux.HandleFunc("GET /api/notifications", s.authMiddleware(s.getNotificationCount))
	mux.HandleFunc("GET /ws", s.authMiddleware(s.serveWs))

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
	return s, nil
}

func (s *ChatApp) generateShortId() (string, error) {
	return s.sid.Generate()
}

func (s *ChatApp) Start() error {
	s.log.Printf("starting server on %s\n", s.mux.Addr)
	return s.mux.ListenAndServe()
}

func (s *ChatApp) Shutdown(ctx context.Context) error {
	s.log.Println("shutting down HTTP server...")
	if err := s.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
