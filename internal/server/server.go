// Package server is the HTTP shell: login, chat history and running the
// agent behind a signed cookie.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"deep-search-wiser/internal/agent"
	"deep-search-wiser/internal/config"
	"deep-search-wiser/internal/history"
	"deep-search-wiser/internal/logger"
	"deep-search-wiser/internal/security"
)

// msgBadLogin is shown for any failed login.
const msgBadLogin = "Username/password is incorrect"

// Runner answers a prompt. *agent.Agent implements it.
type Runner interface {
	Run(ctx context.Context, chatID, input string) (*agent.Result, error)
}

// Server serves the chat API.
type Server struct {
	cfg        config.ServerConfig
	creds      config.CredentialsConfig
	cookieName string
	signer     *security.CookieSigner
	store      history.Store
	runner     Runner
	log        *zap.Logger
}

// New creates a server. signer issues the auth cookie named cfg.Cookie.Name.
func New(cfg *config.Config, signer *security.CookieSigner, store history.Store, runner Runner) *Server {
	name := cfg.Cookie.Name
	if name == "" {
		name = config.Defaults().Cookie.Name
	}
	return &Server{
		cfg:        cfg.Server,
		creds:      cfg.Credentials,
		cookieName: name,
		signer:     signer,
		store:      store,
		runner:     runner,
		log:        logger.Named("server"),
	}
}

// Handler returns the routed handler with request logging and panic recovery.
func (s *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	router.HandleFunc("/login", s.handleLogin).Methods(http.MethodPost)
	router.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(s.requireAuth)
	api.HandleFunc("/chats", s.handleListChats).Methods(http.MethodGet)
	api.HandleFunc("/chats", s.handleAsk).Methods(http.MethodPost)
	api.HandleFunc("/chats/{index:[0-9]+}", s.handleGetChat).Methods(http.MethodGet)
	api.HandleFunc("/chats/{index:[0-9]+}", s.handleDeleteChat).Methods(http.MethodDelete)

	stdLog := zap.NewStdLog(s.log)
	recovery := handlers.RecoveryHandler(
		handlers.RecoveryLogger(stdLog),
		handlers.PrintRecoveryStack(true),
	)
	return handlers.LoggingHandler(stdLog.Writer(), recovery(router))
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  time.Duration(s.cfg.ReadTimeoutSecs) * time.Second,
		WriteTimeout: time.Duration(s.cfg.WriteTimeoutSecs) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	s.log.Info("listening", zap.String("addr", s.cfg.Addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

type userKey struct{}

// requireAuth rejects requests without a valid auth cookie.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(s.cookieName)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "login required")
			return
		}
		user, err := s.signer.Verify(c.Value)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "login required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userKey{}, user)))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		req.Username, req.Password = r.FormValue("username"), r.FormValue("password")
	}

	u, err := security.Authenticate(s.creds, req.Username, req.Password)
	if err != nil {
		s.log.Info("login failed", zap.String("username", req.Username))
		writeError(w, http.StatusUnauthorized, msgBadLogin)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    s.signer.Sign(req.Username),
		Path:     "/",
		MaxAge:   int(s.signer.TTL().Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"username": req.Username, "name": u.Name})
}

func (s *Server) handleLogout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     s.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, history.Entries(records, r.URL.Query().Get("q")))
}

type chatResponse struct {
	history.Record
	Formatted string `json:"formatted"`
}

func (s *Server) handleGetChat(w http.ResponseWriter, r *http.Request) {
	index, _ := strconv.Atoi(mux.Vars(r)["index"])
	rec, err := s.store.Get(r.Context(), index)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Record: rec, Formatted: FormatSummary(rec.Response)})
}

func (s *Server) handleDeleteChat(w http.ResponseWriter, r *http.Request) {
	index, _ := strconv.Atoi(mux.Vars(r)["index"])
	if err := s.store.Delete(r.Context(), index); err != nil {
		writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type askRequest struct {
	Prompt string `json:"prompt"`
}

type askResponse struct {
	SessionID string `json:"session_id"`
	Response  string `json:"response"`
	Formatted string `json:"formatted"`
	Steps     int    `json:"steps"`
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.Prompt = strings.TrimSpace(req.Prompt)
	if req.Prompt == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}

	res, err := s.runner.Run(r.Context(), "", req.Prompt)
	if err != nil {
		user, _ := r.Context().Value(userKey{}).(string)
		s.log.Warn("agent failed", zap.String("user", user), zap.Error(err))
		writeError(w, http.StatusBadGateway, "Error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, askResponse{
		SessionID: res.SessionID,
		Response:  res.Answer,
		Formatted: FormatSummary(res.Answer),
		Steps:     len(res.Steps),
	})
}

// FormatSummary renders an agent response for display. A JSON object with
// an "output" field becomes a "📌 Summary" section; anything else is shown
// as is.
func FormatSummary(response string) string {
	var doc struct {
		Output *string `json:"output"`
	}
	if err := json.Unmarshal([]byte(response), &doc); err == nil && doc.Output != nil {
		return "### 📌 Summary\n\n" + *doc.Output
	}
	return response
}

func writeStoreError(w http.ResponseWriter, err error) {
	if errors.Is(err, history.ErrIndexOutOfRange) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
