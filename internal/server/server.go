package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"doctrans/internal/app"
	"doctrans/internal/ratelimit"
	"doctrans/internal/usertoken"
	"doctrans/internal/util"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                *app.App
	Tokens             *usertoken.Manager
	RedisAddr          string
	RedisPassword      string
	LoginRatePerMinute int
	MaxUploadBytes     int64
	AllowedOrigins     []string
}

// Server exposes the HTTP API.
type Server struct {
	app            *app.App
	tokens         *usertoken.Manager
	mux            *http.ServeMux
	maxUploadBytes int64
	allowedOrigins []string
	loginLimiter   *ratelimit.FixedWindowLimiter
}

// New constructs the server with routes configured. Rate limiting is active
// only when a Redis address is configured.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("server requires the application")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("server requires the token manager")
	}
	s := &Server{
		app:            cfg.App,
		tokens:         cfg.Tokens,
		mux:            http.NewServeMux(),
		maxUploadBytes: normalizeMaxBytes(cfg.MaxUploadBytes),
		allowedOrigins: cfg.AllowedOrigins,
	}
	if strings.TrimSpace(cfg.RedisAddr) != "" {
		limit := cfg.LoginRatePerMinute
		if limit <= 0 {
			limit = 10
		}
		limiter, err := ratelimit.NewRedisFixedWindowLimiter(cfg.RedisAddr, cfg.RedisPassword, "doctrans:ratelimit:login", limit, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("init login limiter: %w", err)
		}
		s.loginLimiter = limiter
	}
	s.routes()
	return s, nil
}

// Router returns the configured handler wrapped with the shared middleware.
func (s *Server) Router() http.Handler {
	return util.WithRequestLog(util.WithSecurityHeaders(util.WithCORS(s.allowedOrigins, s.mux)))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	// auth
	s.mux.HandleFunc("/api/login", s.handleLogin)
	s.mux.Handle("/api/refresh", s.authenticated(s.handleRefresh))
	s.mux.Handle("/api/me", s.authenticated(s.handleMe))
	s.mux.HandleFunc("/api/forgot", s.handleForgot)
	s.mux.HandleFunc("/api/reset", s.handleReset)

	// jobs & glossaries (auth required)
	s.mux.Handle("/api/jobs", s.authenticated(s.handleJobs))
	s.mux.Handle("/api/jobs/", s.authenticated(s.handleJobByID))
	s.mux.Handle("/api/glossaries", s.authenticated(s.handleGlossaries))
	s.mux.Handle("/api/glossaries/", s.authenticated(s.handleGlossaryByID))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authHandler func(http.ResponseWriter, *http.Request, string)

func (s *Server) authenticated(next authHandler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		userID, err := s.tokens.Verify(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r, userID)
	})
}

// auth handlers

type loginRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, "too many login attempts") {
		return
	}
	var req loginRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	email := req.Email
	if email == "" {
		email = req.Username
	}
	res, err := s.app.Login(email, req.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	res, err := s.app.Refresh(userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	user, err := s.app.Me(userID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type forgotRequest struct {
	Email string `json:"email"`
}

func (s *Server) handleForgot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, "too many reset attempts") {
		return
	}
	var req forgotRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	// The token is logged, never returned, so the endpoint does not reveal
	// which emails exist.
	if _, err := s.app.ForgotPassword(req.Email); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type resetRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r, "too many reset attempts") {
		return
	}
	var req resetRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := s.app.ResetPassword(req.Token, req.Password); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

// job handlers

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		s.handleListJobs(w, r)
	case http.MethodPost:
		s.handleCreateJob(w, r, userID)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "page_size", 10)
	list, err := s.app.ListJobs(q, page, pageSize)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request, userID string) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "invalid form data")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required (field: file)")
		return
	}
	defer file.Close()
	if strings.ToLower(filepath.Ext(header.Filename)) != ".docx" {
		writeError(w, http.StatusBadRequest, "unsupported file type, expected .docx")
		return
	}

	targetLangs := r.MultipartForm.Value["target_langs"]
	if len(targetLangs) == 0 {
		if csv := r.FormValue("target_lang"); csv != "" {
			targetLangs = strings.Split(csv, ",")
		}
	}

	res, err := s.app.CreateJob(r.Context(), app.CreateJobParams{
		Filename:    header.Filename,
		File:        file,
		Size:        header.Size,
		SourceLang:  r.FormValue("source_lang"),
		TargetLangs: targetLangs,
		GlossaryID:  r.FormValue("glossary_id"),
		UserID:      userID,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request, _ string) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/jobs/")
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 2)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			detail, err := s.app.GetJob(id)
			if err != nil {
				writeAppError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, detail)
		case http.MethodDelete:
			removed, err := s.app.DeleteJob(r.Context(), id)
			if err != nil {
				writeAppError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "removed_files": removed})
		default:
			methodNotAllowed(w)
		}
		return
	}

	switch parts[1] {
	case "targets":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		list, err := s.app.ListTargets(id)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	case "download":
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		dl, err := s.app.Download(r.Context(), id, r.URL.Query().Get("lang"))
		if err != nil {
			writeAppError(w, err)
			return
		}
		w.Header().Set("Content-Type", dl.ContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="`+dl.Filename+`"`)
		w.Header().Set("Content-Length", strconv.Itoa(len(dl.Data)))
		_, _ = w.Write(dl.Data)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// glossary handlers

type glossaryRequest struct {
	Name      string `json:"name"`
	LocaleSrc string `json:"locale_src"`
	LocaleDst string `json:"locale_dst"`
}

type termRequest struct {
	Src   string `json:"src"`
	Dst   string `json:"dst"`
	Notes string `json:"notes"`
}

func (s *Server) handleGlossaries(w http.ResponseWriter, r *http.Request, userID string) {
	switch r.Method {
	case http.MethodGet:
		items, err := s.app.ListGlossaries()
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	case http.MethodPost:
		var req glossaryRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		g, err := s.app.CreateGlossary(req.Name, req.LocaleSrc, req.LocaleDst, userID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, g)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleGlossaryByID(w http.ResponseWriter, r *http.Request, _ string) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/glossaries/")
	parts := strings.SplitN(strings.Trim(rest, "/"), "/", 3)
	id := parts[0]
	if id == "" {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			g, err := s.app.GetGlossary(id)
			if err != nil {
				writeAppError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, g)
		case http.MethodDelete:
			if err := s.app.DeleteGlossary(id); err != nil {
				writeAppError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
		default:
			methodNotAllowed(w)
		}
		return
	}

	switch parts[1] {
	case "import":
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		if s.maxUploadBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
		}
		if err := r.ParseMultipartForm(8 << 20); err != nil {
			writeError(w, http.StatusBadRequest, "invalid form data")
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "csv required")
			return
		}
		defer file.Close()
		count, err := s.app.ImportGlossaryCSV(id, file)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "terms": count})
	case "terms":
		if len(parts) == 3 {
			if r.Method != http.MethodDelete {
				methodNotAllowed(w)
				return
			}
			if err := s.app.DeleteTerm(id, parts[2]); err != nil {
				writeAppError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
			return
		}
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req termRequest
		if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		term, err := s.app.AddTerm(id, req.Src, req.Dst, req.Notes)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, term)
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// helpers

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeAppError(w http.ResponseWriter, err error) {
	var verr *app.ValidationError
	switch {
	case errors.As(err, &verr):
		writeError(w, http.StatusBadRequest, verr.Msg)
	case errors.Is(err, app.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, app.ErrNotReady):
		writeError(w, http.StatusBadRequest, "not ready")
	default:
		slog.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func normalizeMaxBytes(value int64) int64 {
	if value <= 0 {
		return 50 * 1024 * 1024
	}
	return value
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request, msg string) bool {
	if s.loginLimiter == nil {
		return true
	}
	key := r.URL.Path + "|" + clientIP(r)
	if s.loginLimiter.Allow(key) {
		return true
	}
	w.Header().Set("Retry-After", "60")
	writeError(w, http.StatusTooManyRequests, msg)
	return false
}

func clientIP(r *http.Request) string {
	if xfwd := strings.TrimSpace(r.Header.Get("X-Forwarded-For")); xfwd != "" {
		parts := strings.Split(xfwd, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(r.RemoteAddr))
	if err == nil && host != "" {
		return host
	}
	return strings.TrimSpace(r.RemoteAddr)
}
