package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	goSession "github.com/MrEthical07/goSession"
	promexport "github.com/MrEthical07/goSession/metrics/export/prometheus"
	"github.com/MrEthical07/goSession/middleware"
)

const maxBodyBytes = 16 << 10

var validate = validator.New()

type issueRequest struct {
	UserID string            `json:"user_id" validate:"required,max=256"`
	Role   string            `json:"role" validate:"max=64"`
	App    map[string]string `json:"app" validate:"max=32"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	SessionID    string `json:"session_id,omitempty"`
}

type sessionResponse struct {
	ID            string    `json:"id"`
	CreatedAt     time.Time `json:"created_at"`
	ExpiresAt     time.Time `json:"expires_at"`
	DeviceInfo    string    `json:"device_info,omitempty"`
	ClientAddress string    `json:"client_address,omitempty"`
}

type identityResponse struct {
	Subject   string            `json:"subject"`
	Role      string            `json:"role,omitempty"`
	App       map[string]string `json:"app,omitempty"`
	IssuedAt  time.Time         `json:"issued_at"`
	ExpiresAt time.Time         `json:"expires_at"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// handler builds the HTTP surface over a.engine.
func (a *app) handler() http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		promexport.NewPrometheusExporter(a.engine),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	red := newHTTPMetrics(registry)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(red.middleware)
	r.Use(traceRoute)
	r.Use(a.requestLogger)
	r.Use(middleware.ClientMetadata)

	r.Get("/healthz", a.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		if a.cfg.DevIssue {
			r.Post("/sessions", a.handleIssue)
		}
		r.Post("/sessions/refresh", a.handleRefresh)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Guard(a.engine))
			r.Post("/sessions/logout", a.handleLogout)
			r.Post("/sessions/logout-all", a.handleLogoutAll)
			r.Get("/sessions", a.handleListSessions)
			r.Delete("/sessions/{id}", a.handleRevokeSession)
			r.Get("/me", a.handleMe)
		})
	})

	opts := []otelhttp.Option{
		// traceRoute replaces this name once the route is known.
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return "HTTP " + r.Method
		}),
	}
	if a.tracer != nil {
		opts = append(opts, otelhttp.WithTracerProvider(a.tracer))
	}
	return otelhttp.NewHandler(r, "sessiond", opts...)
}

func (a *app) handleIssue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if !a.decode(w, r, &req, false) {
		return
	}

	res, err := a.engine.Issue(r.Context(), goSession.IssueRequest{
		UserID: req.UserID,
		Role:   req.Role,
		App:    req.App,
	})
	if err != nil {
		a.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tokenResponse{
		AccessToken:  res.AccessToken,
		RefreshToken: res.RefreshToken,
		ExpiresIn:    int64(res.ExpiresIn / time.Second),
		SessionID:    res.SessionID,
	})
}

func (a *app) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if !a.decode(w, r, &req, false) {
		return
	}

	pair, err := a.engine.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		a.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    int64(pair.ExpiresIn / time.Second),
	})
}

func (a *app) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())

	var req logoutRequest
	if !a.decode(w, r, &req, true) {
		return
	}
	if err := a.engine.Logout(r.Context(), id.Subject, req.RefreshToken); err != nil {
		a.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *app) handleLogoutAll(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	if err := a.engine.LogoutAll(r.Context(), id.Subject); err != nil {
		a.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *app) handleListSessions(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	infos, err := a.engine.ActiveSessions(r.Context(), id.Subject)
	if err != nil {
		a.writeEngineError(w, r, err)
		return
	}

	out := make([]sessionResponse, len(infos))
	for i, info := range infos {
		out[i] = sessionResponse{
			ID:            info.ID,
			CreatedAt:     info.CreatedAt,
			ExpiresAt:     info.ExpiresAt,
			DeviceInfo:    info.DeviceInfo,
			ClientAddress: info.ClientAddress,
		}
	}
	writeJSON(w, http.StatusOK, map[string][]sessionResponse{"sessions": out})
}

func (a *app) handleRevokeSession(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	if err := a.engine.RevokeSession(r.Context(), id.Subject, chi.URLParam(r, "id")); err != nil {
		a.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (a *app) handleMe(w http.ResponseWriter, r *http.Request) {
	id, _ := middleware.IdentityFromContext(r.Context())
	writeJSON(w, http.StatusOK, identityResponse{
		Subject:   id.Subject,
		Role:      id.Role,
		App:       id.App,
		IssuedAt:  id.IssuedAt,
		ExpiresAt: id.ExpiresAt,
	})
}

func (a *app) handleHealth(w http.ResponseWriter, r *http.Request) {
	latency, err := a.engine.Ping(r.Context())
	if err != nil {
		a.logger.WarnContext(r.Context(), "sessiond: health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"latency_ms": float64(latency.Microseconds()) / 1000,
	})
}

// decode reads a JSON body into out and validates it. With optional set an
// empty body is accepted.
func (a *app) decode(w http.ResponseWriter, r *http.Request, out any, optional bool) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		if !(optional && errors.Is(err, io.EOF)) {
			writeError(w, http.StatusBadRequest, goSession.CodeInvalidRequest, "malformed request body")
			return false
		}
	}
	if err := validate.Struct(out); err != nil {
		writeError(w, http.StatusBadRequest, goSession.CodeInvalidRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return verrs[0].Field() + " failed " + verrs[0].Tag()
	}
	return "invalid request"
}

// writeEngineError maps err to a status and public code. Messages are fixed
// per code so expired, reused and unknown refresh tokens look alike.
func (a *app) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	code := goSession.ErrorCode(err)
	status, message := statusForCode(code)
	if status >= http.StatusInternalServerError {
		a.logger.ErrorContext(r.Context(), "sessiond: request failed",
			"path", r.URL.Path,
			"code", code,
			"error", err,
		)
	}
	if code == goSession.CodeRateLimited {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(a.retryAfter)))
	}
	writeError(w, status, code, message)
}

func retryAfterSeconds(d time.Duration) int {
	secs := int(d / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

func statusForCode(code string) (int, string) {
	switch code {
	case goSession.CodeTokenExpired:
		return http.StatusUnauthorized, "token expired"
	case goSession.CodeTokenInvalid:
		return http.StatusUnauthorized, "token invalid"
	case goSession.CodeTokenTypeMismatch:
		return http.StatusUnauthorized, "wrong token type"
	case goSession.CodeRateLimited:
		return http.StatusTooManyRequests, "too many refresh attempts"
	case goSession.CodeSessionNotFound:
		return http.StatusNotFound, "session not found"
	case goSession.CodeInvalidRequest:
		return http.StatusBadRequest, "invalid request"
	case goSession.CodeServiceUnavailable:
		return http.StatusServiceUnavailable, "service unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
