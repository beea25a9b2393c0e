package httpapi

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"granolasync/internal/config"
	"granolasync/internal/granola"
	"granolasync/internal/model"
	"granolasync/internal/processor"
	"granolasync/internal/social"
	"granolasync/internal/upstream/anthropic"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type TranscriptProcessor interface {
	Process(ctx context.Context, payload processor.Payload) processor.Result
}

type MeetingSource interface {
	ListMeetings(ctx context.Context, limit int) ([]granola.Meeting, error)
	GetMeeting(ctx context.Context, id string) (*granola.Meeting, error)
}

type SocialLookup interface {
	Lookup(ctx context.Context, creatorName string) social.Result
}

type UpstreamChecker interface {
	CheckModels(ctx context.Context) error
}

type MetricsObserver interface {
	ObserveHTTP(route, method string, status int, duration time.Duration)
	IncPipelinePartialFailure()
}

type Dependencies struct {
	Processor      TranscriptProcessor
	Meetings       MeetingSource
	Social         SocialLookup
	Upstream       UpstreamChecker
	Metrics        MetricsObserver
	MetricsHandler http.Handler
}

type server struct {
	cfg          config.Config
	logger       *slog.Logger
	processor    TranscriptProcessor
	meetings     MeetingSource
	social       SocialLookup
	upstream     UpstreamChecker
	metrics      MetricsObserver
	metricsRoute http.Handler
}

type ctxKey string

const (
	requestIDHeader  = "X-Request-Id"
	requestIDContext = ctxKey("request_id")
	passwordHeader   = "X-Password"
	webhookHeader    = "X-Webhook-Token"
)

func NewServer(cfg config.Config, logger *slog.Logger, deps Dependencies) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Processor == nil || deps.Meetings == nil || deps.Social == nil || deps.Upstream == nil {
		panic("httpapi: all dependencies are required")
	}

	s := &server{
		cfg:          cfg,
		logger:       logger,
		processor:    deps.Processor,
		meetings:     deps.Meetings,
		social:       deps.Social,
		upstream:     deps.Upstream,
		metrics:      deps.Metrics,
		metricsRoute: deps.MetricsHandler,
	}

	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusNotFound, "not_found", "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		s.writeError(w, r, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed", nil)
	})

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.handleHealthz)
	r.Get("/readyz", s.handleReadyz)
	if s.metricsRoute != nil {
		r.Handle("/metrics", s.metricsRoute)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.webhookAuthMiddleware)
		r.Post("/webhook", s.handleWebhook)
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(s.passwordAuthMiddleware)
		r.Post("/upload", s.handleUpload)
		r.Get("/meetings", s.handleListMeetings)
		r.Get("/meetings/{id}", s.handleGetMeeting)
		r.Get("/creator/lookup", s.handleCreatorLookup)
	})

	return r
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, model.HealthResponse{OK: true})
}

func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.upstream.CheckModels(ctx); err != nil {
		s.writeError(w, r, http.StatusServiceUnavailable, "not_ready", "upstream check failed", detailsForError(err))
		return
	}
	writeJSON(w, http.StatusOK, model.ReadyResponse{OK: true, ServiceName: "GranolaSync"})
}

func (s *server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	var req model.WebhookRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	s.processAndRespond(w, r, processor.Payload{
		Transcript: req.Transcript,
		Title:      req.Title,
		Date:       req.Date,
		Attendees:  req.Attendees,
	})
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	var req model.UploadRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}
	s.processAndRespond(w, r, processor.Payload{
		Transcript: req.Transcript,
		Title:      req.Title,
		Date:       req.Date,
		Attendees:  splitAttendees(req.Attendees),
	})
}

func (s *server) processAndRespond(w http.ResponseWriter, r *http.Request, payload processor.Payload) {
	if strings.TrimSpace(payload.Transcript) == "" {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "transcript is required", nil)
		return
	}

	result := s.processor.Process(r.Context(), payload)

	if s.metrics != nil && len(result.Errors) > 0 {
		s.metrics.IncPipelinePartialFailure()
	}

	if result.Success {
		writeJSON(w, http.StatusOK, result)
		return
	}
	// Multi-Status: extraction may have succeeded while every sync failed;
	// the client renders whatever made it through plus the error list.
	writeJSON(w, http.StatusMultiStatus, result)
}

func (s *server) handleListMeetings(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			s.writeError(w, r, http.StatusBadRequest, "invalid_request", "limit must be a positive integer", nil)
			return
		}
		limit = parsed
	}

	meetings, err := s.meetings.ListMeetings(r.Context(), limit)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}

	summaries := make([]model.MeetingSummary, 0, len(meetings))
	for _, m := range meetings {
		participants := make([]model.MeetingParticipant, 0, len(m.Participants))
		for _, p := range m.Participants {
			participants = append(participants, model.MeetingParticipant{Name: p.Name, Email: p.Email})
		}
		summaries = append(summaries, model.MeetingSummary{
			ID:               m.ID,
			Title:            m.Title,
			Date:             m.Date,
			Duration:         m.Duration,
			ParticipantCount: len(m.Participants),
			Participants:     participants,
			HasSummary:       m.Summary != "",
			HasTranscript:    true,
		})
	}

	writeJSON(w, http.StatusOK, model.MeetingListResponse{Meetings: summaries})
}

func (s *server) handleGetMeeting(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	meeting, err := s.meetings.GetMeeting(r.Context(), id)
	if err != nil {
		s.writeMappedError(w, r, err)
		return
	}
	if meeting == nil {
		s.writeError(w, r, http.StatusNotFound, "not_found", "meeting not found", nil)
		return
	}

	writeJSON(w, http.StatusOK, model.MeetingResponse{Meeting: meeting})
}

func (s *server) handleCreatorLookup(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.URL.Query().Get("name"))
	if name == "" {
		s.writeError(w, r, http.StatusBadRequest, "invalid_request", "missing required parameter: name", nil)
		return
	}

	writeJSON(w, http.StatusOK, s.social.Lookup(r.Context(), name))
}

func (s *server) decodeJSON(w http.ResponseWriter, r *http.Request, out any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxJSONBodyBytes)
	defer func() { _ = r.Body.Close() }()

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		s.handleJSONDecodeError(w, r, err)
		return false
	}
	if err := ensureBodyFullyConsumed(decoder); err != nil {
		s.handleJSONDecodeError(w, r, err)
		return false
	}
	return true
}

func (s *server) handleJSONDecodeError(w http.ResponseWriter, r *http.Request, err error) {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		s.writeError(w, r, http.StatusRequestEntityTooLarge, "request_too_large", "JSON body too large", nil)
		return
	}
	s.writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body", nil)
}

func (s *server) writeMappedError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	code := "internal_error"
	message := "request failed"
	details := detailsForError(err)

	var upstreamErr *anthropic.Error
	switch {
	case errors.As(err, &upstreamErr):
		status = http.StatusBadGateway
		code = "upstream_request_failed"
		message = "upstream request failed"
	case errors.Is(err, granola.ErrNoDataSource):
		status = http.StatusServiceUnavailable
		code = "no_meeting_source"
		message = "no meeting data source available"
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
		code = "timeout"
		message = "request timed out"
	case errors.Is(err, context.Canceled):
		status = 499
		code = "canceled"
		message = "request canceled"
	}

	s.writeError(w, r, status, code, message, details)
}

func (s *server) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string, details map[string]any) {
	if rid := requestIDFromContext(r.Context()); rid != "" {
		w.Header().Set(requestIDHeader, rid)
	}
	writeJSON(w, status, model.ErrorResponse{
		Error:     model.APIError{Code: code, Message: message, Details: details},
		RequestID: requestIDFromContext(r.Context()),
	})
}

func (s *server) requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := strings.TrimSpace(r.Header.Get(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, requestID)
		ctx := context.WithValue(r.Context(), requestIDContext, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}

		duration := time.Since(started)
		if s.metrics != nil {
			s.metrics.ObserveHTTP(route, r.Method, status, duration)
		}

		s.logger.Info("http_request",
			"request_id", requestIDFromContext(r.Context()),
			"method", r.Method,
			"route", route,
			"path", r.URL.Path,
			"status", status,
			"bytes", ww.BytesWritten(),
			"duration_ms", duration.Milliseconds(),
		)
	})
}

func (s *server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", "request_id", requestIDFromContext(r.Context()), "panic", rec)
				s.writeError(w, r, http.StatusInternalServerError, "internal_error", "internal server error", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *server) passwordAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		password := strings.TrimSpace(r.Header.Get(passwordHeader))
		if password == "" {
			password = strings.TrimSpace(r.URL.Query().Get("password"))
		}
		if password == "" {
			s.writeError(w, r, http.StatusUnauthorized, "unauthorized", "authentication required", nil)
			return
		}
		if !verifySecret(password, s.cfg.Password) {
			s.writeError(w, r, http.StatusUnauthorized, "unauthorized", "invalid password", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *server) webhookAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get(webhookHeader))
		if token == "" || !verifySecret(token, s.cfg.WebhookToken) {
			s.writeError(w, r, http.StatusUnauthorized, "unauthorized", "invalid webhook token", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// verifySecret compares a provided secret against the configured one. A
// configured value that looks like a bcrypt hash is compared with bcrypt;
// anything else uses a constant-time equality check.
func verifySecret(provided, configured string) bool {
	if strings.HasPrefix(configured, "$2a$") || strings.HasPrefix(configured, "$2b$") || strings.HasPrefix(configured, "$2y$") {
		return bcrypt.CompareHashAndPassword([]byte(configured), []byte(provided)) == nil
	}
	return subtle.ConstantTimeCompare([]byte(provided), []byte(configured)) == 1
}

func splitAttendees(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	attendees := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part != "" {
			attendees = append(attendees, part)
		}
	}
	return attendees
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func ensureBodyFullyConsumed(decoder *json.Decoder) error {
	var extra any
	if err := decoder.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("multiple JSON values")
		}
		return err
	}
	return nil
}

func requestIDFromContext(ctx context.Context) string {
	value, _ := ctx.Value(requestIDContext).(string)
	return value
}

func detailsForError(err error) map[string]any {
	if err == nil {
		return nil
	}
	details := map[string]any{"error": err.Error()}
	var upstreamErr *anthropic.Error
	if errors.As(err, &upstreamErr) {
		details["upstream_status"] = upstreamErr.StatusCode
		if upstreamErr.Body != "" {
			details["upstream_body"] = upstreamErr.Body
		}
	}
	return details
}
