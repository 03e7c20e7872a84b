package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"entomo/internal/cascade"
	"entomo/internal/logging"
	"entomo/internal/services"
	"entomo/internal/services/classifier"
	"entomo/internal/services/vlm"
)

const maxRequestBytes = 32 << 20

// Journal stores finished results.
type Journal interface {
	Record(ctx context.Context, sessionID, imageName string, result cascade.Result) error
}

// SessionGauge is told how many sessions exist.
type SessionGauge interface {
	SetSessions(n int)
}

// Options configures a Server.
type Options struct {
	Bind         string
	Token        string
	Threshold    float64
	TopK         int
	Orchestrator *cascade.Orchestrator
	// Predictor scores images for requests that carry no predictions.
	Predictor classifier.Predictor
	Journal   Journal
	Gauge     SessionGauge
	// Metrics is mounted at /metrics when non-nil.
	Metrics http.Handler
	Logger  *slog.Logger
}

// Server hosts classification sessions over HTTP.
type Server struct {
	opts   Options
	logger *slog.Logger

	mu       sync.Mutex
	sessions map[string]*cascade.Session

	handler  http.Handler
	listener net.Listener
	server   *http.Server
}

// NewServer builds the routes.
func NewServer(opts Options) (*Server, error) {
	if opts.Orchestrator == nil {
		return nil, errors.New("api server: orchestrator required")
	}
	if opts.TopK < 1 {
		return nil, fmt.Errorf("api server: top_k must be at least 1, got %d", opts.TopK)
	}
	s := &Server{
		opts:     opts,
		logger:   logging.NewComponentLogger(opts.Logger, "api-server"),
		sessions: make(map[string]*cascade.Session),
	}

	v1 := http.NewServeMux()
	v1.HandleFunc("POST /v1/sessions/{id}/classify", s.handleClassify)
	v1.HandleFunc("GET /v1/sessions/{id}", s.handleSession)
	v1.HandleFunc("DELETE /v1/sessions/{id}", s.handleDeleteSession)
	v1.HandleFunc("GET /v1/sessions/{id}/threshold", s.handleGetThreshold)
	v1.HandleFunc("PUT /v1/sessions/{id}/threshold", s.handlePutThreshold)

	mux := http.NewServeMux()
	mux.Handle("/v1/", authMiddleware(opts.Token, v1))
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	s.handler = mux

	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s, nil
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start listens on the configured address and serves until ctx ends.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.opts.Bind)
	if err != nil {
		return fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener

	go func() {
		if err := s.server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.ErrorWithContext(s.logger, "api server error", "api_serve_failed",
				logging.String(logging.FieldErrorHint, "check api.bind and restart entomo serve"),
				logging.Error(err),
			)
		}
	}()

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	s.logger.Info("api server listening", logging.String("address", listener.Addr().String()))
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Stop shuts the server down and cancels running requests.
func (s *Server) Stop() {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.server.Shutdown(shutdownCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, session := range s.sessions {
		session.Cancel()
	}
}

func (s *Server) session(id string) (*cascade.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[id]; ok {
		return session, nil
	}
	session, err := cascade.NewSession(id, s.opts.Orchestrator, s.opts.Threshold, s.opts.TopK)
	if err != nil {
		return nil, err
	}
	s.sessions[id] = session
	if s.opts.Gauge != nil {
		s.opts.Gauge.SetSessions(len(s.sessions))
	}
	return session, nil
}

// existingSession looks up id without creating it.
func (s *Server) existingSession(id string) (*cascade.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	var req ClassifyRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	data, err := base64.StdEncoding.DecodeString(req.Image)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "image must be base64 encoded")
		return
	}
	img := vlm.NewImage(req.ImageName, req.MIMEType, data)

	preds := req.Predictions
	if len(preds) == 0 {
		if s.opts.Predictor == nil {
			s.writeError(w, http.StatusBadRequest, "predictions required: no classifier configured")
			return
		}
		preds, err = s.opts.Predictor.Predict(r.Context(), img)
		if err != nil {
			s.writeError(w, services.HTTPStatus(err), err.Error())
			return
		}
	}

	session, err := s.session(id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	ctx := services.WithSessionID(r.Context(), session.ID())
	result, err := session.Classify(ctx, img, classifier.Scores(preds))
	resp := ClassifyResponse{SessionID: session.ID()}
	switch {
	case err == nil:
	case cascade.IsSecondaryFailure(err):
		resp.SecondaryError = err.Error()
	case errors.Is(err, cascade.ErrSuperseded):
		s.writeError(w, http.StatusConflict, "request superseded by a newer classification")
		return
	case errors.Is(err, cascade.ErrEmptyInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, context.Canceled):
		return
	default:
		s.writeError(w, services.HTTPStatus(err), err.Error())
		return
	}
	resp.Result = FromResult(result)
	s.journal(ctx, session.ID(), img.Name, result)
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) journal(ctx context.Context, sessionID, imageName string, result cascade.Result) {
	if s.opts.Journal == nil {
		return
	}
	if err := s.opts.Journal.Record(context.WithoutCancel(ctx), sessionID, imageName, result); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, s.logger), "history record failed", "history_record_failed",
			logging.String(logging.FieldErrorHint, "check paths.history_db permissions"),
			logging.String(logging.FieldImpact, "result not journaled"),
			logging.Error(err),
		)
	}
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.existingSession(strings.TrimSpace(r.PathValue("id")))
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	resp := SessionResponse{SessionID: session.ID(), Threshold: session.Threshold(), TopK: session.TopK()}
	if last, ok := session.Last(); ok {
		converted := FromResult(last)
		resp.Last = &converted
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("id"))
	s.mu.Lock()
	session, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
		if s.opts.Gauge != nil {
			s.opts.Gauge.SetSessions(len(s.sessions))
		}
	}
	s.mu.Unlock()
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	session.Cancel()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetThreshold(w http.ResponseWriter, r *http.Request) {
	session, ok := s.existingSession(strings.TrimSpace(r.PathValue("id")))
	if !ok {
		s.writeError(w, http.StatusNotFound, "session not found")
		return
	}
	s.writeJSON(w, http.StatusOK, SessionResponse{SessionID: session.ID(), Threshold: session.Threshold(), TopK: session.TopK()})
}

func (s *Server) handlePutThreshold(w http.ResponseWriter, r *http.Request) {
	var req ThresholdRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Threshold == nil && req.TopK == nil {
		s.writeError(w, http.StatusBadRequest, "threshold or topK required")
		return
	}
	if req.Threshold != nil && (*req.Threshold < 0 || *req.Threshold > 100) {
		s.writeError(w, http.StatusBadRequest, "threshold must be between 0 and 100")
		return
	}
	if req.TopK != nil && *req.TopK < 1 {
		s.writeError(w, http.StatusBadRequest, "topK must be at least 1")
		return
	}
	session, err := s.session(strings.TrimSpace(r.PathValue("id")))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if req.Threshold != nil {
		if err := session.SetThreshold(*req.Threshold); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.TopK != nil {
		if err := session.SetTopK(*req.TopK); err != nil {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	s.logger.Info("session settings updated",
		logging.String(logging.FieldSessionID, session.ID()),
		logging.Float64("threshold", session.Threshold()),
		logging.Int("top_k", session.TopK()),
	)
	s.writeJSON(w, http.StatusOK, SessionResponse{SessionID: session.ID(), Threshold: session.Threshold(), TopK: session.TopK()})
}

func decodeBody(r *http.Request, target any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(target); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("failed to encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, ErrorResponse{Error: message})
}
