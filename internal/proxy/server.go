// Package proxy serves a small HTTP endpoint that forwards prompts to Gemini
// with a key held by the server, so clients never see it.
package proxy

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const (
	DefaultModel       = "gemini-1.5-flash"
	DefaultTemperature = float32(0.1)

	// ReadHeaderTimeout bounds slow clients on the listener.
	ReadHeaderTimeout = 5 * time.Second

	generationFailed = "An error occurred during AI generation. Please check the server logs."
	notConfigured    = "Server API Client is not configured. (Missing GEMINI_API_KEY)"
)

// Request is the body of POST /api/gemini_proxy.
type Request struct {
	Model       string   `json:"model"`
	Prompt      string   `json:"prompt" validate:"required"`
	Temperature *float32 `json:"temperature" validate:"omitempty,gte=0,lte=2"`
}

// Response carries the generated text in the shape the batch response
// reader understands.
type Response struct {
	Response string `json:"response"`
}

// ErrorResponse reports a failure as {"detail": ...}.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// Server forwards prompts to a Generator.
type Server struct {
	gen      Generator
	log      *logrus.Logger
	validate *validator.Validate
}

// NewServer returns a proxy server. A nil gen keeps the server up but
// answers every prompt with 503.
func NewServer(gen Generator, log *logrus.Logger) *Server {
	return &Server{gen: gen, log: log, validate: validator.New()}
}

// Router returns the HTTP handler of the proxy.
func (s *Server) Router() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(s.logRequests)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	router.Get("/", s.health)
	router.Post("/api/gemini_proxy", s.generate)
	return router
}

// Create wraps the router in an http.Server listening on addr.
func (s *Server) Create(addr string) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: ReadHeaderTimeout,
	}
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "Plower Gemini Proxy is running"})
}

func (s *Server) generate(w http.ResponseWriter, r *http.Request) {
	if s.gen == nil {
		writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Detail: notConfigured})
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Detail: "invalid request body: " + err.Error()})
		return
	}
	if err := s.validate.Struct(req); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, ErrorResponse{Detail: err.Error()})
		return
	}
	model := req.Model
	if model == "" {
		model = DefaultModel
	}
	temperature := DefaultTemperature
	if req.Temperature != nil {
		temperature = *req.Temperature
	}
	actual := ResolveModel(model)

	log := s.log.WithFields(logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"model":      actual,
	})
	text, err := s.gen.Generate(r.Context(), actual, req.Prompt, temperature)
	if err != nil {
		// details stay in the server log
		log.WithError(err).Error("gemini call failed")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Detail: generationFailed})
		return
	}
	log.WithField("answer_chars", len([]rune(text))).Info("proxied prompt")
	writeJSON(w, http.StatusOK, Response{Response: text})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.WithFields(logrus.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   ww.Status(),
			"duration": time.Since(start),
		}).Debug("request served")
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
