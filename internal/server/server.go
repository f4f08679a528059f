package server

import (
	"context"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"message-board/internal/board"
	"message-board/internal/uploads"
)

type Config struct {
	Addr       string // e.g. "0.0.0.0:5000"
	Version    string
	StaticPage string // path of the client page served on "/"

	MaxUploadBytes     int64 // 0 means no limit
	RateLimitPerMinute int   // per client IP on POST routes, 0 disables

	Board   *board.Board
	Uploads uploads.Store
	Logger  *zap.Logger
}

type Server struct {
	httpServer *http.Server
	handler    http.Handler

	board   *board.Board
	uploads uploads.Store
	log     *zap.Logger
	metrics *metrics
	limiter *rateLimiter

	staticPage     string
	maxUploadBytes int64
	version        string
	startedAt      time.Time
}

func New(cfg Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		board:          cfg.Board,
		uploads:        cfg.Uploads,
		log:            logger,
		metrics:        newMetrics(cfg.Board),
		staticPage:     cfg.StaticPage,
		maxUploadBytes: cfg.MaxUploadBytes,
		version:        cfg.Version,
		startedAt:      time.Now(),
	}
	if cfg.RateLimitPerMinute > 0 {
		s.limiter = newRateLimiter(cfg.RateLimitPerMinute, time.Minute)
	}

	mux := http.NewServeMux()

	// Board
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /send", s.handleSend)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("GET /messages", s.handleMessages)
	mux.HandleFunc("GET /uploads/{filename}", s.handleUploadedFile)

	// JSON API
	mux.HandleFunc("GET /api/messages", s.handleAPIListMessages)
	mux.HandleFunc("POST /api/messages", s.handleAPICreateMessage)
	mux.HandleFunc("POST /api/upload", s.handleAPIUpload)

	// Operations
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", s.metrics.handler())

	// Wrap middleware: requestID -> logging -> security headers -> rate limit -> compression -> mux
	var handler http.Handler = mux
	handler = compressionMiddleware(handler)
	if s.limiter != nil {
		handler = s.limiter.middleware(handler)
	}
	handler = securityHeadersMiddleware(handler)
	handler = s.loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)
	s.handler = handler

	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return s
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.limiter != nil {
		s.limiter.stop()
	}
	return s.httpServer.Shutdown(ctx)
}
