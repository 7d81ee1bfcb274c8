// Package server - HTTP API for layout detection.
package server

import (
	"net/http"

	"github.com/nvr-ai/go-layout/inference"
	"github.com/nvr-ai/go-layout/models/postprocess"
	"github.com/nvr-ai/go-layout/render"
	"go.uber.org/zap"
)

// DefaultMaxUploadBytes is the upload limit used when Options leaves it unset.
const DefaultMaxUploadBytes = 50 << 20

// Options configures a Server.
type Options struct {
	// Defaults fill in inference parameters a request does not set.
	Defaults inference.Params
	// MaxUploadBytes bounds request bodies.
	MaxUploadBytes int64
	// Style is used by the annotated image endpoint.
	Style render.Style
}

// Server serves the layout detection endpoints.
type Server struct {
	detector  inference.Detector
	pipeline  *postprocess.Pipeline
	defaults  inference.Params
	maxUpload int64
	style     render.Style
	logger    *zap.Logger
}

// New creates a server around a detector and a post-processing pipeline.
//
// Arguments:
//   - detector: The inference backend.
//   - pipeline: The confidence filter and layout rules.
//   - opts: Request defaults and limits.
//   - logger: The request logger.
//
// Returns:
//   - *Server: The server.
func New(detector inference.Detector, pipeline *postprocess.Pipeline, opts Options, logger *zap.Logger) *Server {
	if opts.MaxUploadBytes <= 0 {
		opts.MaxUploadBytes = DefaultMaxUploadBytes
	}
	if opts.Defaults == (inference.Params{}) {
		opts.Defaults = inference.DefaultParams()
	}
	if opts.Style.Palette == nil {
		opts.Style = render.DefaultStyle()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		detector:  detector,
		pipeline:  pipeline,
		defaults:  opts.Defaults,
		maxUpload: opts.MaxUploadBytes,
		style:     opts.Style,
		logger:    logger,
	}
}

// Routes returns the HTTP handler with all endpoints and middleware.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.HomeHandler)
	mux.HandleFunc("GET /health", s.HealthHandler)
	mux.HandleFunc("GET /openapi.json", s.OpenAPIHandler)
	mux.HandleFunc("GET /docs", s.SwaggerHandler)
	mux.HandleFunc("GET /redoc", s.RedocHandler)
	mux.HandleFunc("POST /infer", s.InferHandler)
	mux.HandleFunc("POST /infer_image", s.InferImageHandler)
	mux.HandleFunc("POST /infer_yolo_txt", s.InferYOLOTextHandler)
	mux.HandleFunc("POST /postprocess", s.PostprocessHandler)

	return requestIDMiddleware(loggingMiddleware(s.logger, corsMiddleware(mux)))
}
