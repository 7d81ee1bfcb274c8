package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/nvr-ai/go-layout/images"
	"github.com/nvr-ai/go-layout/inference"
	"github.com/nvr-ai/go-layout/models/postprocess"
	"github.com/nvr-ai/go-layout/render"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// multipartMemory is the part of an upload kept in memory while parsing.
const multipartMemory = 32 << 20

var (
	// errBadRequest marks request errors that are the caller's fault.
	errBadRequest = errors.New("bad request")
	errTooLarge   = errors.New("request body too large")
)

// healthChecker is implemented by detectors that depend on a remote service.
type healthChecker interface {
	CheckHealth(ctx context.Context) error
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status  string   `json:"status"`
	Classes []string `json:"classes"`
	Weights string   `json:"weights"`
	Error   string   `json:"error,omitempty"`
}

// PostprocessRequest is the body of POST /postprocess.
type PostprocessRequest struct {
	Width      int                        `json:"width"`
	Height     int                        `json:"height"`
	Detections []postprocess.RawDetection `json:"detections"`
}

// detection is the outcome of running an upload through the detector and
// the pipeline. The image must be closed by the caller.
type detection struct {
	image  *images.Image
	result *postprocess.Result
}

// HomeHandler serves the landing page.
func (s *Server) HomeHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, homePage)
}

// HealthHandler reports the loaded classes and model.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:  "ok",
		Classes: s.pipeline.Vocabulary().Names(),
		Weights: s.detector.Source(),
	}

	status := http.StatusOK
	if hc, ok := s.detector.(healthChecker); ok {
		if err := hc.CheckHealth(r.Context()); err != nil {
			resp.Status = "degraded"
			resp.Error = err.Error()
			status = http.StatusServiceUnavailable
		}
	}
	respondJSON(w, resp, status)
}

// SwaggerHandler serves the interactive API documentation.
func (s *Server) SwaggerHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, swaggerPage)
}

// RedocHandler serves the API reference page.
func (s *Server) RedocHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, redocPage)
}

// OpenAPIHandler serves the API description.
func (s *Server) OpenAPIHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, openAPIDocument)
}

// InferHandler answers with the final regions as JSON.
func (s *Server) InferHandler(w http.ResponseWriter, r *http.Request) {
	d, ok := s.detect(w, r)
	if !ok {
		return
	}
	defer d.image.Close()

	respondJSON(w, render.NewPayload(d.result.Regions, d.image.Width, d.image.Height), http.StatusOK)
}

// InferImageHandler answers with the upload annotated as PNG.
func (s *Server) InferImageHandler(w http.ResponseWriter, r *http.Request) {
	d, ok := s.detect(w, r)
	if !ok {
		return
	}
	defer d.image.Close()

	png, err := render.AnnotatePNG(d.image.Mat, d.result.Regions, s.style)
	if err != nil {
		s.fail(w, r, errors.Wrap(err, "render annotations"))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(png)))
	_, _ = w.Write(png)
}

// InferYOLOTextHandler answers with YOLO label lines.
func (s *Server) InferYOLOTextHandler(w http.ResponseWriter, r *http.Request) {
	d, ok := s.detect(w, r)
	if !ok {
		return
	}
	defer d.image.Close()

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, render.YOLOText(d.result.Regions))
}

// PostprocessHandler runs raw detections from an external detector through
// the pipeline and answers like InferHandler.
func (s *Server) PostprocessHandler(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	var req PostprocessRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.fail(w, r, errors.Wrap(requestError(err), "decode body"))
		return
	}

	res, err := s.pipeline.Run(req.Detections, req.Width, req.Height)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.logResult(r, res)

	respondJSON(w, render.NewPayload(res.Regions, req.Width, req.Height), http.StatusOK)
}

// detect reads the upload, runs the detector and the pipeline. On failure it
// has already written the error response.
func (s *Server) detect(w http.ResponseWriter, r *http.Request) (*detection, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		s.fail(w, r, errors.Wrap(requestError(err), "parse form"))
		return nil, false
	}
	defer r.MultipartForm.RemoveAll()

	params, err := s.params(r)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		s.fail(w, r, errors.Wrap(errBadRequest, "no file uploaded"))
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.fail(w, r, errors.Wrap(requestError(err), "read file"))
		return nil, false
	}

	img, err := images.Decode(data)
	if err != nil {
		s.fail(w, r, err)
		return nil, false
	}

	start := time.Now()
	raw, err := s.detector.Detect(r.Context(), img, params)
	if err != nil {
		img.Close()
		s.fail(w, r, err)
		return nil, false
	}
	s.requestLogger(r).Debug("detector finished",
		zap.Int("raw", len(raw)),
		zap.Duration("latency", time.Since(start)),
	)

	res, err := s.pipeline.Run(raw, img.Width, img.Height)
	if err != nil {
		img.Close()
		s.fail(w, r, err)
		return nil, false
	}
	s.logResult(r, res)

	return &detection{image: img, result: res}, true
}

// params reads the optional inference form fields over the server defaults.
func (s *Server) params(r *http.Request) (inference.Params, error) {
	p := s.defaults

	if v := strings.TrimSpace(r.FormValue("imgsz")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, errors.Wrapf(errBadRequest, "imgsz %q is not an integer", v)
		}
		p.ImageSize = n
	}
	if v := strings.TrimSpace(r.FormValue("iou")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, errors.Wrapf(errBadRequest, "iou %q is not a number", v)
		}
		p.IoU = f
	}
	if v := strings.TrimSpace(r.FormValue("conf_min")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return p, errors.Wrapf(errBadRequest, "conf_min %q is not a number", v)
		}
		p.MinConfidence = f
	}

	return p, p.Validate()
}

func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return s.logger.With(zap.String("request_id", RequestID(r.Context())))
}

func (s *Server) logResult(r *http.Request, res *postprocess.Result) {
	s.requestLogger(r).Info("layout regions",
		zap.String("path", r.URL.Path),
		zap.Int("raw", res.Stats.Raw),
		zap.Int("filtered", res.Stats.Filtered),
		zap.Int("final", res.Stats.Final),
	)
}

// fail writes an error response with the status matching the error's cause.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.requestLogger(r).Error("request failed", zap.Int("status", status), zap.Error(err))
	} else {
		s.requestLogger(r).Warn("request rejected", zap.Int("status", status), zap.Error(err))
	}
	respondError(w, err.Error(), status)
}

// requestError classifies body reading errors: an oversized body becomes
// http.StatusRequestEntityTooLarge, everything else a bad request.
func requestError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return errors.Wrapf(errTooLarge, "limit %d bytes", tooLarge.Limit)
	}
	return errors.Wrap(errBadRequest, err.Error())
}

// StatusFor maps an error to its HTTP status code.
func StatusFor(err error) int {
	switch errors.Cause(err) {
	case errBadRequest, inference.ErrInvalidParams, images.ErrUnsupportedFormat, images.ErrDecode,
		postprocess.ErrInvalidImageSize:
		return http.StatusBadRequest
	case errTooLarge:
		return http.StatusRequestEntityTooLarge
	case postprocess.ErrInvalidDetection:
		return http.StatusUnprocessableEntity
	case inference.ErrDetector:
		return http.StatusBadGateway
	case context.Canceled, context.DeadlineExceeded:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, message string, status int) {
	respondJSON(w, map[string]string{"error": message}, status)
}
