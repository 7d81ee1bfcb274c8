package server

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/nvr-ai/go-layout/images"
	"github.com/nvr-ai/go-layout/inference"
	"github.com/nvr-ai/go-layout/models"
	"github.com/nvr-ai/go-layout/models/postprocess"
	"github.com/nvr-ai/go-layout/render"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeDetector struct {
	mu     sync.Mutex
	raw    []postprocess.RawDetection
	err    error
	params inference.Params
	calls  int
}

func (f *fakeDetector) Detect(_ context.Context, _ *images.Image, p inference.Params) ([]postprocess.RawDetection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.params = p
	return f.raw, f.err
}

func (f *fakeDetector) Source() string { return "weights/test.onnx" }

func (f *fakeDetector) Close() error { return nil }

type remoteDetector struct {
	fakeDetector
	healthErr error
}

func (r *remoteDetector) CheckHealth(context.Context) error { return r.healthErr }

// pageDetections is a 200x400 page: a header in and out of the top band, a
// title with an overlapping text, a weak text and a table.
func pageDetections() []postprocess.RawDetection {
	return []postprocess.RawDetection{
		{ClassID: 0, Confidence: 0.9, X1: 0, Y1: 10, X2: 200, Y2: 30},
		{ClassID: 0, Confidence: 0.9, X1: 0, Y1: 100, X2: 200, Y2: 130},
		{ClassID: 1, Confidence: 0.8, X1: 10, Y1: 50, X2: 190, Y2: 90},
		{ClassID: 2, Confidence: 0.9, X1: 12, Y1: 52, X2: 188, Y2: 92},
		{ClassID: 2, Confidence: 0.3, X1: 10, Y1: 200, X2: 190, Y2: 300},
		{ClassID: 3, Confidence: 0.6, X1: 10, Y1: 300, X2: 190, Y2: 380},
	}
}

func newTestServer(t *testing.T, det inference.Detector, opts Options) http.Handler {
	t.Helper()
	vocab, err := models.NewVocabulary([]string{"Header", "Title", "Text", "Table", "Footer"})
	require.NoError(t, err)
	pipeline, err := postprocess.NewPipeline(vocab, postprocess.ThresholdConfig{DefaultConfidence: 0.35})
	require.NoError(t, err)
	return New(det, pipeline, opts, nil).Routes()
}

func pagePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 200, 400))
	for y := 0; y < 400; y++ {
		for x := 0; x < 200; x++ {
			img.Set(x, y, color.White)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func uploadRequest(t *testing.T, path string, file []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if file != nil {
		part, err := writer.CreateFormFile("file", "page.png")
		require.NoError(t, err)
		_, err = part.Write(file)
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, path, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestInferHandler(t *testing.T) {
	det := &fakeDetector{raw: pageDetections()}
	h := newTestServer(t, det, Options{})

	rec := serve(h, uploadRequest(t, "/infer", pagePNG(t), map[string]string{"imgsz": "640"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var payload render.Payload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Equal(t, 200, payload.Width)
	assert.Equal(t, 400, payload.Height)

	names := make([]string, len(payload.Detections))
	for i, d := range payload.Detections {
		names[i] = d.ClassName
	}
	assert.Equal(t, []string{"Header", "Title", "Table"}, names)
	assert.Equal(t, 10, payload.Detections[1].X1)
	assert.InDelta(t, 0.5, payload.Detections[1].CX, 1e-9)

	assert.Equal(t, inference.Params{
		ImageSize:     640,
		IoU:           inference.DefaultIoU,
		MinConfidence: inference.DefaultMinConfidence,
	}, det.params)
}

func TestInferYOLOTextHandler(t *testing.T) {
	h := newTestServer(t, &fakeDetector{raw: pageDetections()}, Options{})

	rec := serve(h, uploadRequest(t, "/infer_yolo_txt", pagePNG(t), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "text/plain; charset=utf-8", rec.Header().Get("Content-Type"))
	lines := strings.Split(strings.TrimSuffix(rec.Body.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "0 0.500000 0.050000 1.000000 0.050000", lines[0])
	assert.True(t, strings.HasPrefix(lines[2], "3 "))
}

func TestInferYOLOTextHandler_NoRegions(t *testing.T) {
	h := newTestServer(t, &fakeDetector{}, Options{})

	rec := serve(h, uploadRequest(t, "/infer_yolo_txt", pagePNG(t), nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "", rec.Body.String())
}

func TestInferImageHandler(t *testing.T) {
	h := newTestServer(t, &fakeDetector{raw: pageDetections()}, Options{})

	rec := serve(h, uploadRequest(t, "/infer_image", pagePNG(t), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	out, err := png.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 200, 400), out.Bounds())
}

func TestInfer_Errors(t *testing.T) {
	page := pagePNG(t)

	tests := []struct {
		name   string
		det    *fakeDetector
		opts   Options
		file   []byte
		fields map[string]string
		expect int
	}{
		{
			name:   "missing file",
			det:    &fakeDetector{},
			expect: http.StatusBadRequest,
		},
		{
			name:   "not an image",
			det:    &fakeDetector{},
			file:   []byte("plain text is not a page"),
			expect: http.StatusBadRequest,
		},
		{
			name:   "bad imgsz",
			det:    &fakeDetector{},
			file:   page,
			fields: map[string]string{"imgsz": "large"},
			expect: http.StatusBadRequest,
		},
		{
			name:   "iou out of range",
			det:    &fakeDetector{},
			file:   page,
			fields: map[string]string{"iou": "2"},
			expect: http.StatusBadRequest,
		},
		{
			name:   "upload too large",
			det:    &fakeDetector{},
			opts:   Options{MaxUploadBytes: 1024},
			file:   make([]byte, 4096),
			expect: http.StatusRequestEntityTooLarge,
		},
		{
			name:   "detector failure",
			det:    &fakeDetector{err: errors.Wrap(inference.ErrDetector, "model service down")},
			file:   page,
			expect: http.StatusBadGateway,
		},
		{
			name: "invalid detection",
			det: &fakeDetector{raw: []postprocess.RawDetection{
				{ClassID: 1, Confidence: math.NaN(), X1: 0, Y1: 0, X2: 10, Y2: 10},
			}},
			file:   page,
			expect: http.StatusUnprocessableEntity,
		},
		{
			name: "class outside the vocabulary",
			det: &fakeDetector{raw: []postprocess.RawDetection{
				{ClassID: 9, Confidence: 0.9, X1: 0, Y1: 0, X2: 10, Y2: 10},
			}},
			file:   page,
			expect: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestServer(t, tt.det, tt.opts)
			rec := serve(h, uploadRequest(t, "/infer", tt.file, tt.fields))

			assert.Equal(t, tt.expect, rec.Code, rec.Body.String())

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestInfer_WrongMethod(t *testing.T) {
	h := newTestServer(t, &fakeDetector{}, Options{})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/infer", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestPreflight(t *testing.T) {
	h := newTestServer(t, &fakeDetector{}, Options{})

	rec := serve(h, httptest.NewRequest(http.MethodOptions, "/infer", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "POST, GET, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
}

func TestRequestID_Propagated(t *testing.T) {
	h := newTestServer(t, &fakeDetector{}, Options{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "1b4e28ba-2fa1-11d2-883f-0016d3cca427")
	rec := serve(h, req)
	assert.Equal(t, "1b4e28ba-2fa1-11d2-883f-0016d3cca427", rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "not-a-uuid\r\n")
	rec = serve(h, req)
	assert.NotEqual(t, "not-a-uuid\r\n", rec.Header().Get(RequestIDHeader))
}

func TestHealthHandler(t *testing.T) {
	h := newTestServer(t, &fakeDetector{}, Options{})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, HealthResponse{
		Status:  "ok",
		Classes: []string{"Header", "Title", "Text", "Table", "Footer"},
		Weights: "weights/test.onnx",
	}, resp)
}

func TestHealthHandler_RemoteDown(t *testing.T) {
	h := newTestServer(t, &remoteDetector{healthErr: errors.New("connection refused")}, Options{})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "degraded", resp.Status)
	assert.Equal(t, "connection refused", resp.Error)
}

func TestPostprocessHandler(t *testing.T) {
	det := &fakeDetector{}
	h := newTestServer(t, det, Options{})

	body, err := json.Marshal(PostprocessRequest{Width: 200, Height: 400, Detections: pageDetections()})
	require.NoError(t, err)

	rec := serve(h, httptest.NewRequest(http.MethodPost, "/postprocess", bytes.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var payload render.Payload
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &payload))
	assert.Len(t, payload.Detections, 3)
	assert.Equal(t, 0, det.calls, "postprocess must not run the detector")

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/postprocess", strings.NewReader(`{"width":0,"height":10}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, httptest.NewRequest(http.MethodPost, "/postprocess", strings.NewReader(`{"boxes":[]}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHomeAndOpenAPI(t *testing.T) {
	h := newTestServer(t, &fakeDetector{}, Options{})

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "/infer_yolo_txt")

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, json.Valid(rec.Body.Bytes()))

	for _, path := range []string{"/docs", "/redoc"} {
		rec = serve(h, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"), path)
		assert.Contains(t, rec.Body.String(), "/openapi.json", path)
	}

	rec = serve(h, httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err    error
		expect int
	}{
		{errors.Wrap(images.ErrUnsupportedFormat, "upload"), http.StatusBadRequest},
		{errors.Wrap(postprocess.ErrInvalidDetection, "detection 2"), http.StatusUnprocessableEntity},
		{errors.Wrap(inference.ErrDetector, "run"), http.StatusBadGateway},
		{errors.Wrap(postprocess.ErrClassOutOfRange, "class 12"), http.StatusInternalServerError},
		{context.DeadlineExceeded, http.StatusGatewayTimeout},
		{errors.New("anything else"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expect, StatusFor(tt.err), tt.err.Error())
	}
}
