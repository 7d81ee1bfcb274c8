package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nvr-ai/go-layout/images"
	"github.com/nvr-ai/go-layout/models/postprocess"
	"github.com/pkg/errors"
)

// HTTPDetector delegates inference to an external model service that
// accepts a multipart upload and answers with raw detections.
type HTTPDetector struct {
	inferenceURL string
	healthURL    string
	client       *http.Client
}

// NewHTTPDetector creates a detector that posts images to inferenceURL.
//
// Arguments:
//   - inferenceURL: The prediction endpoint.
//   - healthURL: The health endpoint. Empty disables CheckHealth.
//   - timeout: The per-request timeout.
//
// Returns:
//   - *HTTPDetector: The detector.
func NewHTTPDetector(inferenceURL, healthURL string, timeout time.Duration) *HTTPDetector {
	return &HTTPDetector{
		inferenceURL: inferenceURL,
		healthURL:    healthURL,
		client:       &http.Client{Timeout: timeout},
	}
}

// Source returns the inference URL.
func (h *HTTPDetector) Source() string {
	return h.inferenceURL
}

// Detect uploads the original image bytes with the request parameters.
func (h *HTTPDetector) Detect(
	ctx context.Context,
	img *images.Image,
	params Params,
) ([]postprocess.RawDetection, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if len(img.Data) == 0 {
		return nil, errors.Wrap(ErrDetector, "image has no encoded bytes to upload")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", "image."+string(img.Format))
	if err != nil {
		return nil, errors.Wrap(err, "create form file")
	}
	if _, err := part.Write(img.Data); err != nil {
		return nil, errors.Wrap(err, "copy image data")
	}

	fields := map[string]string{
		"imgsz":    strconv.Itoa(params.ImageSize),
		"iou":      strconv.FormatFloat(params.IoU, 'f', -1, 64),
		"conf_min": strconv.FormatFloat(params.MinConfidence, 'f', -1, 64),
	}
	for k, v := range fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, errors.Wrapf(err, "write field %s", k)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, "close multipart writer")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.inferenceURL, body)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, requestFailure(ctx, err, "send request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Wrapf(ErrDetector, "inference failed with status: %d", resp.StatusCode)
	}

	var result struct {
		Detections []postprocess.RawDetection `json:"detections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, requestFailure(ctx, err, "decode response")
	}

	return result.Detections, nil
}

// requestFailure keeps cancellation and timeouts distinguishable from a
// failing model service, which is reported as ErrDetector.
func requestFailure(ctx context.Context, err error, op string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return errors.Wrap(ctxErr, op)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return errors.Wrapf(context.DeadlineExceeded, "%s: %v", op, err)
	}
	return errors.Wrapf(ErrDetector, "%s: %v", op, err)
}

// CheckHealth reports whether the model service answers its health endpoint.
func (h *HTTPDetector) CheckHealth(ctx context.Context) error {
	if h.healthURL == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.healthURL, nil)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return errors.Wrap(err, "model service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("model service unhealthy: %d", resp.StatusCode)
	}
	return nil
}

// Close releases idle connections.
func (h *HTTPDetector) Close() error {
	h.client.CloseIdleConnections()
	return nil
}
