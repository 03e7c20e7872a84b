package classifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"entomo/internal/services"
	"entomo/internal/services/vlm"
)

const defaultHTTPTimeout = 15 * time.Second

// HTTPClient posts the raw image to an inference endpoint and parses the
// predictions in the response body.
type HTTPClient struct {
	endpoint   string
	httpClient *http.Client
}

// NewHTTPClient constructs a client. timeout <= 0 uses the default. A
// supplied client is copied and given the timeout when it has none.
func NewHTTPClient(endpoint string, timeout time.Duration, client *http.Client) *HTTPClient {
	if timeout <= 0 {
		timeout = defaultHTTPTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	} else if client.Timeout == 0 {
		copied := *client
		copied.Timeout = timeout
		client = &copied
	}
	return &HTTPClient{endpoint: strings.TrimSpace(endpoint), httpClient: client}
}

// Predict sends img and returns the predictions.
func (c *HTTPClient) Predict(ctx context.Context, img vlm.Image) ([]Prediction, error) {
	if c.endpoint == "" {
		return nil, services.Wrap(services.ErrConfiguration, "classifier", "predict", "endpoint not configured", nil)
	}
	if err := img.Validate(); err != nil {
		return nil, services.Wrap(services.ErrValidation, "classifier", "predict", "", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(img.Data))
	if err != nil {
		return nil, fmt.Errorf("classifier request: %w", err)
	}
	req.Header.Set("Content-Type", img.MIMEType)
	req.Header.Set("Accept", "application/json")
	if img.Name != "" {
		req.Header.Set("X-Image-Name", img.Name)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, services.Wrap(services.ErrExternalService, "classifier", "predict", "request failed", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "classifier", "predict", "read body", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrExternalService, "classifier", "predict",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	preds, err := ParsePredictions(body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalService, "classifier", "predict", "", err)
	}
	return preds, nil
}
