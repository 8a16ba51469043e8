// Package suggest is the client for the hosted next-edit service.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/google/uuid"

	"nextedit/logger"
)

const (
	DefaultSuggestPath = "/v1/next_edit"
	DefaultMetricsPath = "/v1/next_edit_metrics"
	DefaultAPIKeyEnv   = "NEXTEDIT_API_TOKEN"

	metricsTimeout = 10 * time.Second
)

// Client talks to the hosted next-edit service. Request bodies for the
// suggest endpoint are brotli-compressed; document contents make them large
// enough to care.
type Client struct {
	HTTPClient *http.Client
	BaseURL    string
	APIKey     string
	DeviceID   string
}

// NewClient returns a client for the service at baseURL. An empty apiKey is
// resolved from the environment variable named by apiKeyEnv, falling back to
// DefaultAPIKeyEnv. The DeviceID identifies this process in metrics events.
func NewClient(baseURL, apiKey, apiKeyEnv string) (*Client, error) {
	resolved := apiKey
	if resolved == "" {
		resolved = os.Getenv(envVarName(apiKeyEnv))
	}
	if resolved == "" {
		return nil, fmt.Errorf("api key not found: set %s or provide api_key in config", envVarName(apiKeyEnv))
	}

	return &Client{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		BaseURL:    baseURL,
		APIKey:     resolved,
		DeviceID:   uuid.NewString(),
	}, nil
}

func envVarName(apiKeyEnv string) string {
	if apiKeyEnv != "" {
		return apiKeyEnv
	}
	return DefaultAPIKeyEnv
}

// DoSuggest sends a next-edit request and decodes the response.
func (c *Client) DoSuggest(ctx context.Context, req *SuggestRequest) (*SuggestResponse, error) {
	defer logger.Trace("suggest.DoSuggest")()

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var body bytes.Buffer
	bw := brotli.NewWriter(&body)
	if _, err := bw.Write(payload); err != nil {
		return nil, fmt.Errorf("compress request: %w", err)
	}
	if err := bw.Close(); err != nil {
		return nil, fmt.Errorf("compress request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+DefaultSuggestPath, &body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Content-Encoding", "br")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	logger.Debug("suggest request: file_path=%s, contents=%dB, compressed=%dB",
		req.FilePath, len(req.FileContents), body.Len())

	httpResp, err := c.HTTPClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(httpResp.Body)
		return nil, fmt.Errorf("request failed with status %d: %s", httpResp.StatusCode, string(respBody))
	}

	var resp SuggestResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	logger.Debug("suggest response: id=%s, completion=%dB, extra=%d",
		resp.SuggestionID, len(resp.Completion), len(resp.Completions))
	return &resp, nil
}

// SendMetrics posts one usage event without blocking the caller. Delivery is
// best effort: failures are logged at debug and dropped. The request runs
// under its own timeout so it survives the caller returning.
func (c *Client) SendMetrics(req *MetricsRequest) {
	if req.DeviceID == "" {
		req.DeviceID = c.DeviceID
	}
	body, err := json.Marshal(req)
	if err != nil {
		logger.Debug("suggest metrics: marshal failed: %v", err)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), metricsTimeout)
		defer cancel()

		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+DefaultMetricsPath, bytes.NewReader(body))
		if err != nil {
			logger.Debug("suggest metrics: create request failed: %v", err)
			return
		}
		httpReq.Header.Set("Content-Type", "application/json")
		httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

		httpResp, err := c.HTTPClient.Do(httpReq)
		if err != nil {
			logger.Debug("suggest metrics: send failed: %v", err)
			return
		}
		defer httpResp.Body.Close()

		if httpResp.StatusCode != http.StatusOK {
			respBody, _ := io.ReadAll(httpResp.Body)
			logger.Debug("suggest metrics: status %d: %s", httpResp.StatusCode, string(respBody))
		}
	}()
}
