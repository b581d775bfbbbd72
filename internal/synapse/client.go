package synapse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/openbuilders/synapse-batch/internal/errors"
	"github.com/openbuilders/synapse-batch/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/ratelimit"
)

const (
	EndpointBatch = "batch"
	EndpointNodes = "nodes"
)

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	Fingerprint  string
	OAuthKey     string
	UserIP       string
	// RequestsPerSecond caps outgoing requests, 0 disables the limit.
	RequestsPerSecond int
}

// Client is the HTTP transport to the SynapsePay REST API. It only moves
// documents, building and parsing them is up to the caller.
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    ratelimit.Limiter
	log        *slog.Logger
}

// errorDocument is the error shape returned with non-2xx responses.
type errorDocument struct {
	Error struct {
		En string `json:"en"`
	} `json:"error"`
	ErrorCode json.RawMessage `json:"error_code"`
}

func New(config *Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	limiter := ratelimit.NewUnlimited()
	if config.RequestsPerSecond > 0 {
		limiter = ratelimit.New(config.RequestsPerSecond)
	}

	return &Client{
		config:     config,
		httpClient: httpClient,
		limiter:    limiter,
		log:        slog.With("component", "synapse-client"),
	}
}

// CreateBatch posts a batch transaction payload originating from the node
// and returns the raw response document.
func (c *Client) CreateBatch(ctx context.Context, userID, nodeID string,
	payload any) ([]byte, error) {

	path := fmt.Sprintf("/users/%s/nodes/%s/trans/batch", userID, nodeID)
	return c.post(ctx, EndpointBatch, path, payload)
}

// CreateNode posts a node-create payload for the user.
func (c *Client) CreateNode(ctx context.Context, userID string,
	payload any) ([]byte, error) {

	path := fmt.Sprintf("/users/%s/nodes", userID)
	return c.post(ctx, EndpointNodes, path, payload)
}

func (c *Client) post(ctx context.Context, endpoint, path string,
	payload any) ([]byte, error) {

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", endpoint, err)
	}

	url := strings.TrimRight(c.config.BaseURL, "/") + path

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url,
		bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", endpoint, err)
	}

	c.setHeaders(req)

	c.limiter.Take()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("wait for %s rate limit: %w", endpoint, err)
	}

	c.log.Debug("Sending request", "url", url, "body", string(body))

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.APIRequestDuration.WithLabelValues(endpoint, "error").
			Observe(time.Since(started).Seconds())
		return nil, errors.Transport("request to payments API failed", err)
	}
	defer resp.Body.Close()

	metrics.APIRequestDuration.WithLabelValues(endpoint,
		strconv.Itoa(resp.StatusCode)).Observe(time.Since(started).Seconds())

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Transport(
			fmt.Sprintf("read response body (status %d)", resp.StatusCode), err)
	}

	c.log.Debug("Received response", "status", resp.StatusCode,
		"body", string(respBody))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Transport(apiErrorMessage(resp.StatusCode, respBody), nil)
	}

	return respBody, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-SP-GATEWAY", c.config.ClientID+"|"+c.config.ClientSecret)
	req.Header.Set("X-SP-USER", c.config.OAuthKey+"|"+c.config.Fingerprint)
	req.Header.Set("X-SP-USER-IP", c.config.UserIP)
	req.Header.Set("X-SP-IDEMPOTENCY-KEY", uuid.NewString())
}

func apiErrorMessage(status int, body []byte) string {
	msg := fmt.Sprintf("payments API error: status %d", status)

	var doc errorDocument
	if err := json.Unmarshal(body, &doc); err == nil && doc.Error.En != "" {
		if code := strings.Trim(string(doc.ErrorCode), `"`); code != "" {
			msg = fmt.Sprintf("%s, error_code: %s", msg, code)
		}
		return fmt.Sprintf("%s, message: %s", msg, doc.Error.En)
	}

	if len(body) > 0 && len(body) < 200 {
		return fmt.Sprintf("%s, raw_body: %s", msg, string(body))
	}

	return msg
}
