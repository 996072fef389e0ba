package discogs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"labelscraper/pkg/config"
	errs "labelscraper/pkg/errors"
	"labelscraper/pkg/logger"
	"labelscraper/pkg/metrics"
	"labelscraper/pkg/models"
)

// Client talks to the Discogs REST API
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	logger     logger.Logger
}

// NewClient creates a Discogs client from configuration
func NewClient(cfg *config.DiscogsConfig, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = config.DefaultUserAgent
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultBaseURL
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		headers: map[string]string{
			"User-Agent":    userAgent,
			"Authorization": AuthorizationHeader(cfg.APIKey, cfg.APISecret),
		},
		baseURL: baseURL,
		logger:  log,
	}
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request, endpoint string) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		metrics.ObserveRequest(endpoint, 0, duration)
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.ErrorWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.New(errs.ErrorTypeNetwork, 0, "network error: %v", err)
	}

	metrics.ObserveRequest(endpoint, resp.StatusCode, duration)
	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":              req.Method,
		"url":                 req.URL.String(),
		"status":              resp.StatusCode,
		"duration":            duration,
		"ratelimit_remaining": resp.Header.Get("X-Discogs-Ratelimit-Remaining"),
	})

	return resp, nil
}

// GetJSON performs a GET request and decodes the JSON response into target
func (c *Client) GetJSON(ctx context.Context, endpoint, url string, target interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return errs.New(errs.ErrorTypeUnknown, 0, "failed to create request: %v", err)
	}

	resp, err := c.doRequest(req, endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp, url); err != nil {
		return err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.New(errs.ErrorTypeNetwork, resp.StatusCode, "failed to read response body: %v", err)
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          url,
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return errs.New(errs.ErrorTypeParsing, resp.StatusCode, "failed to parse JSON: %v", err)
	}

	return nil
}

// checkResponseStatus maps non-2xx responses to typed errors
func (c *Client) checkResponseStatus(resp *http.Response, url string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	errorType := errs.TypeForStatus(resp.StatusCode)
	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    url,
	}

	switch errorType {
	case errs.ErrorTypeRateLimit:
		// the caller logs the pause
		return errs.New(errorType, resp.StatusCode, "rate limit exceeded")
	case errs.ErrorTypeAuth:
		c.logger.WarnWithFields("authentication error", fields)
		return errs.New(errorType, resp.StatusCode, "authentication failed")
	case errs.ErrorTypeNotFound:
		c.logger.DebugWithFields("resource not found", fields)
		return errs.New(errorType, resp.StatusCode, "resource not found")
	case errs.ErrorTypeServerError:
		c.logger.ErrorWithFields("server error", fields)
		return errs.New(errorType, resp.StatusCode, "server error")
	default:
		c.logger.ErrorWithFields("unexpected API error", fields)
		return errs.New(errorType, resp.StatusCode, "unexpected status code: %d", resp.StatusCode)
	}
}

// CountLabels returns the total number of labels known to Discogs
func (c *Client) CountLabels(ctx context.Context) (int, error) {
	url := SearchURL(c.baseURL)

	var response models.SearchResponse
	if err := c.GetJSON(ctx, endpointSearch, url, &response); err != nil {
		return 0, fmt.Errorf("failed to fetch label count: %w", err)
	}

	c.logger.DebugWithFields("fetched label count", map[string]interface{}{
		"items": response.Pagination.Items,
	})

	return response.Pagination.Items, nil
}

// GetLabel fetches a single label by identifier
func (c *Client) GetLabel(ctx context.Context, id int) (*models.Label, error) {
	url := LabelURL(c.baseURL, id)

	var label models.Label
	if err := c.GetJSON(ctx, endpointLabel, url, &label); err != nil {
		return nil, err
	}

	return &label, nil
}
