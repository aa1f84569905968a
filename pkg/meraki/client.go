// Package meraki is the dashboard API client used by the collection steps.
package meraki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"go.opentelemetry.io/otel/attribute"

	ierrors "github.com/jmountifield/graph-cisco-meraki/pkg/errors"
	"github.com/jmountifield/graph-cisco-meraki/pkg/metrics"
	"github.com/jmountifield/graph-cisco-meraki/pkg/models"
	"github.com/jmountifield/graph-cisco-meraki/pkg/tracing"
)

const (
	// DefaultBaseURL is the dashboard API v1 root
	DefaultBaseURL = "https://api.meraki.com/api/v1"

	// DefaultTimeout is the default request timeout
	DefaultTimeout = 30 * time.Second

	// MaxResponseSize is the maximum response body size (10MB)
	MaxResponseSize = 10 * 1024 * 1024

	// APIKeyHeader carries the dashboard API key
	APIKeyHeader = "X-Cisco-Meraki-API-Key"

	// maxPages bounds Link header pagination
	maxPages = 1000
)

// Config holds client configuration
type Config struct {
	BaseURL         string
	APIKey          string
	Timeout         time.Duration
	MaxIdleConns    int
	IdleConnTimeout time.Duration
	PerPage         int
	// MaxRetries bounds retries of 429 responses
	MaxRetries int
}

// DefaultConfig returns default client configuration
func DefaultConfig() Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		Timeout:         DefaultTimeout,
		MaxIdleConns:    100,
		IdleConnTimeout: 90 * time.Second,
		MaxRetries:      3,
	}
}

// Client lists dashboard records. It implements steps.Client.
type Client struct {
	client  *http.Client
	baseURL string
	apiKey  string
	perPage int
	retries int
	logger  ectologger.Logger
}

// NewClient creates a new dashboard client
func NewClient(cfg Config, logger ectologger.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	transport := &http.Transport{
		MaxIdleConns:    cfg.MaxIdleConns,
		IdleConnTimeout: cfg.IdleConnTimeout,
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   cfg.Timeout,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		perPage: cfg.PerPage,
		retries: cfg.MaxRetries,
		logger:  logger,
	}
}

func (c *Client) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	return list[models.Organization](ctx, c, "ListOrganizations", "", "/organizations")
}

func (c *Client) ListAdmins(ctx context.Context, organizationID string) ([]models.AdminUser, error) {
	return list[models.AdminUser](ctx, c, "ListAdmins", organizationID, "/organizations/"+url.PathEscape(organizationID)+"/admins")
}

func (c *Client) ListSamlRoles(ctx context.Context, organizationID string) ([]models.SamlRole, error) {
	return list[models.SamlRole](ctx, c, "ListSamlRoles", organizationID, "/organizations/"+url.PathEscape(organizationID)+"/samlRoles")
}

func (c *Client) ListNetworks(ctx context.Context, organizationID string) ([]models.Network, error) {
	return list[models.Network](ctx, c, "ListNetworks", organizationID, "/organizations/"+url.PathEscape(organizationID)+"/networks")
}

func (c *Client) ListDevices(ctx context.Context, networkID string) ([]models.Device, error) {
	return list[models.Device](ctx, c, "ListDevices", networkID, "/networks/"+url.PathEscape(networkID)+"/devices")
}

func (c *Client) ListVlans(ctx context.Context, networkID string) ([]models.Vlan, error) {
	return list[models.Vlan](ctx, c, "ListVlans", networkID, "/networks/"+url.PathEscape(networkID)+"/appliance/vlans")
}

func (c *Client) ListSSIDs(ctx context.Context, networkID string) ([]models.SSID, error) {
	return list[models.SSID](ctx, c, "ListSSIDs", networkID, "/networks/"+url.PathEscape(networkID)+"/wireless/ssids")
}

// list follows Link rel=next pages, decodes every page into T and validates each record.
func list[T models.RawRecord](ctx context.Context, c *Client, operation, parentID, path string) ([]T, error) {
	ctx, span := tracing.StartSpan(ctx, "meraki."+operation,
		attribute.String("meraki.operation", operation),
		attribute.String("meraki.parent_id", parentID),
	)

	records, err := decodePages[T](ctx, c, operation, parentID, path)
	if err == nil {
		span.SetAttributes(attribute.Int("meraki.records", len(records)))
	}
	tracing.EndSpan(span, err)
	return records, err
}

func decodePages[T models.RawRecord](ctx context.Context, c *Client, operation, parentID, path string) ([]T, error) {
	next := c.baseURL + path
	if c.perPage > 0 {
		next += "?perPage=" + strconv.Itoa(c.perPage)
	}

	records := make([]T, 0)
	for page := 0; next != ""; page++ {
		if page >= maxPages {
			return nil, ierrors.NewFetchError(operation, parentID, fmt.Errorf("more than %d pages", maxPages))
		}

		body, link, err := c.getWithRetry(ctx, operation, parentID, next)
		if err != nil {
			return nil, err
		}

		var batch []T
		if err := json.Unmarshal(body, &batch); err != nil {
			return nil, ierrors.NewFetchError(operation, parentID, fmt.Errorf("failed to parse JSON: %w", err))
		}
		for _, record := range batch {
			if err := models.Validate(record); err != nil {
				return nil, ierrors.NewConversionError(record.RecordType(), "", err.Error())
			}
		}
		records = append(records, batch...)
		next = nextLink(link)
	}
	return records, nil
}

// get executes one GET and returns the body plus the Link header. Non-2xx responses are FetchErrors
// carrying the status code.
func (c *Client) get(ctx context.Context, operation, parentID, reqURL string) ([]byte, string, error) {
	log := c.logger.WithContext(ctx).WithFields(map[string]any{
		"operation": operation,
		"parent_id": parentID,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, "", ierrors.NewFetchError(operation, parentID, fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set(APIKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.RecordHTTPRequest(operation, "error", time.Since(start).Seconds())
		log.WithError(err).Errorf("HTTP request failed: GET %s", reqURL)
		return nil, "", ierrors.NewFetchError(operation, parentID, fmt.Errorf("request failed: %w", err))
	}
	defer resp.Body.Close()

	duration := time.Since(start)
	metrics.RecordHTTPRequest(operation, strconv.Itoa(resp.StatusCode), duration.Seconds())

	if resp.ContentLength > MaxResponseSize {
		return nil, "", ierrors.NewFetchError(operation, parentID,
			fmt.Errorf("response too large: %d bytes (max %d)", resp.ContentLength, MaxResponseSize)).WithStatus(resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, "", ierrors.NewFetchError(operation, parentID, fmt.Errorf("failed to read response body: %w", err)).WithStatus(resp.StatusCode)
	}
	if len(body) > MaxResponseSize {
		return nil, "", ierrors.NewFetchError(operation, parentID,
			fmt.Errorf("response body too large: %d bytes (max %d)", len(body), MaxResponseSize)).WithStatus(resp.StatusCode)
	}

	log.Debugf("HTTP GET %s -> %d (%s)", reqURL, resp.StatusCode, duration)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fetchErr := ierrors.NewFetchError(operation, parentID, fmt.Errorf("%s", errorBody(body))).WithStatus(resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests {
			return nil, "", &rateLimitedError{FetchError: fetchErr, retryAfter: parseRetryAfter(resp.Header.Get("Retry-After"))}
		}
		return nil, "", fetchErr
	}

	return body, resp.Header.Get("Link"), nil
}

// errorBody extracts the dashboard {"errors": [...]} message, falling back to the raw body.
func errorBody(body []byte) string {
	var payload struct {
		Errors []string `json:"errors"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && len(payload.Errors) > 0 {
		return strings.Join(payload.Errors, "; ")
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "empty response"
	}
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}

// nextLink returns the rel=next target of an RFC 8288 Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		segments := strings.Split(part, ";")
		if len(segments) < 2 {
			continue
		}
		target := strings.TrimSpace(segments[0])
		if !strings.HasPrefix(target, "<") || !strings.HasSuffix(target, ">") {
			continue
		}
		for _, param := range segments[1:] {
			param = strings.ReplaceAll(strings.TrimSpace(param), " ", "")
			if param == `rel=next` || param == `rel="next"` {
				return target[1 : len(target)-1]
			}
		}
	}
	return ""
}
