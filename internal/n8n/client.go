package n8n

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/errors"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/osutil"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/common/urlutil"
	"github.com/deploymenttheory/n8n-workflow-deployer/internal/logger"
)

const (
	// maxMessageLen caps, in runes, raw error bodies quoted in errors
	maxMessageLen = 200
)

var userAgent = "n8n-workflow-deployer/1.0 (" + osutil.Platform() + ")"

// Options tune the HTTP behaviour of a Client.
type Options struct {
	// Timeout per request; 0 means no timeout.
	Timeout time.Duration

	// RateLimit in requests per second; 0 means unlimited.
	RateLimit float64

	// Skip TLS verification
	InsecureSkipVerify bool

	// TracerProvider receives a client span per request; nil uses the
	// global provider.
	TracerProvider trace.TracerProvider

	// HTTPClient replaces the client built from the options above.
	HTTPClient *http.Client
}

// Client talks to the n8n public REST API.
type Client struct {
	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a client for host (host[:port], scheme optional,
// defaulting to http).
func NewClient(host, apiKey string, opts Options) (*Client, error) {
	baseURL, err := urlutil.ParseBaseURL(host)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: API key", errors.ErrConfigMissing)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = createHTTPClient(opts)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}

	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: httpClient,
		limiter:    limiter,
	}, nil
}

// BaseURL returns the normalized server address.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// createHTTPClient creates an HTTP client with the specified options
func createHTTPClient(opts Options) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.InsecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	var otelOpts []otelhttp.Option
	if opts.TracerProvider != nil {
		otelOpts = append(otelOpts, otelhttp.WithTracerProvider(opts.TracerProvider))
	}

	return &http.Client{
		Timeout: opts.Timeout,
		Transport: otelhttp.NewTransport(transport, append(otelOpts,
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return "n8n " + r.Method
			}),
		)...),
	}
}

func (c *Client) workflowsURL(segments ...string) *url.URL {
	return urlutil.JoinURL(c.baseURL, append([]string{"api", "v1", "workflows"}, segments...)...)
}

// FindWorkflowsByName returns the remote workflows the server reports for
// name, in the order it lists them. Any status other than 200 is an error.
func (c *Client) FindWorkflowsByName(ctx context.Context, name string) ([]Workflow, error) {
	u := c.workflowsURL()
	u.RawQuery = url.Values{"name": []string{name}}.Encode()

	status, body, err := c.do(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrLookupFailed, err.Error())
	}
	if status != http.StatusOK {
		return nil, newAPIError(OpLookup, status, body)
	}

	var list workflowList
	if err := decode(body, &list); err != nil {
		return nil, fmt.Errorf("%w: %s", errors.ErrLookupFailed, err.Error())
	}
	return list.Data, nil
}

// CreateWorkflow posts payload to the workflow collection. The server must
// answer 201 Created.
func (c *Client) CreateWorkflow(ctx context.Context, payload interface{}) (*Workflow, error) {
	return c.write(ctx, OpCreate, http.MethodPost, c.workflowsURL(), http.StatusCreated, payload)
}

// UpdateWorkflow replaces the workflow with the given id. The server must
// answer 200 OK.
func (c *Client) UpdateWorkflow(ctx context.Context, id ID, payload interface{}) (*Workflow, error) {
	if id == "" {
		return nil, errors.ErrMissingRemoteID
	}
	return c.write(ctx, OpUpdate, http.MethodPut, c.workflowsURL(string(id)), http.StatusOK, payload)
}

func (c *Client) write(ctx context.Context, op, method string, u *url.URL, want int, payload interface{}) (*Workflow, error) {
	status, body, err := c.do(ctx, method, u, payload)
	if err != nil {
		return nil, fmt.Errorf("%s failed: %w", op, err)
	}
	if status != want {
		return nil, newAPIError(op, status, body)
	}

	// The expected status means the write happened; the body is informational
	wf := &Workflow{}
	if err := decode(body, wf); err != nil {
		logger.LogDebug("Ignoring undecodable response body", map[string]interface{}{
			"operation": op,
			"status":    status,
			"error":     err.Error(),
		})
	}
	return wf, nil
}

// do sends one request and returns the status and raw body.
func (c *Client) do(ctx context.Context, method string, u *url.URL, payload interface{}) (int, []byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, fmt.Errorf("%w: failed to marshal request body: %s", errors.ErrInvalidArgument, err.Error())
		}
		reqBody = bytes.NewReader(data)
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return 0, nil, fmt.Errorf("%w: %s", errors.ErrRequestFailed, err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to create request: %s", errors.ErrInvalidURL, err.Error())
	}
	req.Header.Set(APIKeyHeader, c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %s", errors.ErrRequestFailed, err.Error())
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: failed to read response: %s", errors.ErrRequestFailed, err.Error())
	}

	logger.LogDebug("n8n request", map[string]interface{}{
		"method":   method,
		"path":     u.Path,
		"status":   resp.StatusCode,
		"duration": time.Since(start).String(),
	})

	return resp.StatusCode, body, nil
}

// decode parses body into v when it is not empty.
func decode(body []byte, v interface{}) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: %s", errors.ErrDecodeResponse, err.Error())
	}
	return nil
}

func newAPIError(op string, status int, body []byte) *APIError {
	return &APIError{Op: op, StatusCode: status, Message: errorMessage(body)}
}

// errorMessage extracts the server's message: the "message" field of a JSON
// body when set, otherwise the trimmed text itself.
func errorMessage(body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return ""
	}

	var eb errorBody
	if err := json.Unmarshal(trimmed, &eb); err == nil && eb.Message != "" {
		return eb.Message
	}

	return truncate(string(trimmed), maxMessageLen)
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}
