package panel

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultTimeout applies when WithTimeout is not given.
const DefaultTimeout = 5 * time.Second

// maxBodySize caps how much of any response body is read.
const maxBodySize = 1 << 20

// Client talks to an xflash-panda panel. It is safe for concurrent use:
// every operation is one request/response round trip, and the only shared
// mutable state is the ETag cache, which serializes per key.
type Client struct {
	apiHost string
	token   string
	timeout time.Duration
	debug   bool

	httpClient *http.Client
	logger     *zap.Logger
	limiter    *rate.Limiter
	metrics    *clientMetrics
	cache      *etagCache
}

// Option is a functional option for configuring a Client.
type Option func(*Client) error

// WithTimeout sets the per-request timeout (default 5s). It applies to the
// default HTTP client; a client supplied via WithHTTPClient keeps its own.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %v", d)
		}
		c.timeout = d
		return nil
	}
}

// WithDebug enables request logging: method, path, and status only. The
// auth token is never logged.
func WithDebug() Option {
	return func(c *Client) error {
		c.debug = true
		return nil
	}
}

// WithLogger sets the logger used by WithDebug request logging.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) error {
		c.logger = l
		return nil
	}
}

// WithHTTPClient sets a custom http.Client. TLS, proxying, connection
// reuse, and timeouts become its concern.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) error {
		c.httpClient = hc
		return nil
	}
}

// WithRateLimit caps outgoing requests with a token bucket of rps
// steady-state requests per second and the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) error {
		if rps <= 0 || burst <= 0 {
			return fmt.Errorf("rate limit requires positive rps and burst")
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
		return nil
	}
}

// WithMetrics registers request counters and duration histograms on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(c *Client) error {
		c.metrics = newClientMetrics(reg)
		return nil
	}
}

// New creates a panel client for apiHost authenticating with token.
//
//	c, err := panel.New("https://panel.example.com", token,
//	    panel.WithTimeout(10*time.Second),
//	)
func New(apiHost, token string, opts ...Option) (*Client, error) {
	if apiHost == "" {
		return nil, errors.New("panel: api host must not be empty")
	}
	if token == "" {
		return nil, errors.New("panel: token must not be empty")
	}

	c := &Client{
		apiHost: strings.TrimRight(apiHost, "/"),
		token:   token,
		timeout: DefaultTimeout,
		cache:   newETagCache(),
	}
	for _, o := range opts {
		if err := o(c); err != nil {
			return nil, err
		}
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	return c, nil
}

// MustNew is like New but panics on error. Useful in tests and program init.
func MustNew(apiHost, token string, opts ...Option) *Client {
	c, err := New(apiHost, token, opts...)
	if err != nil {
		panic(err)
	}
	return c
}

// ── node configuration ──────────────────────────────────────────────────

// RawConfig fetches the node configuration from the legacy endpoint and
// returns the response body verbatim.
func (c *Client) RawConfig(ctx context.Context, nodeType NodeType, nodeID int64) ([]byte, error) {
	path := fmt.Sprintf("/api/v1/server/%s/config", nodeType)
	params := url.Values{"node_id": {fmt.Sprint(nodeID)}}
	return c.do(ctx, http.MethodGet, path, params, nil, "raw_config")
}

// Config fetches and parses the node configuration for nodeType.
func (c *Client) Config(ctx context.Context, nodeType NodeType, nodeID int64) (*NodeConfig, error) {
	path := c.enhancedPath(nodeType, "config")
	params := url.Values{"node_id": {fmt.Sprint(nodeID)}}

	body, err := c.do(ctx, http.MethodGet, path, params, nil, "config")
	if err != nil {
		return nil, err
	}

	var envelope apiResponse[json.RawMessage]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, parseError(path, err)
	}
	cfg, err := parseNodeConfig(nodeType, envelope.Data)
	if err != nil {
		return nil, parseError(path, err)
	}
	return cfg, nil
}

// ── node lifecycle ──────────────────────────────────────────────────────

// Register announces a node to the panel and returns the server-issued
// register id. The id is opaque: the caller persists and presents it, the
// client never parses or fabricates one.
func (c *Client) Register(ctx context.Context, nodeType NodeType, nodeID int64, req RegisterRequest) (string, error) {
	path := c.enhancedPath(nodeType, "register")
	params := url.Values{"node_id": {fmt.Sprint(nodeID)}}

	body, err := c.do(ctx, http.MethodPost, path, params, req, "register")
	if err != nil {
		return "", err
	}

	var envelope apiResponse[registerData]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", parseError(path, err)
	}
	if envelope.Data.RegisterID == "" {
		return "", parseError(path, errors.New("response carries no register_id"))
	}
	return envelope.Data.RegisterID, nil
}

// Verify asks the panel whether registerID is still recognized.
func (c *Client) Verify(ctx context.Context, nodeType NodeType, registerID string) (bool, error) {
	path := c.enhancedPath(nodeType, "verify")

	body, err := c.do(ctx, http.MethodPost, path, nil, verifyRequest{RegisterID: registerID}, "verify")
	if err != nil {
		return false, err
	}

	var envelope apiResponse[verifyData]
	if err := json.Unmarshal(body, &envelope); err != nil {
		return false, parseError(path, err)
	}
	return envelope.Data.Valid, nil
}

// Unregister removes the node registration. A repeat call against an
// already-unregistered id surfaces the panel's error verbatim; callers
// cleaning up may treat that as success-equivalent.
func (c *Client) Unregister(ctx context.Context, nodeType NodeType, registerID string) error {
	path := c.enhancedPath(nodeType, "unregister")
	params := url.Values{"register_id": {registerID}}

	_, err := c.do(ctx, http.MethodPost, path, params, struct{}{}, "unregister")
	return err
}

// ── users ───────────────────────────────────────────────────────────────

// Users fetches the node's user list with conditional-request caching.
// When the panel answers 304 the returned error satisfies IsNotModified;
// the previous snapshot stays available via CachedUsers.
func (c *Client) Users(ctx context.Context, nodeType NodeType, registerID string) ([]User, error) {
	_, _, users, err := c.fetchUsers(ctx, nodeType, registerID)
	if err != nil {
		return nil, err
	}
	return users, nil
}

// UsersWithETag is Users plus the ETag the panel attached to the response.
func (c *Client) UsersWithETag(ctx context.Context, nodeType NodeType, registerID string) (*UsersResult, error) {
	_, etag, users, err := c.fetchUsers(ctx, nodeType, registerID)
	if err != nil {
		return nil, err
	}
	return &UsersResult{Users: users, ETag: etag}, nil
}

// RawUsers is Users returning the response body verbatim. It participates
// in the same ETag cache; bodies that do not decode are returned as-is
// without touching the cache.
func (c *Client) RawUsers(ctx context.Context, nodeType NodeType, registerID string) ([]byte, error) {
	body, _, _, err := c.fetchUsers(ctx, nodeType, registerID)
	if err != nil && !IsParseError(err) {
		return nil, err
	}
	return body, nil
}

// fetchUsers performs the conditional GET under the key's lock. The cache
// entry is replaced only on a 200 whose body decoded and that carried an
// ETag; 304 and every error path leave it untouched, so stale-but-valid
// data survives transient failures.
func (c *Client) fetchUsers(ctx context.Context, nodeType NodeType, registerID string) (body []byte, etag string, users []User, err error) {
	path := c.enhancedPath(nodeType, "users")
	params := url.Values{"register_id": {registerID}}
	key := cacheKey(nodeType, registerID)

	unlock := c.cache.lock(key)
	defer unlock()

	req, err := c.newRequest(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return nil, "", nil, err
	}
	if prev, ok := c.cache.entry(key); ok {
		req.Header.Set("If-None-Match", prev.etag)
	}

	status, header, body, err := c.roundTrip(req, path, "users")
	if err != nil {
		return nil, "", nil, err
	}
	if err := checkStatus(status, body, path); err != nil {
		return nil, "", nil, err
	}

	var envelope apiResponse[[]User]
	if decErr := json.Unmarshal(body, &envelope); decErr != nil {
		return body, "", nil, parseError(path, decErr)
	}

	etag = header.Get("ETag")
	if etag != "" {
		c.cache.store(key, cacheEntry{etag: etag, users: envelope.Data})
	}
	return body, etag, envelope.Data, nil
}

// ETag returns the cached ETag for the pair, if any.
func (c *Client) ETag(nodeType NodeType, registerID string) (string, bool) {
	e, ok := c.cache.entry(cacheKey(nodeType, registerID))
	return e.etag, ok
}

// CachedUsers returns the last user list stored for the pair, letting
// callers fall back to the previous snapshot after a NotModified result.
func (c *Client) CachedUsers(nodeType NodeType, registerID string) ([]User, bool) {
	e, ok := c.cache.entry(cacheKey(nodeType, registerID))
	if !ok {
		return nil, false
	}
	return slices.Clone(e.users), true
}

// ClearETagCache drops every cached ETag entry.
func (c *Client) ClearETagCache() {
	c.cache.clear()
}

// ── traffic ─────────────────────────────────────────────────────────────

// Submit reports one batch of per-user traffic deltas.
func (c *Client) Submit(ctx context.Context, nodeType NodeType, registerID string, data []UserTraffic) error {
	path := c.enhancedPath(nodeType, "submit")
	_, err := c.do(ctx, http.MethodPost, path, nil, submitRequest{RegisterID: registerID, Data: data}, "submit")
	return err
}

// SubmitWithAgent reports traffic through the agent-aware endpoint.
func (c *Client) SubmitWithAgent(ctx context.Context, nodeType NodeType, registerID string, data []UserTraffic) error {
	path := c.enhancedPath(nodeType, "submitWithAgent")
	_, err := c.do(ctx, http.MethodPost, path, nil, submitRequest{RegisterID: registerID, Data: data}, "submit_with_agent")
	return err
}

// SubmitStats reports aggregated per-node request statistics.
func (c *Client) SubmitStats(ctx context.Context, nodeType NodeType, registerID string, stats TrafficStats) error {
	path := c.enhancedPath(nodeType, "submitStatsWithAgent")
	_, err := c.do(ctx, http.MethodPost, path, nil, submitStatsRequest{RegisterID: registerID, Data: stats}, "submit_stats")
	return err
}

// ── liveness ────────────────────────────────────────────────────────────

// Heartbeat tells the panel the node is alive. Cheapest operation;
// scheduling is the caller's responsibility.
func (c *Client) Heartbeat(ctx context.Context, nodeType NodeType, registerID string) error {
	path := c.enhancedPath(nodeType, "heartbeat")
	_, err := c.do(ctx, http.MethodPost, path, nil, heartbeatRequest{RegisterID: registerID}, "heartbeat")
	return err
}

// HeartbeatWithIP is Heartbeat carrying the node's current IP.
func (c *Client) HeartbeatWithIP(ctx context.Context, nodeType NodeType, registerID, nodeIP string) error {
	path := c.enhancedPath(nodeType, "heartbeat")
	_, err := c.do(ctx, http.MethodPost, path, nil, heartbeatRequest{RegisterID: registerID, NodeIP: nodeIP}, "heartbeat")
	return err
}

// ── request plumbing ────────────────────────────────────────────────────

func (c *Client) enhancedPath(nodeType NodeType, op string) string {
	return fmt.Sprintf("/api/v1/server/enhanced/%s/%s", nodeType, op)
}

func (c *Client) newRequest(ctx context.Context, method, path string, params url.Values, reqBody any) (*http.Request, error) {
	target := c.apiHost + path
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if reqBody != nil {
		b, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-Request-Id", uuid.NewString())
	return req, nil
}

// roundTrip executes req and returns status, headers, and a capped body
// read. Transport failures come back classified as network errors.
func (c *Client) roundTrip(req *http.Request, path, op string) (int, http.Header, []byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return 0, nil, nil, networkError(path, err)
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.observe(op, 0, time.Since(start))
		if c.debug {
			c.logger.Debug("panel request failed",
				zap.String("method", req.Method),
				zap.String("path", path),
				zap.Error(err),
			)
		}
		return 0, nil, nil, networkError(path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	took := time.Since(start)
	c.metrics.observe(op, resp.StatusCode, took)
	if c.debug {
		c.logger.Debug("panel request",
			zap.String("method", req.Method),
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.Duration("took", took),
		)
	}
	if err != nil {
		return resp.StatusCode, resp.Header, nil, networkError(path, err)
	}
	return resp.StatusCode, resp.Header, body, nil
}

// do is the shared request path: build, execute, classify.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, reqBody any, op string) ([]byte, error) {
	req, err := c.newRequest(ctx, method, path, params, reqBody)
	if err != nil {
		return nil, err
	}
	status, _, body, err := c.roundTrip(req, path, op)
	if err != nil {
		return nil, err
	}
	if err := checkStatus(status, body, path); err != nil {
		return nil, err
	}
	return body, nil
}

// checkStatus partitions responses: 2xx pass, 304 maps to the NotModified
// kind, everything else is a server error carrying the exact status.
func checkStatus(status int, body []byte, path string) error {
	if status >= 200 && status < 300 {
		return nil
	}
	if status == http.StatusNotModified {
		return notModified(path)
	}
	return serverError(status, messageFromBody(body), path)
}

// messageFromBody extracts a human-readable message from an error body,
// best-effort.
func messageFromBody(body []byte) string {
	var envelope struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Message != "" {
		return envelope.Message
	}
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return "unknown error"
	}
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return msg
}
