// Package cms is a minimal client of the Contentful content delivery and preview APIs.
package cms

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/static-dev/contentful/internal/constants"
	"github.com/tidwall/gjson"
	"github.com/ubuntu/decorate"
)

const entriesPath = "/spaces/{space}/environments/{environment}/entries"

// Client retrieves entries of one Contentful space.
type Client struct {
	rc *resty.Client

	spaceID     string
	environment string
}

type options struct {
	preview     bool
	baseURL     string
	environment string
	timeout     time.Duration
	httpClient  *http.Client

	retryCount   int
	retryWait    time.Duration
	retryMaxWait time.Duration
}

// Options represents an optional function to override Client default values.
type Options func(*options)

// WithPreview selects the preview API, serving draft content, instead of the delivery API.
func WithPreview(preview bool) Options {
	return func(o *options) {
		o.preview = preview
	}
}

// WithBaseURL overrides the API base URL. It takes precedence over WithPreview.
func WithBaseURL(url string) Options {
	return func(o *options) {
		o.baseURL = url
	}
}

// WithEnvironment selects the space environment to read from.
func WithEnvironment(env string) Options {
	return func(o *options) {
		if env != "" {
			o.environment = env
		}
	}
}

// WithTimeout sets the timeout of a single request.
func WithTimeout(d time.Duration) Options {
	return func(o *options) {
		o.timeout = d
	}
}

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(c *http.Client) Options {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithRetry sets the transport retry policy for rate limited and failed requests.
func WithRetry(count int, wait, maxWait time.Duration) Options {
	return func(o *options) {
		o.retryCount = count
		o.retryWait = wait
		o.retryMaxWait = maxWait
	}
}

// New creates a client reading the given space with accessToken.
func New(accessToken, spaceID string, args ...Options) *Client {
	opts := options{
		environment:  constants.DefaultEnvironment,
		timeout:      constants.DefaultRequestTimeout,
		retryCount:   3,
		retryWait:    100 * time.Millisecond,
		retryMaxWait: 2 * time.Second,
	}
	for _, opt := range args {
		opt(&opts)
	}

	baseURL := opts.baseURL
	if baseURL == "" {
		host := constants.DeliveryHost
		if opts.preview {
			host = constants.PreviewHost
		}
		baseURL = "https://" + host
	}

	rc := resty.New()
	if opts.httpClient != nil {
		rc = resty.NewWithClient(opts.httpClient)
	}
	rc.SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(opts.timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", constants.CmdName+"/"+constants.Version).
		SetAuthToken(accessToken).
		SetRetryCount(opts.retryCount).
		SetRetryWaitTime(opts.retryWait).
		SetRetryMaxWaitTime(opts.retryMaxWait).
		AddRetryCondition(retryCondition)

	return &Client{
		rc:          rc,
		spaceID:     spaceID,
		environment: opts.environment,
	}
}

// retryCondition retries network errors, rate limiting and server errors.
func retryCondition(r *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	if r == nil {
		return false
	}
	code := r.StatusCode()
	return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}

// Query holds the parameters of an entries request, passed verbatim to the API.
type Query map[string]any

// IncludeLevel returns the link depth requested by the query.
func (q Query) IncludeLevel() int {
	switch v := q["include"].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return constants.DefaultIncludeLevel
	}
}

// params renders the query values as request parameters. Lists are comma separated.
func (q Query) params() map[string]string {
	params := make(map[string]string, len(q))
	for k, v := range q {
		switch v := v.(type) {
		case []any:
			s := make([]string, 0, len(v))
			for _, e := range v {
				s = append(s, fmt.Sprint(e))
			}
			params[k] = strings.Join(s, ",")
		case []string:
			params[k] = strings.Join(v, ",")
		default:
			params[k] = fmt.Sprint(v)
		}
	}
	return params
}

// String returns a stable representation of the query, for logging.
func (q Query) String() string {
	params := q.params()
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	for i, k := range keys {
		if i > 0 {
			sb.WriteByte('&')
		}
		sb.WriteString(k + "=" + params[k])
	}
	return sb.String()
}

// Entries retrieves one page of entries matching q, with links resolved up to the requested include level.
func (c *Client) Entries(ctx context.Context, q Query) (col *EntryCollection, err error) {
	defer decorate.OnError(&err, "could not retrieve entries of space %q", c.spaceID)

	slog.Debug("Requesting entries", "space", c.spaceID, "environment", c.environment, "query", q.String())

	resp, err := c.rc.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"space":       c.spaceID,
			"environment": c.environment,
		}).
		SetQueryParams(q.params()).
		Get(entriesPath)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, newAPIError(resp.StatusCode(), resp.Body())
	}

	return ParseEntries(resp.Body(), q.IncludeLevel())
}

// APIError is an error response of the Contentful API.
type APIError struct {
	StatusCode int
	ID         string
	Message    string
	RequestID  string
}

func newAPIError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status}
	if !gjson.ValidBytes(body) {
		e.Message = strings.TrimSpace(string(body))
		return e
	}

	res := gjson.GetManyBytes(body, "sys.id", "message", "requestId")
	e.ID = res[0].String()
	e.Message = res[1].String()
	e.RequestID = res[2].String()
	return e
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("API responded with status %d", e.StatusCode)
	if e.ID != "" {
		msg += " (" + e.ID + ")"
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.RequestID != "" {
		msg += " [request " + e.RequestID + "]"
	}
	return msg
}
