// Package upstream wraps the outbound HTTP calls to the movie/TV metadata
// provider. Every call carries the server-held API key, requires a 2xx status
// and decodes the JSON body; anything else surfaces as an error. There is no
// retry and no fallback. An optional circuit breaker fails fast while the
// provider is unhealthy.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/catalog-hub/catalog-hub/internal/metrics"
)

const (
	apiKeyParam     = "api_key"
	maxResponseSize = 8 << 20
	breakerName     = "metadata-provider"
)

// Fetcher 是 catalog 层依赖的最小上游契约，测试可注入替身。
type Fetcher interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
}

// Options 描述构建 Client 所需的依赖。
type Options struct {
	HTTPClient      *http.Client
	BaseURL         string
	APIKey          string
	BreakerFailures uint32
	BreakerCooldown time.Duration
	Metrics         *metrics.Metrics
	Logger          *logrus.Logger

	// MaxResponseBytes 为 0 时使用 8 MiB。
	MaxResponseBytes int64
}

// Client 对元数据提供方发起 GET 请求。
type Client struct {
	http    *http.Client
	baseURL *url.URL
	apiKey  string
	maxBody int64
	breaker *gobreaker.CircuitBreaker[[]byte]
	metrics *metrics.Metrics
	logger  *logrus.Logger
}

// New 校验参数并返回 Client。APIKey 为空时依旧构建成功，但所有请求都会被上游拒绝。
func New(opts Options) (*Client, error) {
	if opts.HTTPClient == nil {
		return nil, errors.New("http client is required")
	}
	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid upstream base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid upstream base url: %s", opts.BaseURL)
	}

	c := &Client{
		http:    opts.HTTPClient,
		baseURL: base,
		apiKey:  opts.APIKey,
		maxBody: opts.MaxResponseBytes,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
	if c.maxBody <= 0 {
		c.maxBody = maxResponseSize
	}
	if opts.BreakerFailures > 0 {
		c.breaker = c.newBreaker(opts.BreakerFailures, opts.BreakerCooldown)
	}
	return c, nil
}

func (c *Client) newBreaker(failures uint32, cooldown time.Duration) *gobreaker.CircuitBreaker[[]byte] {
	c.metrics.SetBreakerState(breakerName, 0)
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Timeout:     cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return !countsAsFailure(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.metrics.SetBreakerState(name, stateToFloat(to))
			if c.logger != nil {
				c.logger.WithFields(logrus.Fields{
					"action": "upstream_breaker",
					"from":   from.String(),
					"to":     to.String(),
				}).Warn("breaker_state_change")
			}
		},
	})
}

// Get 请求 BaseURL+path，附带 api_key 与 query，要求 2xx 并把 JSON 解码进 out。
// out 为 nil 时只校验状态码。
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	endpoint := EndpointLabel(path)

	var (
		body []byte
		err  error
	)
	if c.breaker != nil {
		body, err = c.breaker.Execute(func() ([]byte, error) {
			body, err := c.do(ctx, path, query)
			if err != nil && ctx != nil && ctx.Err() != nil {
				return nil, &callerDoneError{err: err}
			}
			return body, err
		})
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.ObserveUpstream(endpoint, metrics.OutcomeRejected)
			return fmt.Errorf("%w: %s", ErrCircuitOpen, path)
		}
	} else {
		body, err = c.do(ctx, path, query)
	}
	if err != nil {
		c.metrics.ObserveUpstream(endpoint, metrics.OutcomeFailure)
		return err
	}
	c.metrics.ObserveUpstream(endpoint, metrics.OutcomeSuccess)

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode upstream %s: %w", path, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, path string, query url.Values) ([]byte, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	target := c.resolve(path, query)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build upstream request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream %s: %w", path, redact(err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{
			Status: resp.StatusCode,
			Path:   path,
			Body:   strings.TrimSpace(string(snippet)),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("read upstream %s: %w", path, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrResponseTooLarge, path, c.maxBody)
	}
	return body, nil
}

func (c *Client) resolve(path string, query url.Values) *url.URL {
	target := c.baseURL.JoinPath(strings.TrimPrefix(path, "/"))
	params := url.Values{}
	for key, values := range query {
		for _, v := range values {
			params.Add(key, v)
		}
	}
	if c.apiKey != "" {
		params.Set(apiKeyParam, c.apiKey)
	}
	target.RawQuery = params.Encode()
	return target
}

// redact 去掉 *url.Error 中携带 api_key 的完整 URL，只保留底层原因。
func redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}

// EndpointLabel 将路径中的数字段替换为 :id，避免指标标签随 ID 膨胀。
func EndpointLabel(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		numeric := true
		for _, r := range seg {
			if r < '0' || r > '9' {
				numeric = false
				break
			}
		}
		if numeric {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
