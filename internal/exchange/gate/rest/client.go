package rest

import (
	"gatebot/internal/logger"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const DefaultPrefix = "/api/v4"

type Client struct {
	baseURL    string
	prefix     string
	settle     string
	apiKey     string
	signer     *Signer
	httpClient *http.Client
	limiter    *rate.Limiter
	debug      bool
	now        func() time.Time
	log        *logger.Logger
	metrics    *restMetrics
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRateLimit ограничивает темп запросов на стороне клиента; rps <= 0 отключает.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithDebug(debug bool) Option {
	return func(c *Client) {
		c.debug = debug
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

func New(domain, prefix, settle, apiKey, secret string, log *logger.Logger, opts ...Option) *Client {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	if settle == "" {
		settle = "usdt"
	}
	c := &Client{
		baseURL: baseURL(domain),
		prefix:  prefix,
		settle:  strings.ToLower(settle),
		apiKey:  apiKey,
		signer:  NewSigner(secret),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		now:     time.Now,
		log:     log,
		metrics: newRestMetrics(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Settle() string {
	return c.settle
}

// baseURL допускает домен как со схемой, так и без неё.
func baseURL(domain string) string {
	domain = strings.TrimRight(strings.TrimSpace(domain), "/")
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}
