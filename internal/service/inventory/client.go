package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/vladislavdragonenkov/cartstore/internal/domain"
	"github.com/vladislavdragonenkov/cartstore/internal/metrics"
	"github.com/vladislavdragonenkov/cartstore/internal/version"
)

const (
	defaultTimeout             = 10 * time.Second
	defaultBreakerFailures     = 5
	defaultBreakerOpenTimeout  = 30 * time.Second
	defaultBreakerHalfOpenReqs = 1
	maxResponseBytes           = 1 << 20

	endpointStock   = "stock"
	endpointProduct = "products"
)

// ClientOptions задаёт параметры HTTP-клиента inventory-сервиса.
type ClientOptions struct {
	HTTPClient         *http.Client
	Timeout            time.Duration
	Logger             *log.Entry
	Metrics            *metrics.CartMetrics
	BreakerFailures    uint32
	BreakerOpenTimeout time.Duration
}

// ClientOption настраивает Client.
type ClientOption func(*ClientOptions)

// WithHTTPClient задаёт http.Client (например, с собственным транспортом).
func WithHTTPClient(client *http.Client) ClientOption {
	return func(opts *ClientOptions) {
		opts.HTTPClient = client
	}
}

// WithTimeout задаёт таймаут одного запроса.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(opts *ClientOptions) {
		opts.Timeout = timeout
	}
}

// WithClientLogger задаёт logger клиента.
func WithClientLogger(logger *log.Entry) ClientOption {
	return func(opts *ClientOptions) {
		opts.Logger = logger
	}
}

// WithClientMetrics задаёт метрики для учёта длительности запросов.
func WithClientMetrics(m *metrics.CartMetrics) ClientOption {
	return func(opts *ClientOptions) {
		opts.Metrics = m
	}
}

// WithBreaker задаёт число подряд идущих ошибок, после которого breaker
// размыкается, и время, через которое он пробует снова.
func WithBreaker(failures uint32, openTimeout time.Duration) ClientOption {
	return func(opts *ClientOptions) {
		opts.BreakerFailures = failures
		opts.BreakerOpenTimeout = openTimeout
	}
}

// Client ходит в inventory-сервис: GET stock/{id} и GET products/{id}.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	logger  *log.Entry
	metrics *metrics.CartMetrics
}

// NewClient создаёт клиент для сервиса по адресу baseURL.
func NewClient(baseURL string, options ...ClientOption) (*Client, error) {
	opts := ClientOptions{
		Timeout:            defaultTimeout,
		BreakerFailures:    defaultBreakerFailures,
		BreakerOpenTimeout: defaultBreakerOpenTimeout,
	}
	for _, option := range options {
		option(&opts)
	}

	base, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, fmt.Errorf("parse inventory base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("inventory base url must be absolute: %q", baseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}

	logger := opts.Logger
	if logger == nil {
		logger = log.WithField("component", "inventory-client")
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if opts.Timeout > 0 {
		clone := *httpClient
		clone.Timeout = opts.Timeout
		httpClient = &clone
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = defaultBreakerFailures
	}
	if opts.BreakerOpenTimeout <= 0 {
		opts.BreakerOpenTimeout = defaultBreakerOpenTimeout
	}

	failures := opts.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "inventory",
		MaxRequests: defaultBreakerHalfOpenReqs,
		Timeout:     opts.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Неизвестный товар не считается отказом breaker.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, domain.ErrProductNotFound)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(log.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("inventory circuit breaker state changed")
		},
	})

	return &Client{
		baseURL: base,
		http:    httpClient,
		breaker: breaker,
		logger:  logger,
		metrics: opts.Metrics,
	}, nil
}

// Stock возвращает остаток товара.
func (c *Client) Stock(ctx context.Context, productID int64) (domain.Stock, error) {
	body, err := c.get(ctx, endpointStock, productID)
	if err != nil {
		return domain.Stock{}, err
	}

	var stock domain.Stock
	if err := json.Unmarshal(body, &stock); err != nil {
		return domain.Stock{}, fmt.Errorf("decode stock %d: %w", productID, err)
	}
	return stock, nil
}

// Product возвращает карточку товара.
func (c *Client) Product(ctx context.Context, productID int64) (domain.Product, error) {
	body, err := c.get(ctx, endpointProduct, productID)
	if err != nil {
		return domain.Product{}, err
	}

	var product domain.Product
	if err := json.Unmarshal(body, &product); err != nil {
		return domain.Product{}, fmt.Errorf("decode product %d: %w", productID, err)
	}
	return product, nil
}

// CheckBreaker возвращает ошибку, пока circuit breaker не закрыт.
func (c *Client) CheckBreaker() error {
	if state := c.breaker.State(); state != gobreaker.StateClosed {
		return fmt.Errorf("inventory circuit breaker is %s", state)
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string, productID int64) ([]byte, error) {
	start := time.Now()
	body, err := c.breaker.Execute(func() ([]byte, error) {
		return c.do(ctx, endpoint, productID)
	})
	c.metrics.RecordInventoryRequest(endpoint, err, time.Since(start))

	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", domain.ErrInventoryUnavailable, err)
		}
		return nil, err
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, endpoint string, productID int64) ([]byte, error) {
	rel := &url.URL{Path: endpoint + "/" + strconv.FormatInt(productID, 10)}
	u := c.baseURL.ResolveReference(rel)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", endpoint, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: get %s: %v", domain.ErrInventoryUnavailable, u.Path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", endpoint, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s/%d", domain.ErrProductNotFound, endpoint, productID)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		c.logger.WithFields(log.Fields{
			"endpoint":   endpoint,
			"product_id": productID,
			"status":     resp.StatusCode,
		}).Debug("inventory returned non-2xx status")
		return nil, fmt.Errorf("%w: get %s returned status %d", domain.ErrInventoryUnavailable, u.Path, resp.StatusCode)
	}

	return body, nil
}

var _ domain.InventoryService = (*Client)(nil)
