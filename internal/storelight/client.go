// Package storelight talks to the external storage-location system. The only
// call this service makes is removing labware from storage once it has left
// the lab.
package storelight

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	resty "github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// APIKeyHeader carries the key identifying this service to storelight.
const APIKeyHeader = "STORELIGHT-APIKEY"

const unstoreMutation = `mutation Unstore($barcodes: [String!]!) {
  unstoreBarcodes(barcodes: $barcodes) {
    barcode
  }
}`

// ErrUnavailable is returned without a network call while the breaker is open.
var ErrUnavailable = errors.New("storelight is unavailable")

// Config configures a Client.
type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
	// MaxFailures consecutive failures open the breaker for OpenTimeout.
	MaxFailures uint32
	OpenTimeout time.Duration
	HTTPClient  *http.Client
}

// Client is a storelight GraphQL client. Calls are never retried; repeated
// failures open a circuit breaker so later requests fail fast.
type Client struct {
	url     string
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.SugaredLogger
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type unstoreResponse struct {
	Data struct {
		UnstoreBarcodes []struct {
			Barcode string `json:"barcode"`
		} `json:"unstoreBarcodes"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// New builds a client for cfg.URL.
func New(cfg Config, logger *zap.SugaredLogger) (*Client, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("storelight url is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	var rc *resty.Client
	if cfg.HTTPClient != nil {
		rc = resty.NewWithClient(cfg.HTTPClient)
	} else {
		rc = resty.New()
	}
	rc.SetTimeout(cfg.Timeout).
		SetRetryCount(0).
		SetHeader("Content-Type", "application/json")
	if cfg.APIKey != "" {
		rc.SetHeader(APIKeyHeader, cfg.APIKey)
	}

	c := &Client{url: cfg.URL, http: rc, logger: logger}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "storelight",
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warnw("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return c, nil
}

// State reports the breaker state, e.g. "closed" or "open".
func (c *Client) State() string { return c.breaker.State().String() }

// Unstore asks storelight to remove the barcodes from storage. An empty list
// makes no call.
func (c *Client) Unstore(ctx context.Context, barcodes []string) error {
	if len(barcodes) == 0 {
		return nil
	}
	_, err := c.breaker.Execute(func() (any, error) {
		return nil, c.unstore(ctx, barcodes)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func (c *Client) unstore(ctx context.Context, barcodes []string) error {
	var out unstoreResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(graphQLRequest{Query: unstoreMutation, Variables: map[string]any{"barcodes": barcodes}}).
		SetResult(&out).
		SetError(&out).
		Post(c.url)
	if err != nil {
		return fmt.Errorf("storelight request: %w", err)
	}
	if len(out.Errors) > 0 {
		msgs := make([]string, len(out.Errors))
		for i, e := range out.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("storelight: %s", strings.Join(msgs, "; "))
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("storelight returned status %d", resp.StatusCode())
	}
	c.logger.Debugw("unstored labware", "requested", len(barcodes), "unstored", len(out.Data.UnstoreBarcodes))
	return nil
}
