package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/storekit/paygate/internal/domain/errors"
	"github.com/storekit/paygate/internal/domain/order"
	"github.com/storekit/paygate/internal/domain/token"
	"github.com/storekit/paygate/internal/infrastructure/config"
	"github.com/storekit/paygate/internal/infrastructure/observability"
)

const validationPath = "validate"

// maxResponseBody bounds how much of a provider response is read.
const maxResponseBody = 1 << 20

// BankClient is the production Gateway implementation: a thin HTTP
// client around the bank's webgate validation endpoint.
type BankClient struct {
	cfg     config.GatewayConfig
	http    *http.Client
	metrics *observability.Metrics
}

func NewBankClient(cfg config.GatewayConfig, metrics *observability.Metrics) *BankClient {
	return &BankClient{
		cfg: cfg,
		http: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		metrics: metrics,
	}
}

func (c *BankClient) Name() string { return "bank-webgate" }

func (c *BankClient) IsAvailable() bool {
	return c.cfg.Enabled && c.cfg.APIKey != "" && c.cfg.BaseURL != ""
}

// PaymentRedirectURL builds <base>/gateway/<api_key>/0/<amount>/.
// The transaction type segment is always 0 (purchase). Amount is
// coerced to a positive integer; the provider rejects zero.
func (c *BankClient) PaymentRedirectURL(o *order.Order) (string, error) {
	if !c.IsAvailable() {
		return "", errors.ErrGatewayDisabled
	}
	amount := o.TotalAmount
	if amount < 1 {
		amount = 1
	}
	return fmt.Sprintf("%s/gateway/%s/0/%d/",
		strings.TrimRight(c.cfg.BaseURL, "/"), c.cfg.APIKey, amount), nil
}

// ValidateToken issues GET <base>/validate/<token>[/strict] and
// classifies the response. Token syntax is checked locally first so
// junk input never reaches the network.
func (c *BankClient) ValidateToken(ctx context.Context, t string, strict bool) (*token.ValidationResult, error) {
	if err := token.Validate(t); err != nil {
		return nil, err
	}
	if !c.IsAvailable() {
		return nil, errors.ErrGatewayDisabled
	}

	url := fmt.Sprintf("%s/%s/%s", strings.TrimRight(c.cfg.BaseURL, "/"), validationPath, t)
	if strict {
		url += "/strict"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build validation request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.observe("transport_error", start)
		return nil, fmt.Errorf("%w: %v", errors.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		c.observe("transport_error", start)
		return nil, fmt.Errorf("%w: read body: %v", errors.ErrTransport, err)
	}
	c.observe(fmt.Sprintf("%d", resp.StatusCode), start)

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return c.decode(body)
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.ErrTokenNotFound
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, errors.ErrProviderRateLimited
	default:
		return nil, errors.NewProviderStatusError(resp.StatusCode, body)
	}
}

func (c *BankClient) decode(body []byte) (*token.ValidationResult, error) {
	var result token.ValidationResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrMalformedResponse, err)
	}

	// A missing or wrong auth key means the response cannot be trusted
	// at all, regardless of the other fields.
	if result.AuthKey == "" || result.AuthKey != c.cfg.APIKey {
		return nil, errors.ErrAuthKeyMismatch
	}

	return &result, nil
}

func (c *BankClient) observe(status string, start time.Time) {
	if c.metrics != nil {
		c.metrics.ProviderRequestDuration.WithLabelValues(status).
			Observe(time.Since(start).Seconds())
	}
}
