package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"

	"health-insurance-portal/internal/domain"
	"health-insurance-portal/internal/infra/metrics"
)

const maxResponseBody = 1 << 20

// apiClient is the shared REST plumbing of the gateway adapters: one call,
// at most one retry for transient failures, every attempt measured.
type apiClient struct {
	provider  string
	http      *http.Client
	log       *zerolog.Logger
	retries   uint64
	retryWait time.Duration
}

func newAPIClient(provider string, timeout time.Duration, logger *zerolog.Logger) *apiClient {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	l := logger.With().Str("component", "gateway").Str("gateway", provider).Logger()
	return &apiClient{
		provider:  provider,
		http:      &http.Client{Timeout: timeout},
		log:       &l,
		retries:   1,
		retryWait: 300 * time.Millisecond,
	}
}

// errorDecoder pulls a provider error code/message out of a non-2xx body.
type errorDecoder func(body []byte) string

// call executes the request built by newReq and decodes a 2xx JSON body into out.
// newReq is invoked once per attempt so bodies can be re-read.
func (c *apiClient) call(ctx context.Context, op string, newReq func(ctx context.Context) (*http.Request, error), decodeErr errorDecoder, out any) error {
	return c.retry(ctx, op, func(attempt int) error {
		req, err := newReq(ctx)
		if err != nil {
			return backoff.Permanent(&domain.GatewayError{Provider: c.provider, Op: op, Err: err})
		}

		start := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			metrics.ObserveGatewayCall(c.provider, op, 0, time.Since(start))
			return &domain.GatewayError{Provider: c.provider, Op: op, Err: err}
		}
		defer resp.Body.Close()
		metrics.ObserveGatewayCall(c.provider, op, resp.StatusCode, time.Since(start))

		body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
		if err != nil {
			return &domain.GatewayError{Provider: c.provider, Op: op, StatusCode: resp.StatusCode, Err: err}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			gwErr := &domain.GatewayError{Provider: c.provider, Op: op, StatusCode: resp.StatusCode}
			if decodeErr != nil {
				gwErr.RawStatus = decodeErr(body)
			}
			return gwErr
		}

		if out == nil {
			return nil
		}
		if err := json.Unmarshal(body, out); err != nil {
			return backoff.Permanent(&domain.GatewayError{
				Provider:   c.provider,
				Op:         op,
				StatusCode: resp.StatusCode,
				Err:        fmt.Errorf("decode response: %w", err),
			})
		}
		return nil
	})
}

// retry runs operation until it succeeds or fails for good. A *domain.GatewayError
// that is Transient gets at most c.retries more attempts; anything else, and
// any failure after ctx is done, is final.
func (c *apiClient) retry(ctx context.Context, op string, operation func(attempt int) error) error {
	attempt := 0
	wrapped := func() error {
		attempt++
		err := operation(attempt)
		if err == nil {
			return nil
		}
		var perm *backoff.PermanentError
		if errors.As(err, &perm) {
			return err
		}
		if ctx.Err() != nil {
			return backoff.Permanent(err)
		}
		var gwErr *domain.GatewayError
		if !errors.As(err, &gwErr) || !gwErr.Transient() {
			return backoff.Permanent(err)
		}
		c.log.Warn().Err(err).Str("op", op).Int("attempt", attempt).Msg("gateway call failed, retrying")
		return err
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryWait
	eb.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(eb, c.retries), ctx)

	err := backoff.Retry(wrapped, policy)
	if err == nil {
		return nil
	}
	var gwErr *domain.GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}
	return &domain.GatewayError{Provider: c.provider, Op: op, Err: err}
}
