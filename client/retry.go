package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/axton-labs/backtrader/telemetry"
	"github.com/sirupsen/logrus"
)

// backoffSchedule is the linear 2s/4s/6s retry schedule from §4.6.
var backoffSchedule = []time.Duration{2 * time.Second, 4 * time.Second, 6 * time.Second}

var rateLimitMarkers = [][]byte{
	[]byte("rate limit"),
	[]byte("rate_limit"),
	[]byte("too many requests"),
}

func looksRateLimited(status int, body []byte) bool {
	if status == http.StatusTooManyRequests {
		return true
	}
	lower := bytes.ToLower(body)
	for _, marker := range rateLimitMarkers {
		if bytes.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// doRequest executes req, retrying up to len(backoffSchedule) times on a
// rate-limit indication with linear backoff; any other HTTP-level error
// fails fast. Returns the response body on a 2xx status.
func doRequest(ctx context.Context, httpClient *http.Client, log *logrus.Entry, req *http.Request, source string) ([]byte, error) {
	var lastErr error

	for attempt := 0; attempt <= len(backoffSchedule); attempt++ {
		attemptReq := req.WithContext(ctx)
		if attempt > 0 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, fmt.Errorf("client: rewinding request body for retry: %w", err)
			}
			attemptReq.Body = body
		}

		resp, err := httpClient.Do(attemptReq)
		if err != nil {
			telemetry.RecordClientError(source)
			return nil, fmt.Errorf("client: request failed: %w", err)
		}
		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			telemetry.RecordClientError(source)
			return nil, fmt.Errorf("client: reading response body: %w", readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		if looksRateLimited(resp.StatusCode, body) {
			lastErr = fmt.Errorf("client: rate limited (status %d)", resp.StatusCode)
			if attempt == len(backoffSchedule) {
				break
			}
			wait := backoffSchedule[attempt]
			log.WithFields(logrus.Fields{
				"attempt": attempt + 1,
				"wait":    wait,
				"status":  resp.StatusCode,
			}).Warn("rate limited, retrying after backoff")
			telemetry.RecordClientRetry(source)
			time.Sleep(wait)
			continue
		}

		telemetry.RecordClientError(source)
		return nil, fmt.Errorf("client: request returned status %d: %s", resp.StatusCode, string(body))
	}

	telemetry.RecordClientError(source)
	return nil, fmt.Errorf("client: exhausted retries: %w", lastErr)
}
