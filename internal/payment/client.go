package payment

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
)

// client wraps outbound provider calls in a circuit breaker so a
// misbehaving gateway fails fast instead of tying up request handlers.
type client struct {
	http *http.Client
	cb   *gobreaker.CircuitBreaker[*http.Response]
}

func newClient(name string, timeout time.Duration) *client {
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
	}
	return &client{
		http: &http.Client{Timeout: timeout},
		cb:   gobreaker.NewCircuitBreaker[*http.Response](settings),
	}
}

// do executes the request through the breaker and returns the response
// body. Any non-2xx response is an error carrying the provider's body.
func (c *client) do(req *http.Request) ([]byte, error) {
	resp, err := c.cb.Execute(func() (*http.Response, error) {
		return c.http.Do(req)
	})
	if err != nil {
		return nil, fmt.Errorf("provider call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("provider returned %d: %s", resp.StatusCode, body)
	}
	return body, nil
}
