// internal/gateway/http.go
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Error is the uniform failure type for every gateway call: non-2xx
// responses, timeouts and transport errors all surface as *Error.
type Error struct {
	Op     string
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gateway %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("gateway %s: unexpected status %d", e.Op, e.Status)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPClient talks to the gateway's REST surface. The embedded http.Client
// carries a hard timeout so a hung gateway call becomes an *Error instead of
// stalling the dispatch loop forever.
type HTTPClient struct {
	BaseURL string
	Token   string
	HTTP    *http.Client
}

func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		BaseURL: baseURL,
		Token:   token,
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) ListActiveAccounts(ctx context.Context) ([]Account, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/accounts", nil)
	if err != nil {
		return nil, &Error{Op: "list accounts", Err: err}
	}
	c.authorize(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, &Error{Op: "list accounts", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, resp.Body)
		return nil, &Error{Op: "list accounts", Status: resp.StatusCode}
	}

	var accounts []Account
	if err := json.NewDecoder(resp.Body).Decode(&accounts); err != nil {
		return nil, &Error{Op: "list accounts", Err: err}
	}

	active := []Account{}
	for _, a := range accounts {
		if a.Connected {
			active = append(active, a)
		}
	}
	return active, nil
}

func (c *HTTPClient) SendText(ctx context.Context, accountID, recipient, body string) error {
	payload, err := json.Marshal(map[string]string{
		"account_id": accountID,
		"recipient":  recipient,
		"body":       body,
	})
	if err != nil {
		return &Error{Op: "send", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/send", bytes.NewReader(payload))
	if err != nil {
		return &Error{Op: "send", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return &Error{Op: "send", Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Op: "send", Status: resp.StatusCode}
	}
	return nil
}

func (c *HTTPClient) authorize(req *http.Request) {
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
}

var _ Client = (*HTTPClient)(nil)
