// REST client for the access-control router's hotspot user API.

package device

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// ErrOffline marks the device as unreachable; callers fail the whole
// batch fast instead of reporting a per-voucher failure for every entry.
var ErrOffline = errors.New("device offline")

const (
	defaultTimeout = 5 * time.Second
	pingTimeout    = 3 * time.Second
)

// Credential is one hotspot login entry on the device.
type Credential struct {
	Name        string `json:"name"`
	Password    string `json:"password,omitempty"`
	Profile     string `json:"profile,omitempty"`
	UptimeLimit string `json:"limit-uptime,omitempty"`
	Comment     string `json:"comment,omitempty"`
}

type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	// A single physical router cannot absorb unbounded request bursts.
	limiter *rate.Limiter
}

func NewClient(baseURL, username, password string) *Client {
	return &Client{
		baseURL:  baseURL,
		username: username,
		password: password,
		http:     &http.Client{Timeout: defaultTimeout},
		limiter:  rate.NewLimiter(rate.Limit(10), 5),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	req.SetBasicAuth(c.username, c.password)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrOffline, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("device returned %s: %s", resp.Status, msg)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode device response: %w", err)
		}
	}
	return nil
}

// Ping checks reachability before a sync batch starts.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return c.do(ctx, http.MethodGet, "/rest/system/identity", nil, nil)
}

// ListUsers fetches the hotspot login entries currently on the device.
func (c *Client) ListUsers(ctx context.Context) ([]Credential, error) {
	var users []Credential
	if err := c.do(ctx, http.MethodGet, "/rest/ip/hotspot/user", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser adds one hotspot login entry.
func (c *Client) CreateUser(ctx context.Context, cred Credential) error {
	return c.do(ctx, http.MethodPut, "/rest/ip/hotspot/user", cred, nil)
}
