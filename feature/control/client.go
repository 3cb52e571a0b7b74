package control

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"prefork/core/supervisor"

	"github.com/gofiber/fiber/v2"
)

// Commands accepted by the control app.
var Commands = []string{"stats", "gc-stats", "events", "restart", "phased-restart", "stop", "halt"}

// Client talks to a control app over HTTP.
type Client struct {
	base    string
	token   string
	timeout time.Duration
}

// NewClient accepts tcp://host:port (as in the directive file) or http(s)://host:port.
func NewClient(rawURL, token string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid control url %q: %w", rawURL, err)
	}

	switch u.Scheme {
	case "tcp":
		u.Scheme = "http"
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported control url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("control url %q has no host", rawURL)
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		base:    strings.TrimRight(u.Scheme+"://"+u.Host+u.Path, "/"),
		token:   token,
		timeout: timeout,
	}, nil
}

// Fetch performs GET /<path> and returns the body of a 2xx response.
func (c *Client) Fetch(path string, query url.Values) ([]byte, error) {
	if query == nil {
		query = url.Values{}
	}
	if c.token != "" {
		query.Set("token", c.token)
	}

	target := c.base + "/" + strings.TrimLeft(path, "/")
	if encoded := query.Encode(); encoded != "" {
		target += "?" + encoded
	}

	agent := fiber.Get(target).Timeout(c.timeout)
	if err := agent.Parse(); err != nil {
		return nil, fmt.Errorf("invalid request %s: %w", path, err)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return nil, fmt.Errorf("request %s failed: %w", path, errors.Join(errs...))
	}
	if code >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			return nil, fmt.Errorf("%s: %d %s", path, code, apiErr.Error)
		}
		return nil, fmt.Errorf("%s: unexpected status %d", path, code)
	}
	return body, nil
}

// Command runs one of Commands.
func (c *Client) Command(name string) ([]byte, error) {
	for _, known := range Commands {
		if known == name {
			return c.Fetch(name, nil)
		}
	}
	return nil, fmt.Errorf("unknown command %q (known: %s)", name, strings.Join(Commands, ", "))
}

// Stats fetches and decodes /stats.
func (c *Client) Stats() (supervisor.Stats, error) {
	var st supervisor.Stats
	body, err := c.Fetch("stats", nil)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(body, &st); err != nil {
		return st, fmt.Errorf("failed to decode stats: %w", err)
	}
	return st, nil
}

// GCStats fetches /gc-stats as a flat map of numbers.
func (c *Client) GCStats() (map[string]float64, error) {
	body, err := c.Fetch("gc-stats", nil)
	if err != nil {
		return nil, err
	}

	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("failed to decode gc stats: %w", err)
	}
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		if f, ok := v.(float64); ok {
			out[k] = f
		}
	}
	return out, nil
}
