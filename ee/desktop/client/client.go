package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kolide/desktopnotification/ee/bridge"
	"github.com/kolide/desktopnotification/ee/desktop/notification"
	"github.com/kolide/desktopnotification/ee/desktop/server"
	"github.com/kolide/desktopnotification/ee/focus"
)

const defaultTimeout = 5 * time.Second

type transport struct {
	authToken string
	base      http.Transport
}

func (t *transport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", t.authToken))
	return t.base.RoundTrip(req)
}

type client struct {
	base http.Client
}

func New(authToken, socketPath string) client {
	transport := &transport{
		authToken: authToken,
		base: http.Transport{
			DialContext: dialContext(socketPath),
		},
	}

	client := client{
		base: http.Client{
			Transport: transport,
			Timeout:   defaultTimeout,
		},
	}

	return client
}

func (c *client) Shutdown() error {
	return c.get("shutdown")
}

func (c *client) Ping() error {
	return c.get("ping")
}

// Notify asks the server to show text as a new message notification and
// returns what the server did with it.
func (c *client) Notify(text string) (notification.Result, error) {
	var response server.NotificationResponse
	if err := c.post("notification", server.NotificationRequest{Text: text}, &response); err != nil {
		return notification.ResultClosed, fmt.Errorf("sending notification: %w", err)
	}

	return response.Result, nil
}

// SetFocus reports the focused window of the host. Pass nil when no window
// of the host has focus.
func (c *client) SetFocus(w *focus.Window) error {
	if err := c.post("focus", server.FocusRequest{Window: w}, nil); err != nil {
		return fmt.Errorf("reporting focus: %w", err)
	}
	return nil
}

func (c *client) Modules() ([]bridge.ModuleDescription, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://unix/modules", nil)
	if err != nil {
		return nil, fmt.Errorf("creating modules request: %w", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return nil, fmt.Errorf("getting modules: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var modules []bridge.ModuleDescription
	if err := json.NewDecoder(resp.Body).Decode(&modules); err != nil {
		return nil, fmt.Errorf("decoding modules: %w", err)
	}

	return modules, nil
}

func (c *client) post(path string, body interface{}, response interface{}) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout())
	defer cancel()

	bodyBytes, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshalling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("http://unix/%s", path), bytes.NewBuffer(bodyBytes))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.base.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if response == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(response); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

func (c *client) get(path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("http://unix/%s", path), nil)
	if err != nil {
		return fmt.Errorf("creating request with context: %w", err)
	}

	resp, err := c.base.Do(req)
	if err != nil {
		return fmt.Errorf("making request: %w", err)
	}

	if resp.Body != nil {
		resp.Body.Close()
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return nil
}

func (c *client) timeout() time.Duration {
	if c.base.Timeout == 0 {
		return defaultTimeout
	}
	return c.base.Timeout
}
