package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"gator/domain"
)

type Client struct {
	base string
	hc   *http.Client
}

func NewClient(addr string) *Client {
	base := addr
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{base: strings.TrimRight(base, "/"), hc: &http.Client{Timeout: 5 * time.Second}}
}

func (c *Client) Status(ctx context.Context) (domain.SchedulerStatus, error) {
	var st domain.SchedulerStatus
	err := c.do(ctx, http.MethodGet, "/status", nil, &st)
	return st, err
}

// SetInterval changes the running aggregator's interval and returns the previous one.
func (c *Client) SetInterval(ctx context.Context, d time.Duration) (time.Duration, error) {
	var r intervalResponse
	if err := c.do(ctx, http.MethodPost, "/set-interval", intervalRequest{Duration: d.String()}, &r); err != nil {
		return 0, err
	}
	if r.Old == "" {
		return 0, nil
	}
	old, err := time.ParseDuration(r.Old)
	if err != nil {
		return 0, fmt.Errorf("decoding previous interval: %w", err)
	}
	return old, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("is the aggregator running? %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("server error: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
