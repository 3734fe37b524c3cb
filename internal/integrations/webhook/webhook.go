package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BearBump/KickSync/internal/broker/messages"
	"github.com/pkg/errors"
)

// Client posts Slack-compatible {"text": "..."} payloads to an incoming webhook.
type Client struct {
	url   string
	httpc *http.Client
}

func New(url string) *Client {
	return &Client{
		url: url,
		httpc: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

type payload struct {
	Text string `json:"text"`
}

func (c *Client) Send(ctx context.Context, text string) error {
	b, err := json.Marshal(payload{Text: text})
	if err != nil {
		return errors.Wrap(err, "marshal webhook payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(b))
	if err != nil {
		return errors.Wrap(err, "new request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("webhook http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (c *Client) Notify(ctx context.Context, ev messages.KickboardChanged) error {
	return c.Send(ctx, ev.Text)
}
