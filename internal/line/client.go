package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

const defaultReplyEndpoint = "https://api.line.me/v2/bot/message/reply"

// Replier delivers one reply to the platform.
type Replier interface {
	Reply(ctx context.Context, reply Reply) error
}

// ClientConfig configures the HTTP reply client.
type ClientConfig struct {
	ChannelToken string
	Endpoint     string
	Timeout      time.Duration
}

// Client posts replies to the platform reply endpoint.
type Client struct {
	http     *http.Client
	endpoint string
	token    string
}

var _ Replier = (*Client)(nil)

// NewClient builds an HTTP reply client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.ChannelToken == "" {
		return nil, fmt.Errorf("channel token is required")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultReplyEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		http:     &http.Client{Timeout: cfg.Timeout},
		endpoint: cfg.Endpoint,
		token:    cfg.ChannelToken,
	}, nil
}

type wireAction struct {
	Type   string `json:"type"`
	Action struct {
		Type  string `json:"type"`
		Label string `json:"label"`
		Text  string `json:"text"`
	} `json:"action"`
}

type wireMessage struct {
	Type       string `json:"type"`
	Text       string `json:"text"`
	QuickReply *struct {
		Items []wireAction `json:"items"`
	} `json:"quickReply,omitempty"`
}

// Reply sends one text reply, with optional quick-action buttons.
func (c *Client) Reply(ctx context.Context, reply Reply) error {
	msg := wireMessage{Type: "text", Text: reply.Text}
	if len(reply.QuickActions) > 0 {
		msg.QuickReply = &struct {
			Items []wireAction `json:"items"`
		}{}
		for _, qa := range reply.QuickActions {
			item := wireAction{Type: "action"}
			item.Action.Type = "message"
			item.Action.Label = qa.Label
			item.Action.Text = qa.Text
			msg.QuickReply.Items = append(msg.QuickReply.Items, item)
		}
	}
	body, err := json.Marshal(map[string]any{
		"replyToken": reply.ReplyToken,
		"messages":   []wireMessage{msg},
	})
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build reply request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("reply endpoint returned %d", resp.StatusCode)
	}
	return nil
}

// Recorder is a Replier that records replies, for tests and dry runs.
type Recorder struct {
	mu      sync.Mutex
	replies []Reply
}

var _ Replier = (*Recorder)(nil)

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Reply records the reply and always succeeds.
func (r *Recorder) Reply(_ context.Context, reply Reply) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replies = append(r.replies, reply)
	return nil
}

// Replies returns a copy of everything recorded so far.
func (r *Recorder) Replies() []Reply {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Reply, len(r.replies))
	copy(out, r.replies)
	return out
}
