package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lojasmm/choicebot/internal/bot"
	"github.com/lojasmm/choicebot/internal/choice"
)

const apiURL = "https://graph.facebook.com/v21.0"

// Client sends messages through the WhatsApp Cloud API. It implements
// bot.Channel, with the conversation id being the user's phone number.
type Client struct {
	baseURL       string
	phoneNumberID string
	accessToken   string
	http          *http.Client
}

var _ bot.Channel = (*Client)(nil)

func NewClient(phoneNumberID, accessToken string) *Client {
	return &Client{
		baseURL:       apiURL,
		phoneNumberID: phoneNumberID,
		accessToken:   accessToken,
		http:          &http.Client{Timeout: 15 * time.Second},
	}
}

// WithBaseURL points the client at another Graph API host.
func (c *Client) WithBaseURL(u string) *Client {
	c.baseURL = u
	return c
}

// Present renders the view as one or more messages.
func (c *Client) Present(ctx context.Context, to string, v choice.View) error {
	for _, msg := range Render(to, v) {
		if err := c.send(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}

// Deliver confirms the answer back to the user.
func (c *Client) Deliver(ctx context.Context, to string, s choice.Submission) error {
	shown := s.Value
	if s.Label != nil && *s.Label != "" {
		shown = *s.Label
	}
	return c.SendText(ctx, to, "✓ "+shown)
}

func (c *Client) SendText(ctx context.Context, to, body string) error {
	return c.send(ctx, textMessage(to, body))
}

func (c *Client) send(ctx context.Context, msg SendMessageRequest) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshaling message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("whatsapp API status %d: %s", resp.StatusCode, respBody)
	}
	return nil
}
