// Package email sends transactional mail through the Postmark HTTP API.
package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Status is the outcome of a send attempt.
type Status string

const (
	StatusSent    Status = "sent"
	StatusSkipped Status = "skipped"
	StatusError   Status = "error"
)

// Message is a single outbound email.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Result describes what happened to a Message.
type Result struct {
	Status    Status
	MessageID string
	Reason    string
}

type Client struct {
	serverToken string
	fromEmail   string
	apiURL      string
	httpClient  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.httpClient = c
	}
}

func NewClient(serverToken, fromEmail, apiURL string, opts ...Option) *Client {
	c := &Client{
		serverToken: serverToken,
		fromEmail:   fromEmail,
		apiURL:      apiURL,
		httpClient:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Configured returns true if the server token and sender are set.
func (c *Client) Configured() bool {
	return c.serverToken != "" && c.fromEmail != "" && c.apiURL != ""
}

type postmarkEmail struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	HtmlBody string `json:"HtmlBody,omitempty"`
	TextBody string `json:"TextBody,omitempty"`
}

type postmarkResponse struct {
	MessageID string `json:"MessageID"`
	ErrorCode int    `json:"ErrorCode"`
	Message   string `json:"Message"`
}

// Send delivers msg. Missing configuration, recipient or subject yields a
// skipped result rather than an error; transport and API failures yield
// StatusError together with a non-nil error.
func (c *Client) Send(ctx context.Context, msg Message) (Result, error) {
	if !c.Configured() {
		return Result{Status: StatusSkipped, Reason: "email client not configured"}, nil
	}
	if strings.TrimSpace(msg.To) == "" {
		return Result{Status: StatusSkipped, Reason: "missing recipient"}, nil
	}
	if strings.TrimSpace(msg.Subject) == "" {
		return Result{Status: StatusSkipped, Reason: "missing subject"}, nil
	}

	body, err := json.Marshal(postmarkEmail{
		From:     c.fromEmail,
		To:       msg.To,
		Subject:  msg.Subject,
		HtmlBody: msg.HTMLBody,
		TextBody: msg.TextBody,
	})
	if err != nil {
		return Result{Status: StatusError}, fmt.Errorf("marshal email: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return Result{Status: StatusError}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{Status: StatusError}, fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()

	var pr postmarkResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&pr)

	if resp.StatusCode >= 400 {
		return Result{Status: StatusError, Reason: pr.Message},
			fmt.Errorf("postmark API error: status %d", resp.StatusCode)
	}

	return Result{Status: StatusSent, MessageID: pr.MessageID}, nil
}
