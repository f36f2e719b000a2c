// Package whatsapp sends agent replies through the provider's Graph API.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// DefaultTimeout bounds one outbound send. The provider can be slow to
// acknowledge; anything past this is a network failure for the attempt.
const DefaultTimeout = 60 * time.Second

// FailureKind classifies a failed dispatch.
type FailureKind string

const (
	// FailureNetwork covers transport problems: DNS, refused connections,
	// timeouts.
	FailureNetwork FailureKind = "network"
	// FailureStatus covers non-2xx provider responses.
	FailureStatus FailureKind = "status"
	// FailureResponse covers 2xx responses whose body lacks the expected
	// message id.
	FailureResponse FailureKind = "response"
)

// DispatchError is the typed failure returned for any provider-side or
// network-side problem. The caller surfaces "message not sent" and moves on;
// there are no retries.
type DispatchError struct {
	Kind       FailureKind
	StatusCode int // set for FailureStatus
	Detail     string
	Err        error
}

func (e *DispatchError) Error() string {
	switch e.Kind {
	case FailureStatus:
		return fmt.Sprintf("whatsapp: provider returned %d: %s", e.StatusCode, e.Detail)
	case FailureResponse:
		return fmt.Sprintf("whatsapp: unusable provider response: %s", e.Detail)
	default:
		return fmt.Sprintf("whatsapp: network failure: %v", e.Err)
	}
}

func (e *DispatchError) Unwrap() error { return e.Err }

// DeliveryReceipt confirms the provider accepted a message.
type DeliveryReceipt struct {
	MessageID string
}

// Client dispatches text messages via the Graph API.
type Client struct {
	httpClient    *http.Client
	apiBase       string
	version       string
	accessToken   string
	phoneNumberID string
	logger        zerolog.Logger
}

// Opts holds parameters for creating a Client.
type Opts struct {
	APIBase       string // e.g. https://graph.facebook.com
	Version       string // e.g. v18.0
	AccessToken   string
	PhoneNumberID string
	HTTPClient    *http.Client // optional; defaults to DefaultTimeout
	Logger        zerolog.Logger
}

// New creates a Client. Missing credentials are a programming/configuration
// error and abort startup; they are never a per-request condition.
func New(opts Opts) (*Client, error) {
	if opts.AccessToken == "" {
		return nil, fmt.Errorf("whatsapp: access token is required")
	}
	if opts.PhoneNumberID == "" {
		return nil, fmt.Errorf("whatsapp: phone number id is required")
	}
	if opts.APIBase == "" {
		opts.APIBase = "https://graph.facebook.com"
	}
	if opts.Version == "" {
		opts.Version = "v18.0"
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}
	return &Client{
		httpClient:    httpClient,
		apiBase:       opts.APIBase,
		version:       opts.Version,
		accessToken:   opts.AccessToken,
		phoneNumberID: opts.PhoneNumberID,
		logger:        opts.Logger.With().Str("component", "whatsapp").Logger(),
	}, nil
}

// sendRequest is the provider's message envelope.
type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Type             string   `json:"type"`
	Text             sendText `json:"text"`
}

type sendText struct {
	PreviewURL bool   `json:"preview_url"`
	Body       string `json:"body"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

// Send delivers one text message to the external identifier. Any provider or
// network problem comes back as a *DispatchError; Send never panics for
// those. The caller owns persistence and broadcast on success.
func (c *Client) Send(ctx context.Context, to, body string) (*DeliveryReceipt, error) {
	url := fmt.Sprintf("%s/%s/%s/messages", c.apiBase, c.version, c.phoneNumberID)
	payload, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             sendText{Body: body},
	})
	if err != nil {
		return nil, fmt.Errorf("whatsapp: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("whatsapp: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	c.logger.Debug().Str("to", to).Msg("dispatching message")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &DispatchError{Kind: FailureNetwork, Err: err}
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &DispatchError{
			Kind:       FailureStatus,
			StatusCode: resp.StatusCode,
			Detail:     string(respBody),
		}
	}

	var parsed sendResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, &DispatchError{Kind: FailureResponse, Detail: err.Error(), Err: err}
	}
	if len(parsed.Messages) == 0 || parsed.Messages[0].ID == "" {
		return nil, &DispatchError{Kind: FailureResponse, Detail: "response carries no message id"}
	}

	receipt := &DeliveryReceipt{MessageID: parsed.Messages[0].ID}
	c.logger.Info().Str("to", to).Str("provider_message_id", receipt.MessageID).Msg("message accepted by provider")
	return receipt, nil
}
