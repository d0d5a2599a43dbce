package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cakefairy/whatsapp-orderbot/pkg/logging"
)

// Client speaks the WhatsApp Cloud API (Graph) message and media endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	phoneID    string
	logger     *logging.Logger
}

// NewClient builds a Graph API client. baseURL is overridable for tests.
func NewClient(baseURL, token, phoneID string, timeout time.Duration, logger *logging.Logger) *Client {
	if baseURL == "" {
		baseURL = "https://graph.facebook.com/v19.0"
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    baseURL,
		token:      token,
		phoneID:    phoneID,
		logger:     logger,
	}
}

func (c *Client) messagesURL() string {
	return fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneID)
}

func (c *Client) postMessage(ctx context.Context, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("whatsapp: encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.messagesURL(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("whatsapp: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whatsapp: send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

func decodeAPIError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr apiErrorResponse
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Error.Message != "" {
		return fmt.Errorf("whatsapp: api rejected message (status %d, code %d): %s",
			resp.StatusCode, apiErr.Error.Code, apiErr.Error.Message)
	}
	return fmt.Errorf("whatsapp: api rejected message (status %d)", resp.StatusCode)
}

// SendText delivers a single plain-text message. Chunking of oversized
// bodies is the Gateway's job; this sends exactly what it is given.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	return c.postMessage(ctx, textMessage{
		MessagingProduct: "whatsapp",
		To:               to,
		Type:             "text",
		Text:             &textBody{Body: body},
	})
}

// SendButtons delivers an interactive quick-reply message.
func (c *Client) SendButtons(ctx context.Context, to, body string, buttons []Option) error {
	items := make([]buttonItem, 0, len(buttons))
	for _, btn := range buttons {
		items = append(items, buttonItem{
			Type:  "reply",
			Reply: buttonReply{ID: btn.ID, Title: btn.Label},
		})
	}
	return c.postMessage(ctx, interactiveMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive: interactive{
			Type:   "button",
			Body:   textBody{Body: body},
			Action: interactiveAction{Buttons: items},
		},
	})
}

// SendList delivers an interactive scrollable list message.
func (c *Client) SendList(ctx context.Context, to, body, sectionTitle, buttonLabel string, rows []Option, descriptions map[string]string) error {
	formatted := make([]listRow, 0, len(rows))
	for _, row := range rows {
		formatted = append(formatted, listRow{
			ID:          row.ID,
			Title:       row.Label,
			Description: descriptions[row.ID],
		})
	}
	return c.postMessage(ctx, interactiveMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "interactive",
		Interactive: interactive{
			Type: "list",
			Body: textBody{Body: body},
			Action: interactiveAction{
				Button: buttonLabel,
				Sections: []listSection{{
					Title: sectionTitle,
					Rows:  formatted,
				}},
			},
		},
	})
}

// SendImageByID relays a previously uploaded attachment by its media id.
func (c *Client) SendImageByID(ctx context.Context, to, mediaID, caption string) error {
	return c.postMessage(ctx, imageMessage{
		MessagingProduct: "whatsapp",
		RecipientType:    "individual",
		To:               to,
		Type:             "image",
		Image:            imageRef{ID: mediaID, Caption: caption},
	})
}

// FetchMedia resolves a transport media id to raw bytes. The Graph API makes
// this a two-step dance: look up a short-lived download URL, then fetch it
// with the same bearer token.
func (c *Client) FetchMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	lookupURL := fmt.Sprintf("%s/%s", c.baseURL, mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, lookupURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: build media lookup: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: media lookup: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return nil, "", decodeAPIError(resp)
	}
	var lookup mediaLookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&lookup); err != nil {
		return nil, "", fmt.Errorf("whatsapp: decode media lookup: %w", err)
	}
	if lookup.URL == "" {
		return nil, "", fmt.Errorf("whatsapp: media %s has no download url", mediaID)
	}

	dlReq, err := http.NewRequestWithContext(ctx, http.MethodGet, lookup.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: build media download: %w", err)
	}
	dlReq.Header.Set("Authorization", "Bearer "+c.token)

	dlResp, err := c.httpClient.Do(dlReq)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: media download: %w", err)
	}
	defer dlResp.Body.Close()
	if dlResp.StatusCode >= 300 {
		return nil, "", fmt.Errorf("whatsapp: media download rejected (status %d)", dlResp.StatusCode)
	}
	data, err := io.ReadAll(dlResp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("whatsapp: read media body: %w", err)
	}
	contentType := lookup.MimeType
	if contentType == "" {
		contentType = dlResp.Header.Get("Content-Type")
	}
	return data, contentType, nil
}
