package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

const completionColor = 3066993

// DiscordNotifier posts the completion embed to a Discord webhook. The caller
// treats delivery as fire-and-forget: errors are returned for logging but
// never block or fail the confirmation that triggered them.
type DiscordNotifier struct {
	webhookURL string
	serverName string
	client     *http.Client
}

func NewDiscordNotifier(webhookURL, serverName string, client *http.Client) *DiscordNotifier {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &DiscordNotifier{webhookURL: webhookURL, serverName: serverName, client: client}
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedFooter struct {
	Text string `json:"text"`
}

type embed struct {
	Title     string       `json:"title"`
	Color     int          `json:"color"`
	Fields    []embedField `json:"fields"`
	Timestamp string       `json:"timestamp"`
	Footer    embedFooter  `json:"footer"`
}

type webhookPayload struct {
	Embeds []embed `json:"embeds"`
}

func (n *DiscordNotifier) NotifyCompletion(ctx context.Context, event CompletionEvent) error {
	payload := webhookPayload{Embeds: []embed{{
		Title: "✅ Identity Validated",
		Color: completionColor,
		Fields: []embedField{
			{Name: "Entity UID", Value: "<@" + event.SubjectID + ">", Inline: true},
			{Name: "Session Key", Value: "`" + event.Token + "`", Inline: true},
			{Name: "Status", Value: "SUCCESSFUL HANDSHAKE", Inline: false},
		},
		Timestamp: event.CompletedAt.UTC().Format(time.RFC3339),
		Footer:    embedFooter{Text: n.serverName + " Secure Gateway"},
	}}}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode webhook payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Delivery-Id", uuid.NewString())

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}
