package action

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"
)

// httpAlerter implements the Alerter interface using HTTP calls to external services.
type httpAlerter struct {
	client *http.Client
	config AlertingConfig
}

// NewHTTPAlerter creates a new HTTP-based alerter with the given configuration.
func NewHTTPAlerter(config AlertingConfig) Alerter {
	return &httpAlerter{
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		config: config,
	}
}

// SendSlack sends an alert to Slack via the configured incoming webhook URL.
func (a *httpAlerter) SendSlack(ctx context.Context, alert SlackAlert) error {
	if !a.config.Slack.Enabled {
		return fmt.Errorf("slack alerting is not enabled")
	}

	webhookURL := a.config.Slack.WebhookURL
	if webhookURL == "" {
		return fmt.Errorf("slack webhook URL is not configured")
	}

	channel := alert.Channel
	if channel == "" {
		channel = a.config.Slack.Channel
	}

	fields := make([]map[string]any, 0, len(alert.Fields))
	for _, k := range sortedKeys(alert.Fields) {
		fields = append(fields, map[string]any{
			"title": k,
			"value": alert.Fields[k],
			"short": true,
		})
	}

	color := alert.Color
	if color == "" {
		color = "#aaaaaa"
	}

	payload := map[string]any{
		"attachments": []map[string]any{
			{
				"color":  color,
				"title":  alert.Title,
				"text":   alert.Message,
				"fields": fields,
				"ts":     time.Now().Unix(),
			},
		},
	}
	if channel != "" {
		payload["channel"] = channel
	}

	return a.postJSON(ctx, http.MethodPost, webhookURL, nil, payload, "slack")
}

// SendWebhook sends an alert to a configured webhook URL.
func (a *httpAlerter) SendWebhook(ctx context.Context, alert WebhookAlert) error {
	if !a.config.Webhook.Enabled {
		return fmt.Errorf("webhook alerting is not enabled")
	}

	url := alert.URL
	if url == "" {
		url = a.config.Webhook.URL
	}
	if url == "" {
		return fmt.Errorf("webhook URL is not configured")
	}

	method := alert.Method
	if method == "" {
		method = http.MethodPost
	}

	return a.postJSON(ctx, method, url, alert.Headers, alert.Body, "webhook")
}

func (a *httpAlerter) postJSON(ctx context.Context, method, url string, headers map[string]string, payload any, target string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal %s payload: %w", target, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create %s request: %w", target, err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send %s alert: %w", target, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s returned status %d", target, resp.StatusCode)
	}

	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
