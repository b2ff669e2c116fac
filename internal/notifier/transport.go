package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hotel-plan-finder/internal/config"

	log "github.com/sirupsen/logrus"
)

// Transport delivers a rendered message
type Transport interface {
	Name() string
	Send(ctx context.Context, message string) error
}

// TransportError reports a failed delivery
type TransportError struct {
	Transport  string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s transport: status %d", e.Transport, e.StatusCode)
	}
	return fmt.Sprintf("%s transport: %v", e.Transport, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// NewTransport builds the transport selected by cfg.Type
func NewTransport(cfg config.NotifierConfig) (Transport, error) {
	client := &http.Client{Timeout: cfg.GetTimeout()}

	switch strings.ToLower(cfg.Type) {
	case "slack":
		if cfg.SlackWebhook == "" {
			return nil, fmt.Errorf("slack notifier: webhook URL is not set")
		}
		return NewSlackTransport(cfg.SlackWebhook, client), nil
	case "line":
		if cfg.LineToken == "" {
			return nil, fmt.Errorf("line notifier: token is not set")
		}
		return NewLineTransport(cfg.LineToken, cfg.LineEndpoint, client), nil
	case "log", "":
		return NewLogTransport(), nil
	default:
		return nil, fmt.Errorf("unknown notifier: %q", cfg.Type)
	}
}

// SlackTransport posts to a Slack incoming webhook
type SlackTransport struct {
	webhookURL string
	client     *http.Client
}

// NewSlackTransport creates a Slack webhook transport
func NewSlackTransport(webhookURL string, client *http.Client) *SlackTransport {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SlackTransport{webhookURL: webhookURL, client: client}
}

func (t *SlackTransport) Name() string { return "slack" }

func (t *SlackTransport) Send(ctx context.Context, message string) error {
	payload, err := json.Marshal(map[string]string{"text": message})
	if err != nil {
		return &TransportError{Transport: t.Name(), Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return &TransportError{Transport: t.Name(), Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	return do(t.client, req, t.Name())
}

// LineTransport posts to LINE Notify with a bearer token
type LineTransport struct {
	token    string
	endpoint string
	client   *http.Client
}

// NewLineTransport creates a LINE Notify transport
func NewLineTransport(token, endpoint string, client *http.Client) *LineTransport {
	if endpoint == "" {
		endpoint = "https://notify-api.line.me/api/notify"
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &LineTransport{token: token, endpoint: endpoint, client: client}
}

func (t *LineTransport) Name() string { return "line" }

func (t *LineTransport) Send(ctx context.Context, message string) error {
	form := url.Values{"message": {message}}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return &TransportError{Transport: t.Name(), Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+t.token)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	return do(t.client, req, t.Name())
}

func do(client *http.Client, req *http.Request, name string) error {
	resp, err := client.Do(req)
	if err != nil {
		return &TransportError{Transport: name, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &TransportError{Transport: name, StatusCode: resp.StatusCode}
	}
	return nil
}

// LogTransport writes messages to the log. Used when no webhook is configured.
type LogTransport struct{}

// NewLogTransport creates a log transport
func NewLogTransport() *LogTransport {
	return &LogTransport{}
}

func (t *LogTransport) Name() string { return "log" }

func (t *LogTransport) Send(ctx context.Context, message string) error {
	log.WithField("transport", "log").Info("Notifier: " + strings.ReplaceAll(message, "\n", " | "))
	return nil
}
