package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	retryablehttp "github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/spec-kit/access-gate-service/internal/config"
)

// WebhookGateway talks to the channel manager over HTTP. Each operation
// maps to POST {base}/{op} with a JSON body naming the subject. 5xx and
// transport errors are retried by the underlying client and reported as
// temporary; 403/404/410 are terminal.
type WebhookGateway struct {
	client    *retryablehttp.Client
	baseURL   string
	authToken string
	timeout   time.Duration
}

// NewWebhookGateway builds the HTTP-backed gateway.
func NewWebhookGateway(cfg config.GatewayConfig, logger *zap.Logger) *WebhookGateway {
	client := retryablehttp.NewClient()
	client.RetryMax = cfg.RetryMax
	client.HTTPClient.Timeout = cfg.CallTimeout
	client.Logger = nil
	if logger != nil {
		client.RequestLogHook = func(_ retryablehttp.Logger, req *http.Request, attempt int) {
			if attempt > 0 {
				logger.Warn("gateway retry", zap.String("url", req.URL.Path), zap.Int("attempt", attempt))
			}
		}
	}
	return &WebhookGateway{
		client:    client,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		authToken: cfg.AuthToken,
		timeout:   cfg.CallTimeout,
	}
}

// Grant grants premium access on the channel.
func (g *WebhookGateway) Grant(ctx context.Context, subjectID string) error {
	_, err := g.post(ctx, "grant", subjectID)
	return err
}

// Revoke removes the subject from the channel.
func (g *WebhookGateway) Revoke(ctx context.Context, subjectID string) error {
	_, err := g.post(ctx, "revoke", subjectID)
	return err
}

// Admit creates a channel invite for a queued subject.
func (g *WebhookGateway) Admit(ctx context.Context, subjectID string) (*InviteHandle, error) {
	body, err := g.post(ctx, "admit", subjectID)
	if err != nil {
		return nil, err
	}
	handle := &InviteHandle{SubjectID: subjectID}
	var parsed struct {
		InviteRef string `json:"invite_ref"`
	}
	if len(body) > 0 && json.Unmarshal(body, &parsed) == nil {
		handle.InviteRef = parsed.InviteRef
	}
	return handle, nil
}

func (g *WebhookGateway) post(ctx context.Context, op, subjectID string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{"subject_id": subjectID})
	if err != nil {
		return nil, &GatewayError{Op: op, SubjectID: subjectID, Code: "encode", Temporary: false, Err: err}
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := retryablehttp.NewRequestWithContext(callCtx, http.MethodPost,
		fmt.Sprintf("%s/%s", g.baseURL, op), bytes.NewReader(payload))
	if err != nil {
		return nil, &GatewayError{Op: op, SubjectID: subjectID, Code: "request", Temporary: false, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	if g.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+g.authToken)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, &GatewayError{Op: op, SubjectID: subjectID, Code: "transport", Temporary: true, Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return body, nil
	case resp.StatusCode == http.StatusNotFound,
		resp.StatusCode == http.StatusForbidden,
		resp.StatusCode == http.StatusGone:
		return nil, &GatewayError{Op: op, SubjectID: subjectID, Code: fmt.Sprintf("http_%d", resp.StatusCode), Temporary: false}
	default:
		return nil, &GatewayError{Op: op, SubjectID: subjectID, Code: fmt.Sprintf("http_%d", resp.StatusCode), Temporary: true}
	}
}
