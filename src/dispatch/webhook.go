package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/stake-plus/dao-governance/src/governance"
	"github.com/stake-plus/dao-governance/src/webclient"
)

const IdempotencyHeader = "Idempotency-Key"

// WebhookTarget POSTs custom calls as JSON to a URL, retrying 429 and 5xx.
type WebhookTarget struct {
	url      string
	client   *http.Client
	attempts int
	delay    time.Duration
}

type WebhookOption func(*WebhookTarget)

func WithHTTPClient(c *http.Client) WebhookOption { return func(w *WebhookTarget) { w.client = c } }

func WithRetry(attempts int, delay time.Duration) WebhookOption {
	return func(w *WebhookTarget) { w.attempts, w.delay = attempts, delay }
}

func NewWebhookTarget(url string, opts ...WebhookOption) *WebhookTarget {
	w := &WebhookTarget{
		url:      url,
		client:   webclient.NewDefault(15 * time.Second),
		attempts: 3,
		delay:    time.Second,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type webhookPayload struct {
	UnitID     string `json:"unit_id"`
	ProposalID uint64 `json:"proposal_id"`
	Target     string `json:"target"`
	Data       []byte `json:"data"`
}

func (w *WebhookTarget) Call(ctx context.Context, call governance.CustomCall) error {
	body, err := json.Marshal(webhookPayload{
		UnitID:     call.UnitID,
		ProposalID: call.ProposalID,
		Target:     call.Target,
		Data:       call.Data,
	})
	if err != nil {
		return err
	}
	key := IdempotencyKey(call)

	status, resp, err := webclient.DoWithRetry(ctx, w.attempts, w.delay, func() (int, []byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return 0, nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(IdempotencyHeader, key)

		res, err := w.client.Do(req)
		if err != nil {
			return 0, nil, err
		}
		defer res.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(res.Body, 4<<10))
		return res.StatusCode, b, nil
	})
	if err != nil {
		return fmt.Errorf("webhook %s: %w", call.Target, err)
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("webhook %s: status %d: %s", call.Target, status, bytes.TrimSpace(resp))
	}
	return nil
}
