package webhooks

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"nftfi/core/events"
)

const (
	HeaderEvent      = "X-NFTFI-Event"
	HeaderDelivery   = "X-NFTFI-Delivery"
	HeaderSignature  = "X-NFTFI-Signature"
	defaultAttempts  = 5
	defaultMinWait   = 2 * time.Second
	defaultMaxWait   = 30 * time.Second
	defaultQueueSize = 128
)

// Payload is the JSON body posted for every committed financing event.
type Payload struct {
	DeliveryID string            `json:"deliveryId"`
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
	EmittedAt  time.Time         `json:"emittedAt"`
}

// Notifier posts financing events to a single endpoint, signing each body
// with HMAC-SHA256 and retrying failed deliveries with exponential backoff.
type Notifier struct {
	endpoint    string
	secret      []byte
	client      *http.Client
	logger      *slog.Logger
	maxAttempts int
	minBackoff  time.Duration
	maxBackoff  time.Duration
	now         func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan delivery
	wg     sync.WaitGroup
}

type delivery struct {
	id        string
	eventType string
	body      []byte
}

// Option mutates notifier configuration.
type Option func(*Notifier)

func WithHTTPClient(client *http.Client) Option {
	return func(n *Notifier) {
		if client != nil {
			n.client = client
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		if logger != nil {
			n.logger = logger
		}
	}
}

// WithRetryPolicy overrides the attempt budget and backoff window.
func WithRetryPolicy(maxAttempts int, minBackoff, maxBackoff time.Duration) Option {
	return func(n *Notifier) {
		if maxAttempts > 0 {
			n.maxAttempts = maxAttempts
		}
		if minBackoff > 0 {
			n.minBackoff = minBackoff
		}
		if maxBackoff >= minBackoff && maxBackoff > 0 {
			n.maxBackoff = maxBackoff
		}
	}
}

// NewNotifier validates the endpoint and starts the delivery worker.
func NewNotifier(endpoint string, secret []byte, opts ...Option) (*Notifier, error) {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		return nil, errors.New("webhook: endpoint required")
	}
	if len(secret) == 0 {
		return nil, errors.New("webhook: secret required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	n := &Notifier{
		endpoint:    endpoint,
		secret:      append([]byte(nil), secret...),
		client:      &http.Client{Timeout: 15 * time.Second},
		logger:      slog.New(slog.NewTextHandler(io.Discard, nil)),
		maxAttempts: defaultAttempts,
		minBackoff:  defaultMinWait,
		maxBackoff:  defaultMaxWait,
		now:         time.Now,
		ctx:         ctx,
		cancel:      cancel,
		queue:       make(chan delivery, defaultQueueSize),
	}
	for _, opt := range opts {
		opt(n)
	}
	n.wg.Add(1)
	go n.worker()
	return n, nil
}

// Close stops the worker and waits for the inflight delivery.
func (n *Notifier) Close() error {
	if n == nil {
		return nil
	}
	n.cancel()
	n.wg.Wait()
	return nil
}

// Emit queues evt for delivery. It never blocks the engine: when the queue
// is full the event is dropped and logged.
func (n *Notifier) Emit(evt events.Event) {
	if n == nil || evt == nil {
		return
	}
	payload := Payload{
		DeliveryID: uuid.NewString(),
		Type:       evt.EventType(),
		Attributes: map[string]string{},
		EmittedAt:  n.now().UTC(),
	}
	if typed, ok := evt.(events.Typed); ok {
		if rendered := typed.Event(); rendered != nil && rendered.Attributes != nil {
			payload.Attributes = rendered.Attributes
		}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		n.logger.Error("webhook payload encode failed", "type", payload.Type, "error", err)
		return
	}
	select {
	case <-n.ctx.Done():
		return
	default:
	}
	select {
	case n.queue <- delivery{id: payload.DeliveryID, eventType: payload.Type, body: body}:
	default:
		n.logger.Warn("webhook queue full, dropping event", "type", payload.Type, "delivery", payload.DeliveryID)
	}
}

func (n *Notifier) worker() {
	defer n.wg.Done()
	for {
		select {
		case job := <-n.queue:
			n.process(job)
		case <-n.ctx.Done():
			return
		}
	}
}

func (n *Notifier) process(job delivery) {
	backoff := n.minBackoff
	timeout := n.client.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(n.ctx, timeout)
		err := n.send(ctx, job)
		cancel()
		if err == nil {
			return
		}
		if attempt >= n.maxAttempts {
			n.logger.Error("webhook delivery abandoned",
				"type", job.eventType,
				"delivery", job.id,
				"attempts", attempt,
				"error", err,
			)
			return
		}
		select {
		case <-time.After(backoff):
		case <-n.ctx.Done():
			return
		}
		backoff = nextBackoff(backoff, n.maxBackoff)
	}
}

func (n *Notifier) send(ctx context.Context, job delivery) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, bytes.NewReader(job.body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderEvent, job.eventType)
	req.Header.Set(HeaderDelivery, job.id)
	req.Header.Set(HeaderSignature, Sign(n.secret, job.body))
	resp, err := n.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return fmt.Errorf("webhook: delivery failed with status %d", resp.StatusCode)
}

// Sign returns the signature header value for body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

func nextBackoff(current, max time.Duration) time.Duration {
	next := current * 2
	if next > max || next < current {
		return max
	}
	return next
}
