package webhooks

import (
	"encoding/json"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"nftfi/core/events"
	"nftfi/crypto"
)

func TestNotifierSignsPayload(t *testing.T) {
	var (
		mu        sync.Mutex
		signature string
		eventType string
		body      []byte
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		_ = r.Body.Close()
		mu.Lock()
		body = raw
		signature = r.Header.Get(HeaderSignature)
		eventType = r.Header.Get(HeaderEvent)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	secret := []byte("secret")
	notifier, err := NewNotifier(server.URL, secret)
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}
	defer notifier.Close()

	notifier.Emit(events.PoolCreated{
		PoolID: 3,
		Owner:  crypto.DeriveAddress([]byte("lender")),
		Amount: big.NewInt(10_000),
	})
	waitFor(func() bool {
		mu.Lock()
		defer mu.Unlock()
		return signature != ""
	}, time.Second)

	mu.Lock()
	defer mu.Unlock()
	if signature != Sign(secret, body) {
		t.Fatalf("signature mismatch: %s", signature)
	}
	if eventType != events.TypePoolCreated {
		t.Fatalf("unexpected event header %q", eventType)
	}
	var payload Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Attributes["poolId"] != "3" || payload.Attributes["amount"] != "10000" {
		t.Fatalf("unexpected attributes %v", payload.Attributes)
	}
	if payload.DeliveryID == "" {
		t.Fatalf("expected delivery id")
	}
}

func TestNotifierRetries(t *testing.T) {
	attempts := int32(0)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&attempts, 1) < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()
	notifier, err := NewNotifier(server.URL, []byte("secret"), WithRetryPolicy(5, 10*time.Millisecond, 20*time.Millisecond))
	if err != nil {
		t.Fatalf("notifier: %v", err)
	}
	defer notifier.Close()

	notifier.Emit(events.PoolClosed{PoolID: 1, Recipient: crypto.DeriveAddress([]byte("lender")), Payout: big.NewInt(1)})
	waitFor(func() bool { return atomic.LoadInt32(&attempts) >= 3 }, time.Second)
	if atomic.LoadInt32(&attempts) < 3 {
		t.Fatalf("expected retries, got %d", atomic.LoadInt32(&attempts))
	}
}

func TestNewNotifierValidates(t *testing.T) {
	if _, err := NewNotifier(" ", []byte("secret")); err == nil {
		t.Fatalf("expected endpoint error")
	}
	if _, err := NewNotifier("http://localhost", nil); err == nil {
		t.Fatalf("expected secret error")
	}
}

func waitFor(cond func() bool, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
}
