package events

import (
	"math/big"
	"testing"

	"github.com/holiman/uint256"

	"nftfi/crypto"
)

func TestPoolCreatedEvent(t *testing.T) {
	owner := crypto.DeriveAddress([]byte("lender"))
	evt := PoolCreated{
		PoolID:            3,
		Owner:             owner,
		Amount:            big.NewInt(10_000),
		APR:               5,
		PaymentCycleCount: 2,
		DurationSecs:      5_260_000,
	}.Event()
	if evt.Type != TypePoolCreated {
		t.Fatalf("unexpected type: %s", evt.Type)
	}
	if evt.Attributes["poolId"] != "3" || evt.Attributes["amount"] != "10000" {
		t.Fatalf("unexpected attrs: %+v", evt.Attributes)
	}
	if evt.Attributes["owner"] != owner.String() {
		t.Fatalf("unexpected owner attr: %s", evt.Attributes["owner"])
	}
}

func TestEscrowTransitionOmitsEmptyRecipient(t *testing.T) {
	evt := EscrowTransition{Kind: TypeEscrowCreated, PurchaseID: 1, TokenID: uint256.NewInt(7)}.Event()
	if _, ok := evt.Attributes["recipient"]; ok {
		t.Fatalf("recipient should be omitted: %+v", evt.Attributes)
	}
	if evt.Attributes["tokenId"] != "7" {
		t.Fatalf("unexpected token id: %s", evt.Attributes["tokenId"])
	}
}

func TestRecorderAndFanout(t *testing.T) {
	first := &Recorder{}
	second := &Recorder{}
	fan := Fanout{first, nil, second}
	fan.Emit(PauseToggled{Paused: true})
	fan.Emit(NFTClaimed{PurchaseID: 2})

	if got := len(first.Events()); got != 2 {
		t.Fatalf("expected 2 events, got %d", got)
	}
	if got := len(second.OfType(TypeNFTClaimed)); got != 1 {
		t.Fatalf("expected 1 claim event, got %d", got)
	}
	first.Reset()
	if len(first.Events()) != 0 {
		t.Fatalf("expected reset recorder")
	}
}
