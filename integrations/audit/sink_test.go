package audit

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"nftfi/core/events"
	"nftfi/crypto"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	return db
}

func TestSinkPersistsEventsInOrder(t *testing.T) {
	db := setupTestDB(t)
	sink, err := NewSink(db, nil)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	owner := crypto.DeriveAddress([]byte("owner"))
	sink.Emit(events.PoolCreated{PoolID: 3, Owner: owner, Amount: big.NewInt(10_000), APR: 5, PaymentCycleCount: 2, DurationSecs: 60})
	sink.Emit(events.PoolClosed{PoolID: 3, Recipient: owner, Payout: big.NewInt(10_050)})

	records, err := sink.List(context.Background(), "", 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 || records[0].Type != events.TypePoolCreated || records[1].Type != events.TypePoolClosed {
		t.Fatalf("unexpected records %+v", records)
	}
	attrs, err := records[1].Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if attrs["payout"] != "10050" || attrs["poolId"] != "3" {
		t.Fatalf("unexpected attributes %v", attrs)
	}

	filtered, err := sink.List(context.Background(), events.TypePoolClosed, 10)
	if err != nil || len(filtered) != 1 {
		t.Fatalf("filter: %v %d", err, len(filtered))
	}
}

func TestSinkResumesSequence(t *testing.T) {
	db := setupTestDB(t)
	first, err := NewSink(db, nil)
	if err != nil {
		t.Fatalf("new sink: %v", err)
	}
	first.Emit(events.PauseToggled{Paused: true})

	second, err := NewSink(db, nil)
	if err != nil {
		t.Fatalf("reopen sink: %v", err)
	}
	second.Emit(events.PauseToggled{Paused: false})
	records, _ := second.List(context.Background(), events.TypePauseToggled, 0)
	if len(records) != 2 || records[1].Seq != 1 {
		t.Fatalf("sequence not resumed: %+v", records)
	}
}

func TestOpenRejectsUnknownScheme(t *testing.T) {
	if _, err := Open("mysql://db"); err == nil {
		t.Fatalf("expected error")
	}
}
