package exports

import (
	"math/big"
	"strings"
	"testing"

	"github.com/holiman/uint256"

	"nftfi/crypto"
	"nftfi/native/records"
)

func samplePurchase(id uint64) *records.Purchase {
	return &records.Purchase{
		ID:          id,
		Buyer:       crypto.DeriveAddress([]byte("buyer")),
		Collection:  crypto.DeriveAddress([]byte("collection")),
		TokenID:     uint256.NewInt(7),
		DownPayment: big.NewInt(1000),
		Principal:   big.NewInt(1000),
		PoolID:      1,
		LoanID:      id,
		Seller:      crypto.DeriveAddress([]byte("seller")),
		Status:      records.PurchasePending,
		CreatedAt:   1700,
	}
}

func TestPurchasesCSV(t *testing.T) {
	data, sum, err := PurchasesCSV([]*records.Purchase{samplePurchase(1), nil})
	if err != nil {
		t.Fatalf("csv: %v", err)
	}
	if len(sum) != 64 {
		t.Fatalf("unexpected checksum %q", sum)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %d lines", len(lines))
	}
	if !strings.HasPrefix(lines[0], "id,buyer,collection,token_id") {
		t.Fatalf("missing header: %s", lines[0])
	}
	if !strings.Contains(lines[1], ",7,1000,1000,1,1,,") {
		t.Fatalf("unexpected row: %s", lines[1])
	}
	if !strings.Contains(lines[1], "pending,1970-01-01T00:28:20Z") {
		t.Fatalf("unexpected status or timestamp: %s", lines[1])
	}
}

func TestPurchasesJSONL(t *testing.T) {
	completed := samplePurchase(2)
	completed.Status = records.PurchaseCompleted
	completed.Escrow = crypto.DeriveAddress([]byte("escrow"))
	data, sum, err := PurchasesJSONL([]*records.Purchase{samplePurchase(1), completed})
	if err != nil {
		t.Fatalf("jsonl: %v", err)
	}
	if sum == "" {
		t.Fatalf("expected checksum")
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected two lines, got %d", len(lines))
	}
	if !strings.Contains(lines[1], "\"status\":\"completed\"") {
		t.Fatalf("missing status: %s", lines[1])
	}
	if !strings.Contains(lines[1], completed.Escrow.String()) {
		t.Fatalf("missing escrow: %s", lines[1])
	}
	_, again, _ := PurchasesJSONL([]*records.Purchase{samplePurchase(1), completed})
	if again != sum {
		t.Fatalf("checksum not stable")
	}
}
