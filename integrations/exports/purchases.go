package exports

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"strconv"
	"time"

	"nftfi/native/records"
)

var purchaseHeader = []string{
	"id", "buyer", "collection", "token_id", "down_payment", "principal",
	"pool_id", "loan_id", "escrow", "seller", "status", "created_at",
}

func purchaseRow(p *records.Purchase) []string {
	escrowAddr := ""
	if !p.Escrow.IsZero() {
		escrowAddr = p.Escrow.String()
	}
	tokenID := "0"
	if p.TokenID != nil {
		tokenID = p.TokenID.Dec()
	}
	return []string{
		strconv.FormatUint(p.ID, 10),
		p.Buyer.String(),
		p.Collection.String(),
		tokenID,
		decimal(p.DownPayment),
		decimal(p.Principal),
		strconv.FormatUint(p.PoolID, 10),
		strconv.FormatUint(p.LoanID, 10),
		escrowAddr,
		p.Seller.String(),
		p.Status.String(),
		time.Unix(p.CreatedAt, 0).UTC().Format(time.RFC3339),
	}
}

func decimal(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func checksum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// PurchasesCSV renders purchases as CSV and returns the payload with its
// SHA-256 checksum.
func PurchasesCSV(purchases []*records.Purchase) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	writer := csv.NewWriter(buffer)
	if err := writer.Write(purchaseHeader); err != nil {
		return nil, "", err
	}
	for _, p := range purchases {
		if p == nil {
			continue
		}
		if err := writer.Write(purchaseRow(p)); err != nil {
			return nil, "", err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, "", err
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}

// PurchasesJSONL renders one JSON object per purchase, keyed like the CSV
// header.
func PurchasesJSONL(purchases []*records.Purchase) ([]byte, string, error) {
	buffer := &bytes.Buffer{}
	encoder := json.NewEncoder(buffer)
	encoder.SetEscapeHTML(false)
	for _, p := range purchases {
		if p == nil {
			continue
		}
		row := purchaseRow(p)
		payload := make(map[string]string, len(row))
		for i, key := range purchaseHeader {
			payload[key] = row[i]
		}
		if err := encoder.Encode(payload); err != nil {
			return nil, "", err
		}
	}
	data := buffer.Bytes()
	return data, checksum(data), nil
}
