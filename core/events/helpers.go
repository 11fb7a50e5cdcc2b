package events

import (
	"math/big"
	"strconv"

	"github.com/holiman/uint256"
)

func formatAmount(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func formatTokenID(id *uint256.Int) string {
	if id == nil {
		return "0"
	}
	return id.Dec()
}
