package lending

import (
	"math/big"

	"nftfi/native/records"
)

var (
	basisPoints = big.NewInt(10_000)
	hundred     = big.NewInt(100)
)

// totalInterest is the flat interest charged over the loan term.
func totalInterest(principal *big.Int, apr uint64) *big.Int {
	out := new(big.Int).Mul(principal, new(big.Int).SetUint64(apr))
	return out.Quo(out, hundred)
}

// split returns installment k's share of total; the last installment absorbs
// the rounding remainder.
func split(total *big.Int, cycles, k uint64) *big.Int {
	if cycles == 0 {
		return big.NewInt(0)
	}
	share := new(big.Int).Quo(total, new(big.Int).SetUint64(cycles))
	if k+1 < cycles {
		return share
	}
	prior := new(big.Int).Mul(share, new(big.Int).SetUint64(cycles-1))
	return prior.Sub(total, prior)
}

func installmentPrincipal(loan *records.Loan, k uint64) *big.Int {
	return split(loan.Principal, loan.PaymentCycleCount, k)
}

func installmentInterest(loan *records.Loan, k uint64) *big.Int {
	return split(loan.TotalInterest, loan.PaymentCycleCount, k)
}

// dueAt is the last second installment k can be paid without a default fee.
func dueAt(loan *records.Loan, k uint64) int64 {
	if loan.PaymentCycleCount == 0 {
		return loan.StartedAt
	}
	offset := new(big.Int).SetUint64(loan.DurationSecs)
	offset.Mul(offset, new(big.Int).SetUint64(k+1))
	offset.Quo(offset, new(big.Int).SetUint64(loan.PaymentCycleCount))
	return loan.StartedAt + offset.Int64()
}

func defaultFee(principalPart *big.Int, feeBps uint64) *big.Int {
	fee := new(big.Int).Mul(principalPart, new(big.Int).SetUint64(feeBps))
	return fee.Quo(fee, basisPoints)
}
