package token

import (
	"errors"
	"math/big"
	"sync"

	"nftfi/crypto"
)

var (
	ErrInsufficientBalance   = errors.New("token: insufficient balance")
	ErrInsufficientAllowance = errors.New("token: insufficient allowance")
	ErrInvalidAmount         = errors.New("token: amount must be non-negative")
	ErrZeroRecipient         = errors.New("token: recipient must not be empty")
)

// Ledger is an in-memory fungible token used for devnets and tests.
type Ledger struct {
	mu         sync.Mutex
	symbol     string
	balances   map[crypto.Address]*big.Int
	allowances map[crypto.Address]map[crypto.Address]*big.Int
}

func NewLedger(symbol string) *Ledger {
	return &Ledger{
		symbol:     symbol,
		balances:   make(map[crypto.Address]*big.Int),
		allowances: make(map[crypto.Address]map[crypto.Address]*big.Int),
	}
}

func (l *Ledger) Symbol() string { return l.symbol }

// Mint credits amount to addr out of thin air.
func (l *Ledger) Mint(addr crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.credit(addr, amount)
	return nil
}

func (l *Ledger) BalanceOf(addr crypto.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if bal, ok := l.balances[addr]; ok {
		return new(big.Int).Set(bal)
	}
	return big.NewInt(0)
}

func (l *Ledger) Allowance(owner, spender crypto.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if allowed, ok := l.allowances[owner][spender]; ok {
		return new(big.Int).Set(allowed)
	}
	return big.NewInt(0)
}

func (l *Ledger) Approve(owner, spender crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.allowances[owner] == nil {
		l.allowances[owner] = make(map[crypto.Address]*big.Int)
	}
	l.allowances[owner][spender] = new(big.Int).Set(amount)
	return nil
}

func (l *Ledger) Transfer(from, to crypto.Address, amount *big.Int) error {
	if err := checkTransfer(to, amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.move(from, to, amount)
}

func (l *Ledger) TransferFrom(spender, from, to crypto.Address, amount *big.Int) error {
	if err := checkTransfer(to, amount); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if spender != from {
		allowed := l.allowances[from][spender]
		if allowed == nil || allowed.Cmp(amount) < 0 {
			return ErrInsufficientAllowance
		}
		if err := l.move(from, to, amount); err != nil {
			return err
		}
		allowed.Sub(allowed, amount)
		return nil
	}
	return l.move(from, to, amount)
}

func checkTransfer(to crypto.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	if to.IsZero() {
		return ErrZeroRecipient
	}
	return nil
}

func (l *Ledger) move(from, to crypto.Address, amount *big.Int) error {
	bal := l.balances[from]
	if bal == nil || bal.Cmp(amount) < 0 {
		if amount.Sign() == 0 {
			return nil
		}
		return ErrInsufficientBalance
	}
	bal.Sub(bal, amount)
	l.credit(to, amount)
	return nil
}

func (l *Ledger) credit(addr crypto.Address, amount *big.Int) {
	bal, ok := l.balances[addr]
	if !ok {
		bal = big.NewInt(0)
		l.balances[addr] = bal
	}
	bal.Add(bal, amount)
}
