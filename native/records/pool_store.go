package records

import (
	"fmt"

	"nftfi/crypto"
	"nftfi/native/common"
)

const (
	poolPrefix      = "records/pools/"
	loanPrefix      = "records/loans/"
	repaymentPrefix = "records/repayments/"
)

var (
	errPoolNotFound      = common.NotFound("records: pool not found")
	errLoanNotFound      = common.NotFound("records: loan not found")
	errRepaymentNotFound = common.NotFound("records: repayment not found")
	errNilRecord         = common.Validation("records: nil record")
)

// PoolStore keeps pools, loans and their repayment history. Only the owner
// may write; reads are open to everyone.
type PoolStore struct {
	ownership
	space      *Space
	pools      *Table[*Pool]
	loans      *Table[*Loan]
	repayments *Table[*LoanRepayment]
}

// OpenPoolStore builds the store on space, reloading any persisted rows.
func OpenPoolStore(space *Space, owner crypto.Address) (*PoolStore, error) {
	s := &PoolStore{
		ownership:  ownership{owner: owner},
		space:      space,
		pools:      NewTable(space, poolPrefix, poolCodec),
		loans:      NewTable(space, loanPrefix, loanCodec),
		repayments: NewTable(space, repaymentPrefix, repaymentCodec),
	}
	for _, load := range []func() error{s.pools.Load, s.loans.Load, s.repayments.Load} {
		if err := load(); err != nil {
			return nil, fmt.Errorf("open pool store: %w", err)
		}
	}
	return s, nil
}

func (s *PoolStore) InsertPool(caller crypto.Address, pool *Pool) (uint64, error) {
	if err := s.authorize(caller); err != nil {
		return 0, err
	}
	if pool == nil {
		return 0, errNilRecord
	}
	return s.pools.Insert(pool)
}

func (s *PoolStore) UpdatePool(caller crypto.Address, pool *Pool) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	if pool == nil {
		return errNilRecord
	}
	if _, ok := s.pools.Get(pool.ID); !ok {
		return errPoolNotFound
	}
	return s.pools.Update(pool.ID, pool)
}

func (s *PoolStore) InsertLoan(caller crypto.Address, loan *Loan) (uint64, error) {
	if err := s.authorize(caller); err != nil {
		return 0, err
	}
	if loan == nil {
		return 0, errNilRecord
	}
	if _, ok := s.pools.Get(loan.PoolID); !ok {
		return 0, errPoolNotFound
	}
	return s.loans.Insert(loan)
}

func (s *PoolStore) UpdateLoan(caller crypto.Address, loan *Loan) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	if loan == nil {
		return errNilRecord
	}
	if _, ok := s.loans.Get(loan.ID); !ok {
		return errLoanNotFound
	}
	return s.loans.Update(loan.ID, loan)
}

func (s *PoolStore) InsertRepayment(caller crypto.Address, repayment *LoanRepayment) (uint64, error) {
	if err := s.authorize(caller); err != nil {
		return 0, err
	}
	if repayment == nil {
		return 0, errNilRecord
	}
	if _, ok := s.loans.Get(repayment.LoanID); !ok {
		return 0, errLoanNotFound
	}
	return s.repayments.Insert(repayment)
}

func (s *PoolStore) Pool(id uint64) (*Pool, error) {
	pool, ok := s.pools.Get(id)
	if !ok {
		return nil, errPoolNotFound
	}
	return pool, nil
}

func (s *PoolStore) Loan(id uint64) (*Loan, error) {
	loan, ok := s.loans.Get(id)
	if !ok {
		return nil, errLoanNotFound
	}
	return loan, nil
}

func (s *PoolStore) Repayment(id uint64) (*LoanRepayment, error) {
	repayment, ok := s.repayments.Get(id)
	if !ok {
		return nil, errRepaymentNotFound
	}
	return repayment, nil
}

func (s *PoolStore) LoansByPool(poolID uint64) []*Loan {
	return s.loans.Filter(func(l *Loan) bool { return l.PoolID == poolID })
}

func (s *PoolStore) RepaymentsByLoan(loanID uint64) []*LoanRepayment {
	return s.repayments.Filter(func(r *LoanRepayment) bool { return r.LoanID == loanID })
}

func (s *PoolStore) PoolCount() uint64 { return s.pools.Len() }

func (s *PoolStore) LoanCount() uint64 { return s.loans.Len() }
