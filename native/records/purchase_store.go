package records

import (
	"fmt"

	"github.com/holiman/uint256"

	"nftfi/crypto"
	"nftfi/native/common"
)

const (
	purchasePrefix    = "records/purchases/"
	liquidationPrefix = "records/liquidations/"
)

var (
	errPurchaseNotFound    = common.NotFound("records: purchase not found")
	errLiquidationNotFound = common.NotFound("records: liquidation not found")
)

// PurchaseStore keeps purchases and liquidations.
type PurchaseStore struct {
	ownership
	space        *Space
	purchases    *Table[*Purchase]
	liquidations *Table[*Liquidation]
}

func OpenPurchaseStore(space *Space, owner crypto.Address) (*PurchaseStore, error) {
	s := &PurchaseStore{
		ownership:    ownership{owner: owner},
		space:        space,
		purchases:    NewTable(space, purchasePrefix, purchaseCodec),
		liquidations: NewTable(space, liquidationPrefix, liquidationCodec),
	}
	if err := s.purchases.Load(); err != nil {
		return nil, fmt.Errorf("open purchase store: %w", err)
	}
	if err := s.liquidations.Load(); err != nil {
		return nil, fmt.Errorf("open purchase store: %w", err)
	}
	return s, nil
}

func (s *PurchaseStore) InsertPurchase(caller crypto.Address, purchase *Purchase) (uint64, error) {
	if err := s.authorize(caller); err != nil {
		return 0, err
	}
	if purchase == nil {
		return 0, errNilRecord
	}
	return s.purchases.Insert(purchase)
}

func (s *PurchaseStore) UpdatePurchase(caller crypto.Address, purchase *Purchase) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	if purchase == nil {
		return errNilRecord
	}
	if _, ok := s.purchases.Get(purchase.ID); !ok {
		return errPurchaseNotFound
	}
	return s.purchases.Update(purchase.ID, purchase)
}

func (s *PurchaseStore) InsertLiquidation(caller crypto.Address, liquidation *Liquidation) (uint64, error) {
	if err := s.authorize(caller); err != nil {
		return 0, err
	}
	if liquidation == nil {
		return 0, errNilRecord
	}
	if _, ok := s.purchases.Get(liquidation.PurchaseID); !ok {
		return 0, errPurchaseNotFound
	}
	return s.liquidations.Insert(liquidation)
}

func (s *PurchaseStore) UpdateLiquidation(caller crypto.Address, liquidation *Liquidation) error {
	if err := s.authorize(caller); err != nil {
		return err
	}
	if liquidation == nil {
		return errNilRecord
	}
	if _, ok := s.liquidations.Get(liquidation.ID); !ok {
		return errLiquidationNotFound
	}
	return s.liquidations.Update(liquidation.ID, liquidation)
}

func (s *PurchaseStore) Purchase(id uint64) (*Purchase, error) {
	purchase, ok := s.purchases.Get(id)
	if !ok {
		return nil, errPurchaseNotFound
	}
	return purchase, nil
}

// PurchaseOf returns the purchase only when it belongs to buyer. Foreign ids
// are reported as missing.
func (s *PurchaseStore) PurchaseOf(buyer crypto.Address, id uint64) (*Purchase, error) {
	purchase, ok := s.purchases.Get(id)
	if !ok || purchase.Buyer != buyer {
		return nil, errPurchaseNotFound
	}
	return purchase, nil
}

func (s *PurchaseStore) PurchasesByBuyer(buyer crypto.Address) []*Purchase {
	return s.purchases.Filter(func(p *Purchase) bool { return p.Buyer == buyer })
}

func (s *PurchaseStore) Liquidation(id uint64) (*Liquidation, error) {
	liquidation, ok := s.liquidations.Get(id)
	if !ok {
		return nil, errLiquidationNotFound
	}
	return liquidation, nil
}

func (s *PurchaseStore) LiquidationsByPurchase(purchaseID uint64) []*Liquidation {
	return s.liquidations.Filter(func(l *Liquidation) bool { return l.PurchaseID == purchaseID })
}

// LiquidationsByPool lists the liquidations of loans drawn from poolID.
func (s *PurchaseStore) LiquidationsByPool(poolID uint64) []*Liquidation {
	return s.liquidations.Filter(func(l *Liquidation) bool { return l.PoolID == poolID })
}

// PendingPurchasesOf lists pending purchases of one NFT.
func (s *PurchaseStore) PendingPurchasesOf(collection crypto.Address, tokenID *uint256.Int) []*Purchase {
	return s.purchases.Filter(func(p *Purchase) bool {
		return p.Status == PurchasePending && p.Collection == collection &&
			p.TokenID != nil && tokenID != nil && p.TokenID.Eq(tokenID)
	})
}

func (s *PurchaseStore) PurchaseCount() uint64 { return s.purchases.Len() }
