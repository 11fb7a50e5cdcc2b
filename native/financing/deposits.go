package financing

import (
	"fmt"

	"github.com/holiman/uint256"

	"nftfi/crypto"
	"nftfi/storage"
)

const depositPrefix = "financing/deposits/"

type depositKey struct {
	collection crypto.Address
	tokenID    [32]byte
}

func newDepositKey(collection crypto.Address, tokenID *uint256.Int) depositKey {
	return depositKey{collection: collection, tokenID: tokenID.Bytes32()}
}

func (k depositKey) dbKey() []byte {
	key := make([]byte, 0, len(depositPrefix)+crypto.AddressLength+32)
	key = append(key, depositPrefix...)
	key = append(key, k.collection[:]...)
	return append(key, k.tokenID[:]...)
}

// depositBook remembers who deposited each NFT the engine currently holds.
type depositBook struct {
	db      storage.Database
	sellers map[depositKey]crypto.Address
}

func loadDeposits(db storage.Database) (*depositBook, error) {
	book := &depositBook{db: db, sellers: make(map[depositKey]crypto.Address)}
	if db == nil {
		return book, nil
	}
	err := db.Iterate([]byte(depositPrefix), func(key, value []byte) error {
		raw := key[len(depositPrefix):]
		if len(raw) != crypto.AddressLength+32 {
			return fmt.Errorf("financing: malformed deposit key %x", key)
		}
		seller, err := crypto.AddressFromBytes(value)
		if err != nil {
			return err
		}
		var k depositKey
		copy(k.collection[:], raw[:crypto.AddressLength])
		copy(k.tokenID[:], raw[crypto.AddressLength:])
		book.sellers[k] = seller
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("financing: load deposits: %w", err)
	}
	return book, nil
}

func (b *depositBook) record(collection crypto.Address, tokenID *uint256.Int, seller crypto.Address) error {
	k := newDepositKey(collection, tokenID)
	if b.db != nil {
		if err := b.db.Put(k.dbKey(), seller.Bytes()); err != nil {
			return fmt.Errorf("financing: persist deposit: %w", err)
		}
	}
	b.sellers[k] = seller
	return nil
}

func (b *depositBook) seller(collection crypto.Address, tokenID *uint256.Int) (crypto.Address, bool) {
	seller, ok := b.sellers[newDepositKey(collection, tokenID)]
	return seller, ok
}

func (b *depositBook) clear(collection crypto.Address, tokenID *uint256.Int) error {
	k := newDepositKey(collection, tokenID)
	delete(b.sellers, k)
	if b.db == nil {
		return nil
	}
	return b.db.Delete(k.dbKey())
}
