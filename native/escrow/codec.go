package escrow

import (
	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"

	"nftfi/crypto"
	"nftfi/native/records"
)

type storedEscrow struct {
	Address    []byte
	Collection []byte
	TokenID    []byte
	Buyer      []byte
	PurchaseID uint64
	Status     uint8
	Recipient  []byte
	CreatedAt  uint64
	SettledAt  uint64
}

var escrowCodec = records.Codec[*Escrow]{
	Encode: func(e *Escrow) ([]byte, error) {
		var tokenID []byte
		if e.TokenID != nil {
			tokenID = e.TokenID.Bytes()
		}
		return rlp.EncodeToBytes(storedEscrow{
			Address:    e.Address.Bytes(),
			Collection: e.Collection.Bytes(),
			TokenID:    tokenID,
			Buyer:      e.Buyer.Bytes(),
			PurchaseID: e.PurchaseID,
			Status:     uint8(e.Status),
			Recipient:  e.Recipient.Bytes(),
			CreatedAt:  uint64(e.CreatedAt),
			SettledAt:  uint64(e.SettledAt),
		})
	},
	Decode: func(data []byte) (*Escrow, error) {
		var s storedEscrow
		if err := rlp.DecodeBytes(data, &s); err != nil {
			return nil, err
		}
		out := &Escrow{
			TokenID:    new(uint256.Int).SetBytes(s.TokenID),
			PurchaseID: s.PurchaseID,
			Status:     Status(s.Status),
			CreatedAt:  int64(s.CreatedAt),
			SettledAt:  int64(s.SettledAt),
		}
		for _, field := range []struct {
			dst *crypto.Address
			raw []byte
		}{
			{&out.Address, s.Address},
			{&out.Collection, s.Collection},
			{&out.Buyer, s.Buyer},
			{&out.Recipient, s.Recipient},
		} {
			addr, err := crypto.AddressFromBytes(field.raw)
			if err != nil {
				return nil, err
			}
			*field.dst = addr
		}
		return out, nil
	},
}
