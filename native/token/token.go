package token

import (
	"math/big"

	"github.com/holiman/uint256"

	"nftfi/crypto"
)

// Fungible is the settlement token collaborator. Every method that acts on
// behalf of someone takes that identity explicitly.
type Fungible interface {
	// Transfer moves amount out of from's own balance.
	Transfer(from, to crypto.Address, amount *big.Int) error
	// TransferFrom moves amount from from to to using spender's allowance.
	TransferFrom(spender, from, to crypto.Address, amount *big.Int) error
	Approve(owner, spender crypto.Address, amount *big.Int) error
	Allowance(owner, spender crypto.Address) *big.Int
	BalanceOf(addr crypto.Address) *big.Int
}

// NonFungible is the NFT collaborator. Collections are addressed explicitly
// so a single implementation can serve many contracts.
type NonFungible interface {
	OwnerOf(collection crypto.Address, tokenID *uint256.Int) (crypto.Address, error)
	SafeTransferFrom(operator, collection, from, to crypto.Address, tokenID *uint256.Int) error
}

// Receiver is notified after an NFT lands on its address through
// SafeTransferFrom. Returning an error rejects the transfer.
type Receiver interface {
	OnNFTReceived(operator, from, collection crypto.Address, tokenID *uint256.Int) error
}
