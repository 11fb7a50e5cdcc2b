package escrow

import (
	"fmt"
	"strconv"
	"time"

	"github.com/holiman/uint256"

	"nftfi/core/events"
	"nftfi/crypto"
	"nftfi/native/common"
	"nftfi/native/records"
	"nftfi/native/token"
)

const escrowPrefix = "escrow/entries/"

var (
	errNilNFTs          = common.Validation("escrow vault: nft collaborator not configured")
	errNotVaultOwner    = common.Unauthorized("escrow vault: caller is not the vault owner")
	errEscrowNotFound   = common.NotFound("escrow vault: escrow not found")
	errEscrowExists     = common.State("escrow vault: escrow already exists")
	errEscrowNotHeld    = common.State("escrow vault: escrow is not holding the nft")
	errMissingRecipient = common.Validation("escrow vault: recipient required")
	errMissingToken     = common.Validation("escrow vault: token id required")
)

// DeriveAddress returns the deterministic escrow address for a purchase made
// through owner.
func DeriveAddress(owner crypto.Address, purchaseID uint64) crypto.Address {
	return crypto.DeriveAddress([]byte("escrow"), owner.Bytes(), []byte(strconv.FormatUint(purchaseID, 10)))
}

// Vault keeps every escrow created by its owner. Only the owner may create or
// settle escrows; each escrow moves its NFT out exactly once.
type Vault struct {
	owner   crypto.Address
	space   *records.Space
	table   *records.Table[*Escrow]
	index   map[crypto.Address]uint64
	nfts    token.NonFungible
	emitter events.Emitter
	nowFn   func() int64
}

// NewVault opens the vault on space, restoring persisted escrows.
func NewVault(space *records.Space, owner crypto.Address, nfts token.NonFungible) (*Vault, error) {
	v := &Vault{
		owner:   owner,
		space:   space,
		table:   records.NewTable(space, escrowPrefix, escrowCodec),
		index:   make(map[crypto.Address]uint64),
		nfts:    nfts,
		emitter: events.NoopEmitter{},
		nowFn:   func() int64 { return time.Now().Unix() },
	}
	if err := v.table.Load(); err != nil {
		return nil, fmt.Errorf("open escrow vault: %w", err)
	}
	for _, esc := range v.table.Filter(nil) {
		v.index[esc.Address] = esc.Seq
	}
	return v, nil
}

// SetNowFunc overrides the time source used by the vault.
func (v *Vault) SetNowFunc(now func() int64) {
	if now == nil {
		v.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	v.nowFn = now
}

// SetEmitter configures the event emitter used by the vault. Passing nil resets
// the emitter to a no-op implementation.
func (v *Vault) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		v.emitter = events.NoopEmitter{}
		return
	}
	v.emitter = emitter
}

func (v *Vault) Owner() crypto.Address { return v.owner }

// TransferOwnership hands the vault to next.
func (v *Vault) TransferOwnership(caller, next crypto.Address) error {
	if caller != v.owner {
		return errNotVaultOwner
	}
	if next.IsZero() {
		return errMissingRecipient
	}
	v.owner = next
	return nil
}

func (v *Vault) lookup(addr crypto.Address) (*Escrow, bool) {
	seq, ok := v.index[addr]
	if !ok {
		return nil, false
	}
	esc, ok := v.table.Get(seq)
	if !ok || esc.Address != addr {
		return nil, false
	}
	return esc, true
}

// Escrow returns a copy of the escrow stored at addr.
func (v *Vault) Escrow(addr crypto.Address) (*Escrow, error) {
	esc, ok := v.lookup(addr)
	if !ok {
		return nil, errEscrowNotFound
	}
	return esc, nil
}

// Create registers a Held escrow for the purchase. The caller is expected to
// move the NFT to the returned address afterwards.
func (v *Vault) Create(caller crypto.Address, purchaseID uint64, buyer, collection crypto.Address, tokenID *uint256.Int) (*Escrow, error) {
	if caller != v.owner {
		return nil, errNotVaultOwner
	}
	if tokenID == nil {
		return nil, errMissingToken
	}
	addr := DeriveAddress(v.owner, purchaseID)
	if _, exists := v.lookup(addr); exists {
		return nil, errEscrowExists
	}
	esc := &Escrow{
		Address:    addr,
		Collection: collection,
		TokenID:    tokenID.Clone(),
		Buyer:      buyer,
		PurchaseID: purchaseID,
		Status:     StatusHeld,
		CreatedAt:  v.nowFn(),
	}
	seq, err := v.table.Insert(esc)
	if err != nil {
		return nil, err
	}
	esc.Seq = seq
	v.index[addr] = seq
	v.emitter.Emit(NewCreatedEvent(esc))
	return esc.Clone(), nil
}

// Release sends the NFT back to recipient (the buyer) after full repayment.
func (v *Vault) Release(caller, addr, recipient crypto.Address) error {
	return v.settle(caller, addr, recipient, StatusReleased)
}

// Reclaim sends the NFT to recipient (the liquidator) after a default.
func (v *Vault) Reclaim(caller, addr, recipient crypto.Address) error {
	return v.settle(caller, addr, recipient, StatusReclaimed)
}

func (v *Vault) settle(caller, addr, recipient crypto.Address, next Status) error {
	if caller != v.owner {
		return errNotVaultOwner
	}
	if v.nfts == nil {
		return errNilNFTs
	}
	if recipient.IsZero() {
		return errMissingRecipient
	}
	esc, ok := v.lookup(addr)
	if !ok {
		return errEscrowNotFound
	}
	if esc.Status != StatusHeld {
		return errEscrowNotHeld
	}

	snap := v.space.Snapshot()
	esc.Status = next
	esc.Recipient = recipient
	esc.SettledAt = v.nowFn()
	if err := v.table.Update(esc.Seq, esc); err != nil {
		_ = v.space.RevertToSnapshot(snap)
		return err
	}
	if err := v.nfts.SafeTransferFrom(addr, esc.Collection, addr, recipient, esc.TokenID); err != nil {
		if revertErr := v.space.RevertToSnapshot(snap); revertErr != nil {
			return fmt.Errorf("escrow vault: transfer nft: %w (revert: %v)", err, revertErr)
		}
		return fmt.Errorf("escrow vault: transfer nft: %w", err)
	}
	if err := v.space.Commit(snap); err != nil {
		return err
	}
	if next == StatusReleased {
		v.emitter.Emit(NewReleasedEvent(esc))
	} else {
		v.emitter.Emit(NewReclaimedEvent(esc))
	}
	return nil
}
