package token

import (
	"errors"
	"fmt"
	"sync"

	"github.com/holiman/uint256"

	"nftfi/crypto"
)

var (
	ErrUnknownToken    = errors.New("token: nonexistent token")
	ErrTokenExists     = errors.New("token: token already minted")
	ErrNotTokenOwner   = errors.New("token: from is not the owner")
	ErrNotApproved     = errors.New("token: operator not approved")
	ErrReceiverRejects = errors.New("token: receiver rejected transfer")
)

type tokenKey struct {
	collection crypto.Address
	id         uint256.Int
}

// Collection is an in-memory NFT registry spanning any number of collection
// addresses. Receivers registered for an address get the safe-transfer
// callback.
type Collection struct {
	mu        sync.Mutex
	owners    map[tokenKey]crypto.Address
	operators map[crypto.Address]map[crypto.Address]bool
	receivers map[crypto.Address]Receiver
}

func NewCollection() *Collection {
	return &Collection{
		owners:    make(map[tokenKey]crypto.Address),
		operators: make(map[crypto.Address]map[crypto.Address]bool),
		receivers: make(map[crypto.Address]Receiver),
	}
}

func keyOf(collection crypto.Address, tokenID *uint256.Int) tokenKey {
	return tokenKey{collection: collection, id: *tokenID}
}

// RegisterReceiver installs the safe-transfer hook for addr.
func (c *Collection) RegisterReceiver(addr crypto.Address, receiver Receiver) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if receiver == nil {
		delete(c.receivers, addr)
		return
	}
	c.receivers[addr] = receiver
}

func (c *Collection) Mint(collection, to crypto.Address, tokenID *uint256.Int) error {
	if tokenID == nil {
		return ErrUnknownToken
	}
	if to.IsZero() {
		return ErrZeroRecipient
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	key := keyOf(collection, tokenID)
	if _, ok := c.owners[key]; ok {
		return ErrTokenExists
	}
	c.owners[key] = to
	return nil
}

func (c *Collection) SetApprovalForAll(owner, operator crypto.Address, approved bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.operators[owner] == nil {
		c.operators[owner] = make(map[crypto.Address]bool)
	}
	c.operators[owner][operator] = approved
}

func (c *Collection) OwnerOf(collection crypto.Address, tokenID *uint256.Int) (crypto.Address, error) {
	if tokenID == nil {
		return crypto.Address{}, ErrUnknownToken
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	owner, ok := c.owners[keyOf(collection, tokenID)]
	if !ok {
		return crypto.Address{}, ErrUnknownToken
	}
	return owner, nil
}

// SafeTransferFrom moves the token and then invokes the recipient's hook
// without holding the lock. A rejecting hook rolls the move back.
func (c *Collection) SafeTransferFrom(operator, collection, from, to crypto.Address, tokenID *uint256.Int) error {
	if tokenID == nil {
		return ErrUnknownToken
	}
	if to.IsZero() {
		return ErrZeroRecipient
	}
	key := keyOf(collection, tokenID)

	c.mu.Lock()
	owner, ok := c.owners[key]
	switch {
	case !ok:
		c.mu.Unlock()
		return ErrUnknownToken
	case owner != from:
		c.mu.Unlock()
		return ErrNotTokenOwner
	case operator != from && !c.operators[from][operator]:
		c.mu.Unlock()
		return ErrNotApproved
	}
	c.owners[key] = to
	receiver := c.receivers[to]
	c.mu.Unlock()

	if receiver == nil {
		return nil
	}
	if err := receiver.OnNFTReceived(operator, from, collection, tokenID); err != nil {
		c.mu.Lock()
		if c.owners[key] == to {
			c.owners[key] = from
		}
		c.mu.Unlock()
		return fmt.Errorf("%w: %w", ErrReceiverRejects, err)
	}
	return nil
}
