package records

import (
	"nftfi/crypto"
	"nftfi/native/common"
)

var errNotStoreOwner = common.Unauthorized("records: caller is not the store owner")

// ownership is the write capability held by exactly one address.
type ownership struct {
	owner crypto.Address
}

func (o *ownership) authorize(caller crypto.Address) error {
	if caller != o.owner {
		return errNotStoreOwner
	}
	return nil
}

// Owner returns the address currently allowed to mutate the store.
func (o *ownership) Owner() crypto.Address { return o.owner }

// TransferOwnership hands the write capability to next.
func (o *ownership) TransferOwnership(caller, next crypto.Address) error {
	if err := o.authorize(caller); err != nil {
		return err
	}
	if next.IsZero() {
		return common.Validation("records: new owner must not be empty")
	}
	o.owner = next
	return nil
}
