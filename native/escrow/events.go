package escrow

import "nftfi/core/events"

func newTransition(kind string, e *Escrow) events.EscrowTransition {
	return events.EscrowTransition{
		Kind:       kind,
		Escrow:     e.Address,
		PurchaseID: e.PurchaseID,
		Collection: e.Collection,
		TokenID:    e.TokenID,
		Recipient:  e.Recipient,
	}
}

// NewCreatedEvent returns the canonical event payload for a newly created
// escrow.
func NewCreatedEvent(e *Escrow) events.EscrowTransition {
	return newTransition(events.TypeEscrowCreated, e)
}

// NewReleasedEvent is emitted when the NFT goes back to the buyer.
func NewReleasedEvent(e *Escrow) events.EscrowTransition {
	return newTransition(events.TypeEscrowReleased, e)
}

// NewReclaimedEvent is emitted when the NFT is handed to a liquidator.
func NewReclaimedEvent(e *Escrow) events.EscrowTransition {
	return newTransition(events.TypeEscrowReclaimed, e)
}
