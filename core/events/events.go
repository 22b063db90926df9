package events

import (
	"math/big"

	"swapclear/native/salts"
	"swapclear/native/settlement"
)

// Event is a structured state change emitted by the ledger.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (relayers, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies Emitter while discarding all events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

const (
	// TypeSaltRotated marks a salt rotation: the old current salt was demoted
	// but stays valid.
	TypeSaltRotated = "salts.rotated"
	// TypeSaltInvalidated marks a salt revocation.
	TypeSaltInvalidated = "salts.invalidated"
	// TypeFeeChanged marks an update to the fee configuration.
	TypeFeeChanged = "fees.changed"
	// TypeBatchSettled marks a committed settlement batch.
	TypeBatchSettled = "settlement.batch"
)

// SaltRotated records a rotation outcome.
type SaltRotated struct {
	Current  salts.Salt
	Previous salts.Salt
}

// EventType satisfies the Event interface.
func (SaltRotated) EventType() string { return TypeSaltRotated }

// SaltInvalidated records a revoked salt and the salt current afterwards.
type SaltInvalidated struct {
	Salt    salts.Salt
	Current salts.Salt
}

// EventType satisfies the Event interface.
func (SaltInvalidated) EventType() string { return TypeSaltInvalidated }

// FeeChanged records the new fee configuration.
type FeeChanged struct {
	Fee          settlement.Pips
	FeeCollector string
}

// EventType satisfies the Event interface.
func (FeeChanged) EventType() string { return TypeFeeChanged }

// BatchSettled records a committed batch and the fees it left behind.
type BatchSettled struct {
	BatchID       string
	Intents       int
	FeesCollected map[string]*big.Int
}

// EventType satisfies the Event interface.
func (BatchSettled) EventType() string { return TypeBatchSettled }
