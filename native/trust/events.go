package trust

import (
	"math/big"
	"strconv"

	"linkoftrust/core/types"
	"linkoftrust/crypto"
)

const (
	EventTypeProfileUpdated  = "trust.profile_updated"
	EventTypeTrustUpdated    = "trust.updated"
	EventTypeTrustRemoved    = "trust.removed"
	EventTypeUserBlocked     = "trust.blocked"
	EventTypeUserUnblocked   = "trust.unblocked"
	EventTypeUserDeleted     = "trust.user_deleted"
	EventTypeProfitExtracted = "trust.profit_extracted"
)

// NewProfileUpdatedEvent returns the canonical payload emitted when a user
// replaces their public profile.
func NewProfileUpdatedEvent(user crypto.UserKey, size uint64) *types.Event {
	return &types.Event{Type: EventTypeProfileUpdated, Attributes: map[string]string{
		"user": user.String(),
		"size": strconv.FormatUint(size, 10),
	}}
}

// NewTrustUpdatedEvent returns the canonical payload emitted when a trust edge
// is created or re-graded.
func NewTrustUpdatedEvent(user, target crypto.UserKey, level float32) *types.Event {
	return &types.Event{Type: EventTypeTrustUpdated, Attributes: map[string]string{
		"user":   user.String(),
		"target": target.String(),
		"level":  strconv.FormatFloat(float64(level), 'f', -1, 32),
	}}
}

// NewTrustRemovedEvent returns the canonical payload emitted when a trust edge
// is removed.
func NewTrustRemovedEvent(user, target crypto.UserKey) *types.Event {
	return &types.Event{Type: EventTypeTrustRemoved, Attributes: map[string]string{
		"user":   user.String(),
		"target": target.String(),
	}}
}

// NewUserBlockedEvent returns the canonical payload emitted when a user blocks
// another. revoked reports whether an incoming trust edge was removed as part
// of the block.
func NewUserBlockedEvent(user, target crypto.UserKey, revoked bool) *types.Event {
	return &types.Event{Type: EventTypeUserBlocked, Attributes: map[string]string{
		"user":         user.String(),
		"target":       target.String(),
		"trustRevoked": strconv.FormatBool(revoked),
	}}
}

// NewUserUnblockedEvent returns the canonical payload emitted when a block is
// lifted.
func NewUserUnblockedEvent(user, target crypto.UserKey) *types.Event {
	return &types.Event{Type: EventTypeUserUnblocked, Attributes: map[string]string{
		"user":   user.String(),
		"target": target.String(),
	}}
}

// NewUserDeletedEvent returns the canonical payload emitted when a record is
// deleted and its deposit refunded.
func NewUserDeletedEvent(user crypto.UserKey, refund *big.Int) *types.Event {
	return &types.Event{Type: EventTypeUserDeleted, Attributes: map[string]string{
		"user":   user.String(),
		"refund": formatAmount(refund),
	}}
}

// NewProfitExtractedEvent returns the canonical payload emitted when the
// operator withdraws surplus balance.
func NewProfitExtractedEvent(to string, amount *big.Int) *types.Event {
	return &types.Event{Type: EventTypeProfitExtracted, Attributes: map[string]string{
		"to":     to,
		"amount": formatAmount(amount),
	}}
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
