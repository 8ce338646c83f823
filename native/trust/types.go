package trust

import (
	"linkoftrust/crypto"
)

// TrustEdge is a graded trust declaration toward another user. A record holds
// at most one edge per distinct target.
type TrustEdge struct {
	Target crypto.UserKey
	Level  float32
}

// UserRecord is the persisted state of a single user, keyed by the hash of
// their external identifier. The held deposit is tracked separately by the
// ledger and always reconciles to the record's measured size.
type UserRecord struct {
	Key           crypto.UserKey
	PublicProfile string
	Trusts        []TrustEdge
	Blocks        []crypto.UserKey
}

// NewUserRecord returns an empty record for the supplied key.
func NewUserRecord(key crypto.UserKey) *UserRecord {
	return &UserRecord{Key: key}
}

// Clone returns a deep copy to avoid callers mutating shared slices.
func (r *UserRecord) Clone() *UserRecord {
	if r == nil {
		return nil
	}
	clone := &UserRecord{Key: r.Key, PublicProfile: r.PublicProfile}
	if len(r.Trusts) > 0 {
		clone.Trusts = append([]TrustEdge(nil), r.Trusts...)
	}
	if len(r.Blocks) > 0 {
		clone.Blocks = append([]crypto.UserKey(nil), r.Blocks...)
	}
	return clone
}

// IsDefault reports whether the record carries no state. A record that would
// be created default is never persisted; an existing record that becomes
// default stays stored until its owner deletes it.
func (r *UserRecord) IsDefault() bool {
	if r == nil {
		return true
	}
	return r.PublicProfile == "" && len(r.Trusts) == 0 && len(r.Blocks) == 0
}

// TrustLevel returns the trust level declared toward target, if any.
func (r *UserRecord) TrustLevel(target crypto.UserKey) (float32, bool) {
	if r == nil {
		return 0, false
	}
	for _, edge := range r.Trusts {
		if edge.Target.Equal(target) {
			return edge.Level, true
		}
	}
	return 0, false
}

// SetTrust upserts the trust edge toward target.
func (r *UserRecord) SetTrust(target crypto.UserKey, level float32) {
	for i := range r.Trusts {
		if r.Trusts[i].Target.Equal(target) {
			r.Trusts[i].Level = level
			return
		}
	}
	r.Trusts = append(r.Trusts, TrustEdge{Target: target, Level: level})
}

// RemoveTrust drops the trust edge toward target, reporting whether an edge
// was present.
func (r *UserRecord) RemoveTrust(target crypto.UserKey) bool {
	for i := range r.Trusts {
		if r.Trusts[i].Target.Equal(target) {
			r.Trusts = append(r.Trusts[:i], r.Trusts[i+1:]...)
			return true
		}
	}
	return false
}

// IsBlocking reports whether target is in the record's block set.
func (r *UserRecord) IsBlocking(target crypto.UserKey) bool {
	if r == nil {
		return false
	}
	for _, blocked := range r.Blocks {
		if blocked.Equal(target) {
			return true
		}
	}
	return false
}

// AddBlock inserts target into the block set, reporting whether the set
// changed.
func (r *UserRecord) AddBlock(target crypto.UserKey) bool {
	if r.IsBlocking(target) {
		return false
	}
	r.Blocks = append(r.Blocks, target)
	return true
}

// RemoveBlock drops target from the block set, reporting whether an entry was
// present.
func (r *UserRecord) RemoveBlock(target crypto.UserKey) bool {
	for i := range r.Blocks {
		if r.Blocks[i].Equal(target) {
			r.Blocks = append(r.Blocks[:i], r.Blocks[i+1:]...)
			return true
		}
	}
	return false
}
