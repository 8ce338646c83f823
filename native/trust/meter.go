package trust

import (
	"math/big"

	"linkoftrust/crypto"
)

// Storage footprint constants. A trust edge persists the target key plus a
// 4-byte level; a block entry persists the target key alone. The base
// overhead covers the record envelope and its store index entry.
const (
	recordBaseOverhead = 256
	trustLevelSize     = 4
	trustEdgeSize      = crypto.UserKeyLength + trustLevelSize
	blockEntrySize     = crypto.UserKeyLength
)

// Measure returns the byte footprint of a record's persisted representation.
// It is a pure function of record content and never fails.
func Measure(record *UserRecord) uint64 {
	if record == nil {
		return 0
	}
	total := uint64(crypto.UserKeyLength)
	total += uint64(len(record.PublicProfile))
	total += uint64(len(record.Trusts)) * trustEdgeSize
	total += uint64(len(record.Blocks)) * blockEntrySize
	return total + recordBaseOverhead
}

// CostOf converts a byte count into a token cost at the supplied price per
// byte.
func CostOf(pricePerByte *big.Int, byteCount uint64) *big.Int {
	if pricePerByte == nil {
		return new(big.Int)
	}
	return new(big.Int).Mul(pricePerByte, new(big.Int).SetUint64(byteCount))
}
