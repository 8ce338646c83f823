package trust

import (
	"fmt"
	"math"

	"linkoftrust/crypto"
)

// Storage abstracts the subset of state manager functionality required by the
// registry.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
	KVDelete(key []byte) error
	KVAppend(key []byte, value []byte) error
	KVRemove(key []byte, value []byte) error
	KVGetList(key []byte, out interface{}) error
}

var (
	recordPrefix   = []byte("trust/record/")
	recordIndexKey = []byte("trust/recordIndex")
)

func recordKey(key crypto.UserKey) []byte {
	buf := make([]byte, len(recordPrefix)+crypto.UserKeyLength)
	copy(buf, recordPrefix)
	copy(buf[len(recordPrefix):], key[:])
	return buf
}

// Stored representation. Levels are persisted as IEEE 754 bit patterns since
// the codec has no native float support; the round trip is exact.
type storedTrustEdge struct {
	Target    []byte
	LevelBits uint32
}

type storedUserRecord struct {
	Key           []byte
	PublicProfile string
	Trusts        []storedTrustEdge
	Blocks        [][]byte
}

func toStoredRecord(record *UserRecord) *storedUserRecord {
	stored := &storedUserRecord{
		Key:           record.Key.Bytes(),
		PublicProfile: record.PublicProfile,
	}
	for _, edge := range record.Trusts {
		stored.Trusts = append(stored.Trusts, storedTrustEdge{
			Target:    edge.Target.Bytes(),
			LevelBits: math.Float32bits(edge.Level),
		})
	}
	for _, blocked := range record.Blocks {
		stored.Blocks = append(stored.Blocks, blocked.Bytes())
	}
	return stored
}

func fromStoredRecord(stored *storedUserRecord) (*UserRecord, error) {
	if stored == nil {
		return nil, fmt.Errorf("trust: nil stored record")
	}
	key, err := userKeyFromBytes(stored.Key)
	if err != nil {
		return nil, err
	}
	record := NewUserRecord(key)
	record.PublicProfile = stored.PublicProfile
	for _, edge := range stored.Trusts {
		target, err := userKeyFromBytes(edge.Target)
		if err != nil {
			return nil, err
		}
		record.Trusts = append(record.Trusts, TrustEdge{
			Target: target,
			Level:  math.Float32frombits(edge.LevelBits),
		})
	}
	for _, blocked := range stored.Blocks {
		target, err := userKeyFromBytes(blocked)
		if err != nil {
			return nil, err
		}
		record.Blocks = append(record.Blocks, target)
	}
	return record, nil
}

func userKeyFromBytes(raw []byte) (crypto.UserKey, error) {
	var key crypto.UserKey
	if len(raw) != crypto.UserKeyLength {
		return key, fmt.Errorf("trust: corrupt user key of %d bytes", len(raw))
	}
	copy(key[:], raw)
	return key, nil
}

// Store persists user records in the underlying key-value state and maintains
// an index of existing keys for enumeration.
type Store struct {
	state Storage
}

// NewStore constructs a record store bound to the provided state backend.
func NewStore(state Storage) *Store {
	return &Store{state: state}
}

// Get retrieves the record stored under key.
func (s *Store) Get(key crypto.UserKey) (*UserRecord, bool, error) {
	if s == nil || s.state == nil {
		return nil, false, errNilState
	}
	var stored storedUserRecord
	ok, err := s.state.KVGet(recordKey(key), &stored)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	record, err := fromStoredRecord(&stored)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// GetOrCreate returns the record stored under key, or a fresh default record
// when none exists. The fresh record is not persisted; creation becomes
// visible only when the mutating operation commits it via Put.
func (s *Store) GetOrCreate(key crypto.UserKey) (*UserRecord, error) {
	record, ok, err := s.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return NewUserRecord(key), nil
	}
	return record, nil
}

// Put persists the record and registers its key in the enumeration index.
func (s *Store) Put(record *UserRecord) error {
	if s == nil || s.state == nil {
		return errNilState
	}
	if record == nil {
		return fmt.Errorf("trust: nil record")
	}
	if record.Key.IsZero() {
		return fmt.Errorf("trust: record key required")
	}
	if err := s.state.KVPut(recordKey(record.Key), toStoredRecord(record)); err != nil {
		return err
	}
	return s.state.KVAppend(recordIndexKey, record.Key.Bytes())
}

// Remove deletes the record and its index entry. Removing an absent record is
// not an error.
func (s *Store) Remove(key crypto.UserKey) error {
	if s == nil || s.state == nil {
		return errNilState
	}
	if err := s.state.KVDelete(recordKey(key)); err != nil {
		return err
	}
	return s.state.KVRemove(recordIndexKey, key.Bytes())
}

// Keys enumerates the keys of all existing records.
func (s *Store) Keys() ([]crypto.UserKey, error) {
	if s == nil || s.state == nil {
		return nil, errNilState
	}
	var raw [][]byte
	if err := s.state.KVGetList(recordIndexKey, &raw); err != nil {
		return nil, err
	}
	keys := make([]crypto.UserKey, 0, len(raw))
	for _, entry := range raw {
		key, err := userKeyFromBytes(entry)
		if err != nil {
			return nil, err
		}
		keys = append(keys, key)
	}
	return keys, nil
}
