package trust

import (
	"fmt"
	"math/big"

	"linkoftrust/crypto"
)

var (
	depositPrefix   = []byte("trust/deposit/")
	creditPrefix    = []byte("trust/credit/")
	totalDepositKey = []byte("trust/depositTotal")
)

func depositKey(key crypto.UserKey) []byte {
	buf := make([]byte, len(depositPrefix)+crypto.UserKeyLength)
	copy(buf, depositPrefix)
	copy(buf[len(depositPrefix):], key[:])
	return buf
}

func creditKey(key crypto.UserKey) []byte {
	buf := make([]byte, len(creditPrefix)+crypto.UserKeyLength)
	copy(buf, creditPrefix)
	copy(buf[len(creditPrefix):], key[:])
	return buf
}

// Ledger tracks, per user, the deposit held against their storage footprint
// plus any refund credit owed from cross-record mutations, and maintains the
// contract-wide aggregate of both incrementally.
type Ledger struct {
	state        Storage
	pricePerByte *big.Int
}

// NewLedger constructs a deposit ledger bound to the provided state backend.
// The price per byte is fixed for the lifetime of the registry.
func NewLedger(state Storage, pricePerByte *big.Int) *Ledger {
	price := new(big.Int)
	if pricePerByte != nil && pricePerByte.Sign() > 0 {
		price.Set(pricePerByte)
	}
	return &Ledger{state: state, pricePerByte: price}
}

// PricePerByte returns the configured storage price.
func (l *Ledger) PricePerByte() *big.Int {
	if l == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(l.pricePerByte)
}

// CostOf converts a byte count into its token cost.
func (l *Ledger) CostOf(byteCount uint64) *big.Int {
	if l == nil {
		return new(big.Int)
	}
	return CostOf(l.pricePerByte, byteCount)
}

// RequiredDeposit returns the deposit a record must hold for its current
// measured size.
func (l *Ledger) RequiredDeposit(record *UserRecord) *big.Int {
	return l.CostOf(Measure(record))
}

// Deposit returns the deposit currently held for key. Unknown keys hold zero.
func (l *Ledger) Deposit(key crypto.UserKey) (*big.Int, error) {
	return l.readAmount(depositKey(key))
}

// Credit returns the refund credit owed to key. Unknown keys are owed zero.
func (l *Ledger) Credit(key crypto.UserKey) (*big.Int, error) {
	return l.readAmount(creditKey(key))
}

// TotalDeposits returns the maintained aggregate of all held deposits and
// refund credits. O(1): the aggregate is adjusted on every settlement, never
// recomputed on the hot path.
func (l *Ledger) TotalDeposits() (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	return l.readAmount(totalDepositKey)
}

type settlement struct {
	required *big.Int
	current  *big.Int
	credit   *big.Int
	refund   *big.Int
}

func (l *Ledger) computeSettlement(record *UserRecord, attached *big.Int) (*settlement, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	if attached == nil {
		attached = new(big.Int)
	}
	if attached.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	required := l.RequiredDeposit(record)
	current, err := l.Deposit(record.Key)
	if err != nil {
		return nil, err
	}
	credit, err := l.Credit(record.Key)
	if err != nil {
		return nil, err
	}
	available := new(big.Int).Add(current, credit)
	available.Add(available, attached)
	if available.Cmp(required) < 0 {
		deficit := new(big.Int).Sub(required, available)
		return nil, fmt.Errorf("%w: attach at least %s more", ErrInsufficientDeposit, deficit)
	}
	return &settlement{
		required: required,
		current:  current,
		credit:   credit,
		refund:   new(big.Int).Sub(available, required),
	}, nil
}

// CheckSettle validates, without writing, that the attached payment together
// with the held deposit and refund credit covers the record's required
// deposit. Used to validate multi-record operations before any state change.
func (l *Ledger) CheckSettle(record *UserRecord, attached *big.Int) error {
	_, err := l.computeSettlement(record, attached)
	return err
}

// Settle reconciles the deposit held for the record's key against its current
// measured size, consuming any refund credit and the attached payment. It
// returns the surplus owed back to the payer. The aggregate moves by exactly
// the net amount retained.
func (l *Ledger) Settle(record *UserRecord, attached *big.Int) (*big.Int, error) {
	s, err := l.computeSettlement(record, attached)
	if err != nil {
		return nil, err
	}
	if err := l.writeAmount(depositKey(record.Key), s.required); err != nil {
		return nil, err
	}
	if s.credit.Sign() > 0 {
		if err := l.writeAmount(creditKey(record.Key), new(big.Int)); err != nil {
			return nil, err
		}
	}
	delta := new(big.Int).Sub(s.required, s.current)
	delta.Sub(delta, s.credit)
	if err := l.adjustTotal(delta); err != nil {
		return nil, err
	}
	return s.refund, nil
}

// Shrink reconciles a record mutated as a side effect of another user's
// operation. The freed deposit cannot be paid out because the owner's
// external identity is unrecoverable from the hash, so it is retained as a
// refund credit. The aggregate is unchanged: the tokens remain user-owned.
func (l *Ledger) Shrink(record *UserRecord) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	required := l.RequiredDeposit(record)
	current, err := l.Deposit(record.Key)
	if err != nil {
		return err
	}
	if required.Cmp(current) > 0 {
		return fmt.Errorf("trust: cross-record settlement cannot charge %s", record.Key)
	}
	freed := new(big.Int).Sub(current, required)
	if freed.Sign() == 0 {
		return nil
	}
	credit, err := l.Credit(record.Key)
	if err != nil {
		return err
	}
	if err := l.writeAmount(depositKey(record.Key), required); err != nil {
		return err
	}
	return l.writeAmount(creditKey(record.Key), new(big.Int).Add(credit, freed))
}

// Release removes the deposit and credit held for key and returns the total
// owed back to the user. The aggregate decreases by exactly that amount.
func (l *Ledger) Release(key crypto.UserKey) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	deposit, err := l.Deposit(key)
	if err != nil {
		return nil, err
	}
	credit, err := l.Credit(key)
	if err != nil {
		return nil, err
	}
	refund := new(big.Int).Add(deposit, credit)
	if err := l.state.KVDelete(depositKey(key)); err != nil {
		return nil, err
	}
	if err := l.state.KVDelete(creditKey(key)); err != nil {
		return nil, err
	}
	if err := l.adjustTotal(new(big.Int).Neg(refund)); err != nil {
		return nil, err
	}
	return refund, nil
}

func (l *Ledger) readAmount(key []byte) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	amount := new(big.Int)
	if _, err := l.state.KVGet(key, amount); err != nil {
		return nil, err
	}
	return amount, nil
}

func (l *Ledger) writeAmount(key []byte, amount *big.Int) error {
	if amount.Sign() == 0 {
		return l.state.KVDelete(key)
	}
	return l.state.KVPut(key, amount)
}

func (l *Ledger) adjustTotal(delta *big.Int) error {
	if delta.Sign() == 0 {
		return nil
	}
	total, err := l.readAmount(totalDepositKey)
	if err != nil {
		return err
	}
	total.Add(total, delta)
	if total.Sign() < 0 {
		return fmt.Errorf("trust: aggregate deposit underflow")
	}
	return l.writeAmount(totalDepositKey, total)
}
