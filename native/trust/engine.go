package trust

import (
	"fmt"
	"math"
	"math/big"

	"linkoftrust/core/events"
	"linkoftrust/core/types"
	"linkoftrust/crypto"
)

// Environment abstracts the host-managed account and payment primitives: the
// caller's identity, the payment attached to the current call, the registry's
// own balance and outbound transfers. Implementations are injected per call,
// which keeps the engine free of host assumptions and deterministic to test.
type Environment interface {
	// Caller returns the external account identifier the call originates from.
	Caller() string
	// AttachedPayment returns the token amount attached to the current call.
	AttachedPayment() *big.Int
	// Balance returns the registry's current token balance.
	Balance() (*big.Int, error)
	// Transfer sends tokens from the registry balance to an external account.
	Transfer(to string, amount *big.Int) error
}

type trustEvent struct {
	evt *types.Event
}

func (e trustEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e trustEvent) Event() *types.Event { return e.evt }

// Engine implements the public registry operations as atomic record
// transformations that settle storage deposits through the ledger. Every
// operation either commits fully or leaves no state change: all validation,
// including deposit sufficiency, happens before the first write.
type Engine struct {
	store    *Store
	ledger   *Ledger
	emitter  events.Emitter
	operator string
}

// NewEngine constructs an engine backed by the provided state backend with
// the given fixed price per stored byte.
func NewEngine(state Storage, pricePerByte *big.Int) *Engine {
	return &Engine{
		store:   NewStore(state),
		ledger:  NewLedger(state, pricePerByte),
		emitter: events.NoopEmitter{},
	}
}

// SetEmitter configures the event emitter used by the engine. Passing nil
// resets the emitter to a no-op implementation.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetOperator configures the external account permitted to extract surplus.
func (e *Engine) SetOperator(account string) { e.operator = account }

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(trustEvent{evt: event})
}

func (e *Engine) ready(env Environment) error {
	if e == nil || e.store == nil || e.ledger == nil {
		return errNilState
	}
	if env == nil {
		return errNilEnvironment
	}
	return nil
}

func attachedPayment(env Environment) (*big.Int, error) {
	attached := env.AttachedPayment()
	if attached == nil {
		return new(big.Int), nil
	}
	if attached.Sign() < 0 {
		return nil, ErrInvalidAmount
	}
	return new(big.Int).Set(attached), nil
}

func refundTo(env Environment, to string, amount *big.Int) error {
	if amount == nil || amount.Sign() == 0 {
		return nil
	}
	return env.Transfer(to, amount)
}

// settleOwn reconciles the caller's own record after a staged mutation and
// refunds any unspent payment. A record that would be created empty is not
// persisted: creation happens only when a mutation produces non-default
// state. Reports whether the record was persisted.
func (e *Engine) settleOwn(env Environment, record *UserRecord, existed bool) (bool, error) {
	attached, err := attachedPayment(env)
	if err != nil {
		return false, err
	}
	if record.IsDefault() && !existed {
		return false, refundTo(env, env.Caller(), attached)
	}
	refund, err := e.ledger.Settle(record, attached)
	if err != nil {
		return false, err
	}
	if err := e.store.Put(record); err != nil {
		return false, err
	}
	return true, refundTo(env, env.Caller(), refund)
}

// ModifyPublicProfile replaces the caller's profile string, creating the
// record on first write.
func (e *Engine) ModifyPublicProfile(env Environment, profile string) error {
	if err := e.ready(env); err != nil {
		return err
	}
	caller := crypto.HashIdentity(env.Caller())
	record, existed, err := e.store.Get(caller)
	if err != nil {
		return err
	}
	if !existed {
		record = NewUserRecord(caller)
	}
	record.PublicProfile = profile
	persisted, err := e.settleOwn(env, record, existed)
	if err != nil {
		return err
	}
	if persisted {
		e.emit(NewProfileUpdatedEvent(caller, Measure(record)))
	}
	return nil
}

// Trust upserts a graded trust edge from the caller toward target. A level of
// zero removes the edge instead of storing it. Fails with ErrBlocked when the
// target has blocked the caller.
func (e *Engine) Trust(env Environment, target crypto.UserKey, level float32) error {
	if err := e.ready(env); err != nil {
		return err
	}
	if math.IsNaN(float64(level)) || level < 0 || level > 1 {
		return fmt.Errorf("%w: %v", ErrInvalidLevel, level)
	}
	if target.IsZero() {
		return fmt.Errorf("trust: target required")
	}
	caller := crypto.HashIdentity(env.Caller())
	targetRecord, targetExists, err := e.store.Get(target)
	if err != nil {
		return err
	}
	if targetExists && targetRecord.IsBlocking(caller) {
		return ErrBlocked
	}
	record, existed, err := e.store.Get(caller)
	if err != nil {
		return err
	}
	if !existed {
		record = NewUserRecord(caller)
	}
	removed := false
	if level == 0 {
		removed = record.RemoveTrust(target)
	} else {
		record.SetTrust(target, level)
	}
	if _, err := e.settleOwn(env, record, existed); err != nil {
		return err
	}
	if level == 0 {
		if removed {
			e.emit(NewTrustRemovedEvent(caller, target))
		}
		return nil
	}
	e.emit(NewTrustUpdatedEvent(caller, target, level))
	return nil
}

// Untrust removes the caller's trust edge toward target. Removing an absent
// edge succeeds as a no-op; the attached payment is refunded in full.
func (e *Engine) Untrust(env Environment, target crypto.UserKey) error {
	if err := e.ready(env); err != nil {
		return err
	}
	caller := crypto.HashIdentity(env.Caller())
	record, existed, err := e.store.Get(caller)
	if err != nil {
		return err
	}
	if !existed {
		record = NewUserRecord(caller)
	}
	removed := record.RemoveTrust(target)
	if _, err := e.settleOwn(env, record, existed); err != nil {
		return err
	}
	if removed {
		e.emit(NewTrustRemovedEvent(caller, target))
	}
	return nil
}

// BlockUser adds target to the caller's block set and, in the same staged
// transaction, removes any trust edge target holds toward the caller. Both
// records are re-measured and re-settled; the deposit freed on the target's
// side is retained as their refund credit. No state is written until the
// caller's settlement is known to succeed.
func (e *Engine) BlockUser(env Environment, target crypto.UserKey) error {
	if err := e.ready(env); err != nil {
		return err
	}
	if target.IsZero() {
		return fmt.Errorf("trust: target required")
	}
	caller := crypto.HashIdentity(env.Caller())
	record, existed, err := e.store.Get(caller)
	if err != nil {
		return err
	}
	if !existed {
		record = NewUserRecord(caller)
	}
	record.AddBlock(target)

	// Blocking yourself mutates a single record: the block entry and the
	// revoked self edge must land in the same staged copy, or the second
	// write would clobber the first.
	if target.Equal(caller) {
		revoked := record.RemoveTrust(caller)
		if _, err := e.settleOwn(env, record, existed); err != nil {
			return err
		}
		e.emit(NewUserBlockedEvent(caller, target, revoked))
		return nil
	}

	targetRecord, targetExists, err := e.store.Get(target)
	if err != nil {
		return err
	}
	revoked := false
	if targetExists {
		revoked = targetRecord.RemoveTrust(caller)
	}

	attached, err := attachedPayment(env)
	if err != nil {
		return err
	}
	if err := e.ledger.CheckSettle(record, attached); err != nil {
		return err
	}

	if revoked {
		if err := e.ledger.Shrink(targetRecord); err != nil {
			return err
		}
		if err := e.store.Put(targetRecord); err != nil {
			return err
		}
	}
	if _, err := e.settleOwn(env, record, existed); err != nil {
		return err
	}
	e.emit(NewUserBlockedEvent(caller, target, revoked))
	return nil
}

// UnblockUser removes target from the caller's block set. Unblocking an
// absent entry succeeds as a no-op.
func (e *Engine) UnblockUser(env Environment, target crypto.UserKey) error {
	if err := e.ready(env); err != nil {
		return err
	}
	caller := crypto.HashIdentity(env.Caller())
	record, existed, err := e.store.Get(caller)
	if err != nil {
		return err
	}
	if !existed {
		record = NewUserRecord(caller)
	}
	removed := record.RemoveBlock(target)
	if _, err := e.settleOwn(env, record, existed); err != nil {
		return err
	}
	if removed {
		e.emit(NewUserUnblockedEvent(caller, target))
	}
	return nil
}

// DeleteUser removes the caller's record entirely and refunds the full held
// deposit plus any refund credit. Deleting an absent record succeeds as a
// no-op.
func (e *Engine) DeleteUser(env Environment) error {
	if err := e.ready(env); err != nil {
		return err
	}
	caller := crypto.HashIdentity(env.Caller())
	attached, err := attachedPayment(env)
	if err != nil {
		return err
	}
	_, existed, err := e.store.Get(caller)
	if err != nil {
		return err
	}
	if !existed {
		return refundTo(env, env.Caller(), attached)
	}
	deposit, err := e.ledger.Deposit(caller)
	if err != nil {
		return err
	}
	credit, err := e.ledger.Credit(caller)
	if err != nil {
		return err
	}
	owed := new(big.Int).Add(deposit, credit)
	owed.Add(owed, attached)
	// Validate the payout before releasing anything, so a refused transfer
	// cannot strand a half-deleted record.
	balance, err := env.Balance()
	if err != nil {
		return err
	}
	if balance.Cmp(owed) < 0 {
		return fmt.Errorf("trust: registry balance %s cannot cover refund %s", balance, owed)
	}
	refund, err := e.ledger.Release(caller)
	if err != nil {
		return err
	}
	if err := e.store.Remove(caller); err != nil {
		return err
	}
	if err := refundTo(env, env.Caller(), new(big.Int).Add(refund, attached)); err != nil {
		return err
	}
	e.emit(NewUserDeletedEvent(caller, refund))
	return nil
}

// TotalUsersDeposit returns the maintained aggregate of user-owned funds:
// held deposits plus refund credits. External auditors read this before
// trusting ExtractProfit.
func (e *Engine) TotalUsersDeposit() (*big.Int, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilState
	}
	return e.ledger.TotalDeposits()
}

// ExtractProfit transfers surplus balance to the destination account. Only
// the operator may call it, and the post-withdrawal balance must still cover
// the aggregate of all user deposits.
func (e *Engine) ExtractProfit(env Environment, to string, amount *big.Int) error {
	if err := e.ready(env); err != nil {
		return err
	}
	if e.operator == "" || env.Caller() != e.operator {
		return ErrUnauthorized
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrInvalidAmount
	}
	balance, err := env.Balance()
	if err != nil {
		return err
	}
	total, err := e.ledger.TotalDeposits()
	if err != nil {
		return err
	}
	if new(big.Int).Sub(balance, amount).Cmp(total) < 0 {
		return fmt.Errorf("%w: balance %s, tracked deposits %s, requested %s",
			ErrWouldBreachSolvency, balance, total, amount)
	}
	if err := env.Transfer(to, amount); err != nil {
		return err
	}
	e.emit(NewProfitExtractedEvent(to, amount))
	return nil
}

// UserData returns the record stored for key.
func (e *Engine) UserData(key crypto.UserKey) (*UserRecord, bool, error) {
	if e == nil || e.store == nil {
		return nil, false, errNilState
	}
	return e.store.Get(key)
}

// UserDeposit returns the deposit held for key.
func (e *Engine) UserDeposit(key crypto.UserKey) (*big.Int, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilState
	}
	return e.ledger.Deposit(key)
}

// UserCredit returns the refund credit owed to key.
func (e *Engine) UserCredit(key crypto.UserKey) (*big.Int, error) {
	if e == nil || e.ledger == nil {
		return nil, errNilState
	}
	return e.ledger.Credit(key)
}

// ListUsers enumerates the keys of all existing records.
func (e *Engine) ListUsers() ([]crypto.UserKey, error) {
	if e == nil || e.store == nil {
		return nil, errNilState
	}
	return e.store.Keys()
}

// PricePerByte returns the configured storage price.
func (e *Engine) PricePerByte() *big.Int {
	if e == nil || e.ledger == nil {
		return new(big.Int)
	}
	return e.ledger.PricePerByte()
}

// RecomputedTotal sums deposits and credits across every existing record. It
// exists as a verification check against the maintained aggregate and is
// never used on the hot path.
func (e *Engine) RecomputedTotal() (*big.Int, error) {
	if e == nil || e.store == nil || e.ledger == nil {
		return nil, errNilState
	}
	keys, err := e.store.Keys()
	if err != nil {
		return nil, err
	}
	total := new(big.Int)
	for _, key := range keys {
		deposit, err := e.ledger.Deposit(key)
		if err != nil {
			return nil, err
		}
		credit, err := e.ledger.Credit(key)
		if err != nil {
			return nil, err
		}
		total.Add(total, deposit)
		total.Add(total, credit)
	}
	return total, nil
}
