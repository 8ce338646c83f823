package trust_test

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"testing"

	"linkoftrust/core/events"
	"linkoftrust/core/types"
	"linkoftrust/crypto"
	"linkoftrust/native/trust"
)

type testBank struct {
	contract *big.Int
	accounts map[string]*big.Int
}

func newTestBank() *testBank {
	return &testBank{contract: new(big.Int), accounts: make(map[string]*big.Int)}
}

func (b *testBank) account(id string) *big.Int {
	bal, ok := b.accounts[id]
	if !ok {
		bal = new(big.Int)
		b.accounts[id] = bal
	}
	return bal
}

// hostEnv plays the host: a shared registry balance, per-account balances and
// the payment attached to the current call.
type hostEnv struct {
	bank     *testBank
	caller   string
	attached *big.Int
}

func (h *hostEnv) Caller() string             { return h.caller }
func (h *hostEnv) AttachedPayment() *big.Int  { return new(big.Int).Set(h.attached) }
func (h *hostEnv) Balance() (*big.Int, error) { return new(big.Int).Set(h.bank.contract), nil }

func (h *hostEnv) Transfer(to string, amount *big.Int) error {
	if h.bank.contract.Cmp(amount) < 0 {
		return fmt.Errorf("transfer exceeds registry balance")
	}
	h.bank.contract.Sub(h.bank.contract, amount)
	h.bank.account(to).Add(h.bank.account(to), amount)
	return nil
}

type capturingEmitter struct {
	captured []events.Event
}

func (c *capturingEmitter) Emit(evt events.Event) { c.captured = append(c.captured, evt) }

func (c *capturingEmitter) eventTypes() []string {
	out := make([]string, 0, len(c.captured))
	for _, evt := range c.captured {
		out = append(out, evt.EventType())
	}
	return out
}

func (c *capturingEmitter) last(t *testing.T) *types.Event {
	t.Helper()
	if len(c.captured) == 0 {
		t.Fatalf("no events emitted")
	}
	carrier, ok := c.captured[len(c.captured)-1].(interface{ Event() *types.Event })
	if !ok {
		t.Fatalf("emitted event carries no payload")
	}
	return carrier.Event()
}

type engineFixture struct {
	t      *testing.T
	engine *trust.Engine
	bank   *testBank
	events *capturingEmitter
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	fix := &engineFixture{
		t:      t,
		engine: trust.NewEngine(newTestState(t), testPrice),
		bank:   newTestBank(),
		events: &capturingEmitter{},
	}
	fix.engine.SetEmitter(fix.events)
	return fix
}

// run moves the attached payment into the registry balance, dispatches the
// operation, and on failure returns the payment to the sender the way the
// host runtime reverts a failed call.
func (f *engineFixture) run(caller string, payment int64, op func(env trust.Environment) error) error {
	f.t.Helper()
	attached := big.NewInt(payment)
	f.bank.contract.Add(f.bank.contract, attached)
	err := op(&hostEnv{bank: f.bank, caller: caller, attached: attached})
	if err != nil {
		f.bank.contract.Sub(f.bank.contract, attached)
	}
	return err
}

func (f *engineFixture) mustRun(caller string, payment int64, op func(env trust.Environment) error) {
	f.t.Helper()
	if err := f.run(caller, payment, op); err != nil {
		f.t.Fatalf("operation failed: %v", err)
	}
}

func (f *engineFixture) deposit(id string) *big.Int {
	f.t.Helper()
	deposit, err := f.engine.UserDeposit(crypto.HashIdentity(id))
	if err != nil {
		f.t.Fatalf("deposit: %v", err)
	}
	return deposit
}

func (f *engineFixture) credit(id string) *big.Int {
	f.t.Helper()
	credit, err := f.engine.UserCredit(crypto.HashIdentity(id))
	if err != nil {
		f.t.Fatalf("credit: %v", err)
	}
	return credit
}

func (f *engineFixture) record(id string) (*trust.UserRecord, bool) {
	f.t.Helper()
	record, ok, err := f.engine.UserData(crypto.HashIdentity(id))
	if err != nil {
		f.t.Fatalf("user data: %v", err)
	}
	return record, ok
}

func (f *engineFixture) total() *big.Int {
	f.t.Helper()
	total, err := f.engine.TotalUsersDeposit()
	if err != nil {
		f.t.Fatalf("total: %v", err)
	}
	return total
}

func (f *engineFixture) checkAggregate() {
	f.t.Helper()
	recomputed, err := f.engine.RecomputedTotal()
	if err != nil {
		f.t.Fatalf("recompute total: %v", err)
	}
	if got := f.total(); got.Cmp(recomputed) != 0 {
		f.t.Fatalf("maintained aggregate %s diverged from recomputed %s", got, recomputed)
	}
}

func cost(record *trust.UserRecord) *big.Int {
	return trust.CostOf(testPrice, trust.Measure(record))
}

func TestEngineModifyProfileCreatesRecord(t *testing.T) {
	fix := newEngineFixture(t)
	fix.mustRun("alice.near", 1000, func(env trust.Environment) error {
		return fix.engine.ModifyPublicProfile(env, "hello")
	})

	record, ok := fix.record("alice.near")
	if !ok {
		t.Fatalf("record not created")
	}
	if record.PublicProfile != "hello" {
		t.Fatalf("profile %q", record.PublicProfile)
	}

	expected := cost(record)
	if got := fix.deposit("alice.near"); got.Cmp(expected) != 0 {
		t.Fatalf("deposit %s, expected %s", got, expected)
	}
	refund := new(big.Int).Sub(big.NewInt(1000), expected)
	if got := fix.bank.account("alice.near"); got.Cmp(refund) != 0 {
		t.Fatalf("refund %s, expected %s", got, refund)
	}
	if fix.bank.contract.Cmp(expected) != 0 {
		t.Fatalf("registry balance %s, expected %s", fix.bank.contract, expected)
	}

	evt := fix.events.last(t)
	if evt.Type != trust.EventTypeProfileUpdated {
		t.Fatalf("event %q", evt.Type)
	}
	if evt.Attributes["user"] != crypto.HashIdentity("alice.near").String() {
		t.Fatalf("event user %q", evt.Attributes["user"])
	}
	fix.checkAggregate()
}

func TestEngineModifyProfileInsufficientDepositRollsBack(t *testing.T) {
	fix := newEngineFixture(t)
	err := fix.run("alice.near", 10, func(env trust.Environment) error {
		return fix.engine.ModifyPublicProfile(env, "hello")
	})
	if !errors.Is(err, trust.ErrInsufficientDeposit) {
		t.Fatalf("expected ErrInsufficientDeposit, got %v", err)
	}
	if _, ok := fix.record("alice.near"); ok {
		t.Fatalf("failed call persisted a record")
	}
	if fix.total().Sign() != 0 {
		t.Fatalf("failed call moved the aggregate")
	}
	if fix.bank.contract.Sign() != 0 {
		t.Fatalf("failed call retained the payment")
	}
	if len(fix.events.captured) != 0 {
		t.Fatalf("failed call emitted %v", fix.events.eventTypes())
	}
}

func TestEngineModifyProfileEmptyOnAbsentDoesNotPersist(t *testing.T) {
	fix := newEngineFixture(t)
	fix.mustRun("alice.near", 500, func(env trust.Environment) error {
		return fix.engine.ModifyPublicProfile(env, "")
	})
	if _, ok := fix.record("alice.near"); ok {
		t.Fatalf("no-op call persisted a default record")
	}
	if got := fix.bank.account("alice.near"); got.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("payment not refunded in full: %s", got)
	}
	if len(fix.events.captured) != 0 {
		t.Fatalf("no-op call emitted %v", fix.events.eventTypes())
	}
}

func TestEngineTrustChargesAndRefunds(t *testing.T) {
	fix := newEngineFixture(t)
	bob := crypto.HashIdentity("bob.near")
	fix.mustRun("alice.near", 1000, func(env trust.Environment) error {
		return fix.engine.Trust(env, bob, 0.7)
	})

	record, ok := fix.record("alice.near")
	if !ok {
		t.Fatalf("record not created")
	}
	level, ok := record.TrustLevel(bob)
	if !ok || level != 0.7 {
		t.Fatalf("edge level %v present=%v", level, ok)
	}

	expected := cost(record)
	if got := fix.deposit("alice.near"); got.Cmp(expected) != 0 {
		t.Fatalf("deposit %s, expected %s", got, expected)
	}
	refund := new(big.Int).Sub(big.NewInt(1000), expected)
	if got := fix.bank.account("alice.near"); got.Cmp(refund) != 0 {
		t.Fatalf("refund %s, expected %s", got, refund)
	}

	evt := fix.events.last(t)
	if evt.Type != trust.EventTypeTrustUpdated {
		t.Fatalf("event %q", evt.Type)
	}
	if evt.Attributes["level"] != "0.7" {
		t.Fatalf("event level %q", evt.Attributes["level"])
	}
	fix.checkAggregate()
}

func TestEngineTrustZeroRemovesEdge(t *testing.T) {
	fix := newEngineFixture(t)
	bob := crypto.HashIdentity("bob.near")
	fix.mustRun("alice.near", 1000, func(env trust.Environment) error {
		return fix.engine.Trust(env, bob, 0.5)
	})
	withEdge := fix.deposit("alice.near")

	fix.mustRun("alice.near", 0, func(env trust.Environment) error {
		return fix.engine.Trust(env, bob, 0)
	})

	record, ok := fix.record("alice.near")
	if !ok {
		t.Fatalf("record should survive edge removal")
	}
	if _, present := record.TrustLevel(bob); present {
		t.Fatalf("edge survived zero-level trust")
	}
	if got := fix.deposit("alice.near"); got.Cmp(cost(record)) != 0 {
		t.Fatalf("deposit %s not reconciled after shrink", got)
	}
	if got := fix.deposit("alice.near"); got.Cmp(withEdge) >= 0 {
		t.Fatalf("deposit did not shrink: %s -> %s", withEdge, got)
	}
	last := fix.events.last(t)
	if last.Type != trust.EventTypeTrustRemoved {
		t.Fatalf("event %q", last.Type)
	}
	fix.checkAggregate()
}

func TestEngineTrustInvalidLevels(t *testing.T) {
	fix := newEngineFixture(t)
	bob := crypto.HashIdentity("bob.near")
	for _, level := range []float32{1.5, -0.1, float32(math.NaN())} {
		err := fix.run("alice.near", 1000, func(env trust.Environment) error {
			return fix.engine.Trust(env, bob, level)
		})
		if !errors.Is(err, trust.ErrInvalidLevel) {
			t.Fatalf("level %v: expected ErrInvalidLevel, got %v", level, err)
		}
	}
	if _, ok := fix.record("alice.near"); ok {
		t.Fatalf("invalid levels persisted a record")
	}
}

func TestEngineTrustBlockedCaller(t *testing.T) {
	fix := newEngineFixture(t)
	alice := crypto.HashIdentity("alice.near")
	bob := crypto.HashIdentity("bob.near")

	fix.mustRun("bob.near", 1000, func(env trust.Environment) error {
		return fix.engine.BlockUser(env, alice)
	})
	err := fix.run("alice.near", 1000, func(env trust.Environment) error {
		return fix.engine.Trust(env, bob, 0.9)
	})
	if !errors.Is(err, trust.ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
	if _, ok := fix.record("alice.near"); ok {
		t.Fatalf("blocked trust persisted a record")
	}
}

func TestEngineUntrustAbsentIsNoop(t *testing.T) {
	fix := newEngineFixture(t)
	fix.mustRun("alice.near", 300, func(env trust.Environment) error {
		return fix.engine.Untrust(env, crypto.HashIdentity("bob.near"))
	})
	if _, ok := fix.record("alice.near"); ok {
		t.Fatalf("untrust on absent record persisted state")
	}
	if got := fix.bank.account("alice.near"); got.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("payment not refunded: %s", got)
	}
	if len(fix.events.captured) != 0 {
		t.Fatalf("no-op untrust emitted %v", fix.events.eventTypes())
	}
}

func TestEngineBlockRevokesIncomingTrust(t *testing.T) {
	fix := newEngineFixture(t)
	alice := crypto.HashIdentity("alice.near")
	bob := crypto.HashIdentity("bob.near")

	fix.mustRun("alice.near", 1000, func(env trust.Environment) error {
		return fix.engine.Trust(env, bob, 0.8)
	})
	aliceBefore := fix.deposit("alice.near")

	fix.mustRun("bob.near", 1000, func(env trust.Environment) error {
		return fix.engine.BlockUser(env, alice)
	})

	aliceRecord, ok := fix.record("alice.near")
	if !ok {
		t.Fatalf("alice record vanished")
	}
	if _, present := aliceRecord.TrustLevel(bob); present {
		t.Fatalf("incoming trust edge survived the block")
	}
	bobRecord, ok := fix.record("bob.near")
	if !ok || !bobRecord.IsBlocking(alice) {
		t.Fatalf("block entry missing")
	}

	// The deposit freed on alice's side stays with alice as a credit.
	freed := new(big.Int).Sub(aliceBefore, fix.deposit("alice.near"))
	if freed.Sign() <= 0 {
		t.Fatalf("no deposit freed by edge revocation")
	}
	if got := fix.credit("alice.near"); got.Cmp(freed) != 0 {
		t.Fatalf("credit %s, freed %s", got, freed)
	}

	evt := fix.events.last(t)
	if evt.Type != trust.EventTypeUserBlocked {
		t.Fatalf("event %q", evt.Type)
	}
	if evt.Attributes["trustRevoked"] != "true" {
		t.Fatalf("trustRevoked %q", evt.Attributes["trustRevoked"])
	}
	fix.checkAggregate()
}

func TestEngineSelfBlockRevokesOwnEdge(t *testing.T) {
	fix := newEngineFixture(t)
	alice := crypto.HashIdentity("alice.near")

	fix.mustRun("alice.near", 1000, func(env trust.Environment) error {
		return fix.engine.Trust(env, alice, 0.5)
	})
	fix.mustRun("alice.near", 0, func(env trust.Environment) error {
		return fix.engine.BlockUser(env, alice)
	})

	record, ok := fix.record("alice.near")
	if !ok {
		t.Fatalf("record vanished")
	}
	if _, present := record.TrustLevel(alice); present {
		t.Fatalf("self trust edge survived the self block")
	}
	if !record.IsBlocking(alice) {
		t.Fatalf("block entry missing")
	}
	if got := fix.deposit("alice.near"); got.Cmp(cost(record)) != 0 {
		t.Fatalf("deposit %s not reconciled to %s", got, cost(record))
	}
	evt := fix.events.last(t)
	if evt.Type != trust.EventTypeUserBlocked {
		t.Fatalf("event %q", evt.Type)
	}
	if evt.Attributes["trustRevoked"] != "true" {
		t.Fatalf("trustRevoked %q", evt.Attributes["trustRevoked"])
	}
	fix.checkAggregate()
}

func TestEngineRefundCreditPaysNextGrowth(t *testing.T) {
	fix := newEngineFixture(t)
	alice := crypto.HashIdentity("alice.near")
	bob := crypto.HashIdentity("bob.near")
	carol := crypto.HashIdentity("carol.near")

	fix.mustRun("alice.near", 1000, func(env trust.Environment) error {
		return fix.engine.Trust(env, bob, 0.8)
	})
	fix.mustRun("bob.near", 1000, func(env trust.Environment) error {
		return fix.engine.BlockUser(env, alice)
	})
	credit := fix.credit("alice.near")
	if credit.Sign() <= 0 {
		t.Fatalf("expected a refund credit after the block")
	}

	// One revoked edge frees exactly the cost of one new edge: alice can add
	// a trust edge with no payment attached.
	fix.mustRun("alice.near", 0, func(env trust.Environment) error {
		return fix.engine.Trust(env, carol, 0.4)
	})
	if got := fix.credit("alice.near"); got.Sign() != 0 {
		t.Fatalf("credit not consumed: %s", got)
	}
	record, _ := fix.record("alice.near")
	if got := fix.deposit("alice.near"); got.Cmp(cost(record)) != 0 {
		t.Fatalf("deposit %s not reconciled", got)
	}
	fix.checkAggregate()
}

func TestEngineUnblockUser(t *testing.T) {
	fix := newEngineFixture(t)
	alice := crypto.HashIdentity("alice.near")

	fix.mustRun("bob.near", 1000, func(env trust.Environment) error {
		return fix.engine.BlockUser(env, alice)
	})
	blocked := fix.deposit("bob.near")

	fix.mustRun("bob.near", 0, func(env trust.Environment) error {
		return fix.engine.UnblockUser(env, alice)
	})

	record, ok := fix.record("bob.near")
	if !ok {
		t.Fatalf("record should survive unblock")
	}
	if record.IsBlocking(alice) {
		t.Fatalf("block entry survived unblock")
	}
	if got := fix.deposit("bob.near"); got.Cmp(blocked) >= 0 {
		t.Fatalf("deposit did not shrink on unblock: %s -> %s", blocked, got)
	}
	if evt := fix.events.last(t); evt.Type != trust.EventTypeUserUnblocked {
		t.Fatalf("event %q", evt.Type)
	}

	// Unblocking again is a tolerated no-op and emits nothing.
	emitted := len(fix.events.captured)
	fix.mustRun("bob.near", 0, func(env trust.Environment) error {
		return fix.engine.UnblockUser(env, alice)
	})
	if len(fix.events.captured) != emitted {
		t.Fatalf("no-op unblock emitted an event")
	}
	fix.checkAggregate()
}

func TestEngineDeleteUserRefundsEverything(t *testing.T) {
	fix := newEngineFixture(t)
	bob := crypto.HashIdentity("bob.near")

	fix.mustRun("alice.near", 1000, func(env trust.Environment) error {
		return fix.engine.Trust(env, bob, 0.6)
	})
	deposit := fix.deposit("alice.near")
	totalBefore := fix.total()
	accountBefore := new(big.Int).Set(fix.bank.account("alice.near"))

	fix.mustRun("alice.near", 50, func(env trust.Environment) error {
		return fix.engine.DeleteUser(env)
	})

	if _, ok := fix.record("alice.near"); ok {
		t.Fatalf("record survived deletion")
	}
	if got := fix.deposit("alice.near"); got.Sign() != 0 {
		t.Fatalf("deposit survived deletion: %s", got)
	}

	// Refund is the full deposit plus the attached payment.
	gained := new(big.Int).Sub(fix.bank.account("alice.near"), accountBefore)
	expected := new(big.Int).Add(deposit, big.NewInt(50))
	if gained.Cmp(expected) != 0 {
		t.Fatalf("refund %s, expected %s", gained, expected)
	}

	if got := fix.total(); new(big.Int).Sub(totalBefore, got).Cmp(deposit) != 0 {
		t.Fatalf("aggregate %s -> %s did not drop by %s", totalBefore, got, deposit)
	}
	if evt := fix.events.last(t); evt.Type != trust.EventTypeUserDeleted {
		t.Fatalf("event %q", evt.Type)
	}

	users, err := fix.engine.ListUsers()
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 0 {
		t.Fatalf("index retained %d keys", len(users))
	}
	fix.checkAggregate()
}

func TestEngineDeleteUserRequiresCoveredRefund(t *testing.T) {
	fix := newEngineFixture(t)
	bob := crypto.HashIdentity("bob.near")

	fix.mustRun("alice.near", 1000, func(env trust.Environment) error {
		return fix.engine.Trust(env, bob, 0.6)
	})
	deposit := fix.deposit("alice.near")
	totalBefore := fix.total()

	// Registry balance drained below the held deposit.
	fix.bank.contract.SetInt64(1)

	err := fix.run("alice.near", 0, func(env trust.Environment) error {
		return fix.engine.DeleteUser(env)
	})
	if err == nil {
		t.Fatalf("expected delete to fail on uncovered refund")
	}
	if _, ok := fix.record("alice.near"); !ok {
		t.Fatalf("record removed despite failed payout")
	}
	if got := fix.deposit("alice.near"); got.Cmp(deposit) != 0 {
		t.Fatalf("deposit moved: %s -> %s", deposit, got)
	}
	if got := fix.total(); got.Cmp(totalBefore) != 0 {
		t.Fatalf("aggregate moved: %s -> %s", totalBefore, got)
	}
}

func TestEngineDeleteAbsentIsNoop(t *testing.T) {
	fix := newEngineFixture(t)
	fix.mustRun("alice.near", 25, func(env trust.Environment) error {
		return fix.engine.DeleteUser(env)
	})
	if got := fix.bank.account("alice.near"); got.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("payment not refunded: %s", got)
	}
	if len(fix.events.captured) != 0 {
		t.Fatalf("no-op delete emitted %v", fix.events.eventTypes())
	}
}

func TestEngineExtractProfit(t *testing.T) {
	fix := newEngineFixture(t)
	fix.engine.SetOperator("operator.near")
	bob := crypto.HashIdentity("bob.near")

	fix.mustRun("alice.near", 1000, func(env trust.Environment) error {
		return fix.engine.Trust(env, bob, 0.5)
	})
	// Fund the registry directly to create an extractable surplus.
	fix.bank.contract.Add(fix.bank.contract, big.NewInt(400))

	run := func(caller string, to string, amount int64) error {
		return fix.run(caller, 0, func(env trust.Environment) error {
			return fix.engine.ExtractProfit(env, to, big.NewInt(amount))
		})
	}

	if err := run("mallory.near", "mallory.near", 100); !errors.Is(err, trust.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := run("operator.near", "operator.near", 0); !errors.Is(err, trust.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if err := run("operator.near", "operator.near", -5); !errors.Is(err, trust.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
	if err := run("operator.near", "operator.near", 401); !errors.Is(err, trust.ErrWouldBreachSolvency) {
		t.Fatalf("expected ErrWouldBreachSolvency, got %v", err)
	}

	if err := run("operator.near", "operator.near", 400); err != nil {
		t.Fatalf("extract profit: %v", err)
	}
	if got := fix.bank.account("operator.near"); got.Cmp(big.NewInt(400)) != 0 {
		t.Fatalf("operator received %s", got)
	}
	if fix.bank.contract.Cmp(fix.total()) != 0 {
		t.Fatalf("balance %s below tracked deposits %s", fix.bank.contract, fix.total())
	}
	if evt := fix.events.last(t); evt.Type != trust.EventTypeProfitExtracted {
		t.Fatalf("event %q", evt.Type)
	}
}

func TestEngineExtractProfitWithoutOperator(t *testing.T) {
	fix := newEngineFixture(t)
	err := fix.run("anyone.near", 0, func(env trust.Environment) error {
		return fix.engine.ExtractProfit(env, "anyone.near", big.NewInt(1))
	})
	if !errors.Is(err, trust.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}

func TestEngineAggregateSurvivesMixedSequence(t *testing.T) {
	fix := newEngineFixture(t)
	alice := crypto.HashIdentity("alice.near")
	bob := crypto.HashIdentity("bob.near")
	carol := crypto.HashIdentity("carol.near")

	fix.mustRun("alice.near", 2000, func(env trust.Environment) error {
		return fix.engine.ModifyPublicProfile(env, "alice, verified")
	})
	fix.mustRun("alice.near", 2000, func(env trust.Environment) error {
		return fix.engine.Trust(env, bob, 0.9)
	})
	fix.mustRun("alice.near", 2000, func(env trust.Environment) error {
		return fix.engine.Trust(env, carol, 0.3)
	})
	fix.mustRun("bob.near", 2000, func(env trust.Environment) error {
		return fix.engine.BlockUser(env, alice)
	})
	fix.mustRun("alice.near", 0, func(env trust.Environment) error {
		return fix.engine.Untrust(env, carol)
	})
	fix.mustRun("carol.near", 2000, func(env trust.Environment) error {
		return fix.engine.Trust(env, alice, 1.0)
	})
	fix.mustRun("bob.near", 0, func(env trust.Environment) error {
		return fix.engine.UnblockUser(env, alice)
	})
	fix.mustRun("carol.near", 0, func(env trust.Environment) error {
		return fix.engine.DeleteUser(env)
	})

	fix.checkAggregate()

	// The registry balance always covers the tracked user funds.
	if fix.bank.contract.Cmp(fix.total()) < 0 {
		t.Fatalf("balance %s below tracked deposits %s", fix.bank.contract, fix.total())
	}

	users, err := fix.engine.ListUsers()
	if err != nil {
		t.Fatalf("list users: %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("expected 2 remaining users, got %d", len(users))
	}
}
