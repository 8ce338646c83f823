package core

import (
	"errors"
	"fmt"
	"math/big"
	"testing"

	"linkoftrust/core/state"
	"linkoftrust/crypto"
	"linkoftrust/native/trust"
	"linkoftrust/storage"
)

func newTestNode(t *testing.T) *Node {
	t.Helper()
	db := storage.NewMemDB()
	t.Cleanup(func() { db.Close() })
	node, err := NewNode(db, big.NewInt(2), "operator.near", nil)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	if err := node.SeedGenesis(map[string]*big.Int{
		"alice.near": big.NewInt(100_000),
		"bob.near":   big.NewInt(100_000),
	}); err != nil {
		t.Fatalf("seed genesis: %v", err)
	}
	return node
}

func TestNodeSeedGenesisOnce(t *testing.T) {
	node := newTestNode(t)
	if err := node.SeedGenesis(map[string]*big.Int{"alice.near": big.NewInt(1)}); err != nil {
		t.Fatalf("reseed: %v", err)
	}
	balance, err := node.AccountBalance("alice.near")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("reseed changed balance to %s", balance)
	}
}

func TestNodePaymentConservation(t *testing.T) {
	node := newTestNode(t)
	if err := node.ModifyPublicProfile("alice.near", big.NewInt(1000), "hello"); err != nil {
		t.Fatalf("modify profile: %v", err)
	}

	record, ok, err := node.UserData(crypto.HashIdentity("alice.near"))
	if err != nil || !ok {
		t.Fatalf("record: ok=%v err=%v", ok, err)
	}
	if record.PublicProfile != "hello" {
		t.Fatalf("profile %q", record.PublicProfile)
	}

	deposit, err := node.UserDeposit(crypto.HashIdentity("alice.near"))
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	balance, _ := node.AccountBalance("alice.near")
	contract, _ := node.ContractBalance()

	// Everything debited either became the deposit or flowed back.
	spent := new(big.Int).Sub(big.NewInt(100_000), balance)
	if spent.Cmp(deposit) != 0 {
		t.Fatalf("spent %s, deposit %s", spent, deposit)
	}
	if contract.Cmp(deposit) != 0 {
		t.Fatalf("registry balance %s, deposit %s", contract, deposit)
	}
}

func TestNodeRejectsUnfundedCaller(t *testing.T) {
	node := newTestNode(t)
	err := node.ModifyPublicProfile("nobody.near", big.NewInt(500), "hi")
	if !errors.Is(err, state.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
}

func TestNodeRollsBackFailedCall(t *testing.T) {
	node := newTestNode(t)
	// Payment too small for the record being created.
	err := node.ModifyPublicProfile("alice.near", big.NewInt(10), "hello")
	if !errors.Is(err, trust.ErrInsufficientDeposit) {
		t.Fatalf("expected ErrInsufficientDeposit, got %v", err)
	}
	balance, _ := node.AccountBalance("alice.near")
	if balance.Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("failed call retained funds: balance %s", balance)
	}
	contract, _ := node.ContractBalance()
	if contract.Sign() != 0 {
		t.Fatalf("failed call left registry balance %s", contract)
	}
}

func TestNodeTrustAndDelete(t *testing.T) {
	node := newTestNode(t)
	bob := crypto.HashIdentity("bob.near")
	if err := node.Trust("alice.near", big.NewInt(2000), bob, 0.8); err != nil {
		t.Fatalf("trust: %v", err)
	}

	users, err := node.ListUsers()
	if err != nil || len(users) != 1 {
		t.Fatalf("users %v err %v", users, err)
	}
	total, _ := node.TotalUsersDeposit()
	if total.Sign() <= 0 {
		t.Fatalf("aggregate not tracked: %s", total)
	}

	if err := node.DeleteUser("alice.near", nil); err != nil {
		t.Fatalf("delete: %v", err)
	}
	balance, _ := node.AccountBalance("alice.near")
	if balance.Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("delete did not refund in full: %s", balance)
	}
	total, _ = node.TotalUsersDeposit()
	if total.Sign() != 0 {
		t.Fatalf("aggregate not released: %s", total)
	}
}

func TestNodeBlockCreditsTarget(t *testing.T) {
	node := newTestNode(t)
	alice := crypto.HashIdentity("alice.near")
	bob := crypto.HashIdentity("bob.near")

	if err := node.Trust("alice.near", big.NewInt(2000), bob, 0.9); err != nil {
		t.Fatalf("trust: %v", err)
	}
	before, _ := node.UserDeposit(alice)

	if err := node.BlockUser("bob.near", big.NewInt(2000), alice); err != nil {
		t.Fatalf("block: %v", err)
	}

	// The freed deposit stays with alice as a refund credit, so the combined
	// holding is unchanged.
	after, _ := node.UserDeposit(alice)
	if after.Cmp(before) != 0 {
		t.Fatalf("alice holding moved: %s -> %s", before, after)
	}

	err := node.Trust("alice.near", big.NewInt(2000), bob, 0.5)
	if !errors.Is(err, trust.ErrBlocked) {
		t.Fatalf("expected ErrBlocked, got %v", err)
	}
}

// flakyDB fails the nth write to exercise mid-operation storage errors.
type flakyDB struct {
	inner  storage.Database
	puts   int
	failAt int
}

func (f *flakyDB) Put(key, value []byte) error {
	f.puts++
	if f.puts == f.failAt {
		return fmt.Errorf("disk failure")
	}
	return f.inner.Put(key, value)
}

func (f *flakyDB) Get(key []byte) ([]byte, error) { return f.inner.Get(key) }
func (f *flakyDB) Delete(key []byte) error        { return f.inner.Delete(key) }
func (f *flakyDB) Close()                         { f.inner.Close() }

func TestNodeReversesDebitWhenRegistryCreditFails(t *testing.T) {
	db := &flakyDB{inner: storage.NewMemDB()}
	t.Cleanup(db.Close)
	node, err := NewNode(db, big.NewInt(2), "", nil)
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	if err := node.SeedGenesis(map[string]*big.Int{"alice.near": big.NewInt(100_000)}); err != nil {
		t.Fatalf("seed genesis: %v", err)
	}

	// The first write of the call is the account debit, the second the
	// registry credit. Fail the credit and expect the debit undone.
	db.failAt = db.puts + 2
	if err := node.ModifyPublicProfile("alice.near", big.NewInt(1000), "hello"); err == nil {
		t.Fatalf("expected storage failure to surface")
	}

	balance, err := node.AccountBalance("alice.near")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(100_000)) != 0 {
		t.Fatalf("debit not reversed: balance %s", balance)
	}
	contract, err := node.ContractBalance()
	if err != nil {
		t.Fatalf("contract balance: %v", err)
	}
	if contract.Sign() != 0 {
		t.Fatalf("registry balance %s after failed credit", contract)
	}
}

func TestNodeExtractProfit(t *testing.T) {
	node := newTestNode(t)
	bob := crypto.HashIdentity("bob.near")
	if err := node.Trust("alice.near", big.NewInt(2000), bob, 0.5); err != nil {
		t.Fatalf("trust: %v", err)
	}

	// No surplus yet: the registry balance equals the tracked deposits.
	err := node.ExtractProfit("operator.near", "operator.near", big.NewInt(1))
	if !errors.Is(err, trust.ErrWouldBreachSolvency) {
		t.Fatalf("expected ErrWouldBreachSolvency, got %v", err)
	}

	err = node.ExtractProfit("alice.near", "alice.near", big.NewInt(1))
	if !errors.Is(err, trust.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	// Fund the registry directly to create an extractable surplus.
	node.stateMu.Lock()
	if err := node.state.ContractCredit(big.NewInt(300)); err != nil {
		node.stateMu.Unlock()
		t.Fatalf("credit registry: %v", err)
	}
	node.stateMu.Unlock()

	if err := node.ExtractProfit("operator.near", "operator.near", big.NewInt(300)); err != nil {
		t.Fatalf("extract: %v", err)
	}
	balance, _ := node.AccountBalance("operator.near")
	if balance.Cmp(big.NewInt(300)) != 0 {
		t.Fatalf("operator received %s", balance)
	}
}
