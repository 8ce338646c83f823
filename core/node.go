package core

import (
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"linkoftrust/core/events"
	"linkoftrust/core/state"
	"linkoftrust/core/types"
	"linkoftrust/crypto"
	"linkoftrust/native/trust"
	"linkoftrust/observability/metrics"
	"linkoftrust/storage"
)

var genesisSeededKey = []byte("genesis/seeded")

// Node is the central controller: it owns the state manager, dispatches
// registry operations under a single lock, and moves attached payments
// between external accounts and the registry balance around each call.
type Node struct {
	db      storage.Database
	state   *state.Manager
	engine  *trust.Engine
	logger  *slog.Logger
	metrics *metrics.TrustMetrics

	stateMu sync.Mutex
}

// NewNode wires a trust engine over the given database. The operator account
// is the only caller permitted to extract surplus; an empty operator disables
// extraction entirely.
func NewNode(db storage.Database, pricePerByte *big.Int, operator string, logger *slog.Logger) (*Node, error) {
	if db == nil {
		return nil, fmt.Errorf("core: database required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	manager := state.NewManager(db)
	engine := trust.NewEngine(manager, pricePerByte)
	engine.SetOperator(strings.TrimSpace(operator))

	node := &Node{
		db:     db,
		state:  manager,
		engine: engine,
		logger: logger,
	}
	engine.SetEmitter(&logEmitter{logger: logger})
	return node, nil
}

// SetMetrics attaches the prometheus registry updated after each operation.
func (n *Node) SetMetrics(m *metrics.TrustMetrics) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	n.metrics = m
}

// logEmitter mirrors every engine event onto the structured log.
type logEmitter struct {
	logger *slog.Logger
}

func (l *logEmitter) Emit(evt events.Event) {
	if l == nil || l.logger == nil || evt == nil {
		return
	}
	args := []any{slog.String("event", evt.EventType())}
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		if payload := carrier.Event(); payload != nil {
			for key, value := range payload.Attributes {
				args = append(args, slog.String(key, value))
			}
		}
	}
	l.logger.Info("registry event", args...)
}

// SeedGenesis credits the configured account balances exactly once. A marker
// key makes restarts idempotent.
func (n *Node) SeedGenesis(balances map[string]*big.Int) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	var seeded bool
	ok, err := n.state.KVGet(genesisSeededKey, &seeded)
	if err != nil {
		return err
	}
	if ok && seeded {
		return nil
	}
	for account, amount := range balances {
		if err := n.state.AccountCredit(account, amount); err != nil {
			return fmt.Errorf("core: seed %s: %w", account, err)
		}
		n.logger.Info("seeded genesis account", "account", account, "balance", amount.String())
	}
	return n.state.KVPut(genesisSeededKey, true)
}

// callEnv adapts the state manager's bank to the engine's Environment. The
// attached payment has already been moved onto the registry balance when the
// engine sees it.
type callEnv struct {
	state    *state.Manager
	caller   string
	attached *big.Int
}

func (c *callEnv) Caller() string             { return c.caller }
func (c *callEnv) AttachedPayment() *big.Int  { return new(big.Int).Set(c.attached) }
func (c *callEnv) Balance() (*big.Int, error) { return c.state.ContractBalance() }

func (c *callEnv) Transfer(to string, amount *big.Int) error {
	if err := c.state.ContractDebit(amount); err != nil {
		return err
	}
	return c.state.AccountCredit(to, amount)
}

// execute debits the caller's attached payment onto the registry balance,
// dispatches the operation, and reverses the payment when the operation
// fails. All registry calls are serialized on the state lock.
func (n *Node) execute(method, caller string, payment *big.Int, op func(env trust.Environment) error) error {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()

	caller = strings.TrimSpace(caller)
	if caller == "" {
		return fmt.Errorf("core: caller required")
	}
	attached := new(big.Int)
	if payment != nil {
		if payment.Sign() < 0 {
			return trust.ErrInvalidAmount
		}
		attached.Set(payment)
	}

	if attached.Sign() > 0 {
		if err := n.state.AccountDebit(caller, attached); err != nil {
			n.observeFailure(method)
			return err
		}
		if err := n.state.ContractCredit(attached); err != nil {
			if rbErr := n.state.AccountCredit(caller, attached); rbErr != nil {
				return fmt.Errorf("core: rollback after %v: %w", err, rbErr)
			}
			n.observeFailure(method)
			return err
		}
	}

	err := op(&callEnv{state: n.state, caller: caller, attached: attached})
	if err != nil {
		// A failed call never retains the payment.
		if attached.Sign() > 0 {
			if rbErr := n.state.ContractDebit(attached); rbErr != nil {
				return fmt.Errorf("core: rollback after %v: %w", err, rbErr)
			}
			if rbErr := n.state.AccountCredit(caller, attached); rbErr != nil {
				return fmt.Errorf("core: rollback after %v: %w", err, rbErr)
			}
		}
		n.observeFailure(method)
		n.logger.Warn("registry call rejected", "method", method, "caller", caller, "err", err)
		return err
	}

	n.observeSuccess(method)
	return nil
}

func (n *Node) observeFailure(method string) {
	if n.metrics != nil {
		n.metrics.ObserveFailure(method)
	}
}

func (n *Node) observeSuccess(method string) {
	if n.metrics == nil {
		return
	}
	n.metrics.ObserveOperation(method)
	if total, err := n.engine.TotalUsersDeposit(); err == nil {
		tracked, _ := new(big.Float).SetInt(total).Float64()
		n.metrics.SetTrackedDeposit(tracked)
	}
	if users, err := n.engine.ListUsers(); err == nil {
		n.metrics.SetRegisteredUsers(len(users))
	}
}

// ModifyPublicProfile replaces the caller's public profile string.
func (n *Node) ModifyPublicProfile(caller string, payment *big.Int, profile string) error {
	return n.execute("trust_modifyProfile", caller, payment, func(env trust.Environment) error {
		return n.engine.ModifyPublicProfile(env, profile)
	})
}

// Trust upserts a graded trust edge from the caller toward target.
func (n *Node) Trust(caller string, payment *big.Int, target crypto.UserKey, level float32) error {
	return n.execute("trust_set", caller, payment, func(env trust.Environment) error {
		return n.engine.Trust(env, target, level)
	})
}

// Untrust removes the caller's trust edge toward target.
func (n *Node) Untrust(caller string, payment *big.Int, target crypto.UserKey) error {
	return n.execute("trust_remove", caller, payment, func(env trust.Environment) error {
		return n.engine.Untrust(env, target)
	})
}

// BlockUser adds target to the caller's block set and revokes any trust edge
// target holds toward the caller.
func (n *Node) BlockUser(caller string, payment *big.Int, target crypto.UserKey) error {
	return n.execute("trust_block", caller, payment, func(env trust.Environment) error {
		return n.engine.BlockUser(env, target)
	})
}

// UnblockUser removes target from the caller's block set.
func (n *Node) UnblockUser(caller string, payment *big.Int, target crypto.UserKey) error {
	return n.execute("trust_unblock", caller, payment, func(env trust.Environment) error {
		return n.engine.UnblockUser(env, target)
	})
}

// DeleteUser removes the caller's record and refunds the full held deposit.
func (n *Node) DeleteUser(caller string, payment *big.Int) error {
	return n.execute("trust_deleteUser", caller, payment, func(env trust.Environment) error {
		return n.engine.DeleteUser(env)
	})
}

// ExtractProfit transfers surplus registry balance to the destination
// account. Restricted to the configured operator.
func (n *Node) ExtractProfit(caller, to string, amount *big.Int) error {
	err := n.execute("trust_extractProfit", caller, nil, func(env trust.Environment) error {
		return n.engine.ExtractProfit(env, to, amount)
	})
	if err == nil && n.metrics != nil && amount != nil {
		extracted, _ := new(big.Float).SetInt(amount).Float64()
		n.metrics.AddProfitExtracted(extracted)
	}
	return err
}

// TotalUsersDeposit returns the aggregate of user deposits and refund credits.
func (n *Node) TotalUsersDeposit() (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.TotalUsersDeposit()
}

// UserData returns the record stored for key.
func (n *Node) UserData(key crypto.UserKey) (*trust.UserRecord, bool, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.UserData(key)
}

// UserDeposit returns the deposit held for key plus any refund credit.
func (n *Node) UserDeposit(key crypto.UserKey) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	deposit, err := n.engine.UserDeposit(key)
	if err != nil {
		return nil, err
	}
	credit, err := n.engine.UserCredit(key)
	if err != nil {
		return nil, err
	}
	return deposit.Add(deposit, credit), nil
}

// ListUsers enumerates the keys of all stored records.
func (n *Node) ListUsers() ([]crypto.UserKey, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.engine.ListUsers()
}

// AccountBalance returns the token balance of an external account.
func (n *Node) AccountBalance(id string) (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.AccountBalance(id)
}

// ContractBalance returns the registry's own token balance.
func (n *Node) ContractBalance() (*big.Int, error) {
	n.stateMu.Lock()
	defer n.stateMu.Unlock()
	return n.state.ContractBalance()
}

// PricePerByte returns the configured storage price.
func (n *Node) PricePerByte() *big.Int {
	return n.engine.PricePerByte()
}
