package state

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

var (
	accountBalancePrefix = []byte("account/balance/")
	contractBalanceKey   = []byte("registry/contractBalance")
)

var (
	// ErrInsufficientFunds marks debits exceeding the available balance.
	ErrInsufficientFunds = errors.New("state: insufficient funds")
	// ErrInvalidAmount marks nil or negative token amounts.
	ErrInvalidAmount = errors.New("state: invalid amount")
)

func accountBalanceKey(id string) []byte {
	trimmed := strings.TrimSpace(id)
	buf := make([]byte, len(accountBalancePrefix)+len(trimmed))
	copy(buf, accountBalancePrefix)
	copy(buf[len(accountBalancePrefix):], trimmed)
	return buf
}

func checkAmount(amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return ErrInvalidAmount
	}
	return nil
}

// AccountBalance returns the token balance held by an external account.
// Unknown accounts hold zero.
func (m *Manager) AccountBalance(id string) (*big.Int, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("state: account id required")
	}
	balance := new(big.Int)
	if _, err := m.KVGet(accountBalanceKey(id), balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// AccountCredit adds the amount to the account's balance.
func (m *Manager) AccountCredit(id string, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	balance, err := m.AccountBalance(id)
	if err != nil {
		return err
	}
	return m.KVPut(accountBalanceKey(id), new(big.Int).Add(balance, amount))
}

// AccountDebit subtracts the amount from the account's balance, failing with
// ErrInsufficientFunds when the balance does not cover it.
func (m *Manager) AccountDebit(id string, amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	balance, err := m.AccountBalance(id)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: account %s holds %s, needs %s", ErrInsufficientFunds, id, balance, amount)
	}
	return m.KVPut(accountBalanceKey(id), new(big.Int).Sub(balance, amount))
}

// ContractBalance returns the token balance currently held by the registry
// itself: attached payments that became deposits plus any accumulated surplus.
func (m *Manager) ContractBalance() (*big.Int, error) {
	balance := new(big.Int)
	if _, err := m.KVGet(contractBalanceKey, balance); err != nil {
		return nil, err
	}
	return balance, nil
}

// ContractCredit adds the amount to the registry balance.
func (m *Manager) ContractCredit(amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	balance, err := m.ContractBalance()
	if err != nil {
		return err
	}
	return m.KVPut(contractBalanceKey, new(big.Int).Add(balance, amount))
}

// ContractDebit subtracts the amount from the registry balance.
func (m *Manager) ContractDebit(amount *big.Int) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	balance, err := m.ContractBalance()
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("%w: registry holds %s, needs %s", ErrInsufficientFunds, balance, amount)
	}
	return m.KVPut(contractBalanceKey, new(big.Int).Sub(balance, amount))
}
