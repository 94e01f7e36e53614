package store

import (
	"database/sql"
	"errors"
	"fmt"
	"math"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrBalanceOverflow     = errors.New("balance overflow")
)

// BalanceOf returns the knowledge held by addr.
func (t *Tx) BalanceOf(addr common.Address) (uint64, error) {
	var v int64
	err := t.tx.QueryRow(`SELECT amount FROM balances WHERE address = ?`, addr.Bytes()).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("balance of %s: %w", addr.Hex(), err)
	}
	return uint64(v), nil
}

func (t *Tx) setBalance(addr common.Address, amount uint64) error {
	if amount > math.MaxInt64 {
		return ErrBalanceOverflow
	}
	_, err := t.tx.Exec(`
		INSERT INTO balances (address, amount) VALUES (?, ?)
		ON CONFLICT (address) DO UPDATE SET amount = excluded.amount
	`, addr.Bytes(), int64(amount))
	if err != nil {
		return fmt.Errorf("set balance %s: %w", addr.Hex(), err)
	}
	return nil
}

// Mint credits amount to addr.
func (t *Tx) Mint(to common.Address, amount uint64) error {
	bal, err := t.BalanceOf(to)
	if err != nil {
		return err
	}
	if bal+amount < bal {
		return ErrBalanceOverflow
	}
	return t.setBalance(to, bal+amount)
}

// Burn debits amount from addr.
func (t *Tx) Burn(from common.Address, amount uint64) error {
	bal, err := t.BalanceOf(from)
	if err != nil {
		return err
	}
	if bal < amount {
		return fmt.Errorf("burn %d from %s: %w", amount, from.Hex(), ErrInsufficientBalance)
	}
	return t.setBalance(from, bal-amount)
}

// Move transfers amount between two balances.
func (t *Tx) Move(from, to common.Address, amount uint64) error {
	if err := t.Burn(from, amount); err != nil {
		return err
	}
	return t.Mint(to, amount)
}

// TotalSupply sums every balance.
func (t *Tx) TotalSupply() (uint64, error) {
	var v int64
	if err := t.tx.QueryRow(`SELECT COALESCE(SUM(amount), 0) FROM balances`).Scan(&v); err != nil {
		return 0, fmt.Errorf("total supply: %w", err)
	}
	return uint64(v), nil
}

// Allowance returns how much spender may move on behalf of owner.
func (t *Tx) Allowance(owner, spender common.Address) (uint64, error) {
	var v int64
	err := t.tx.QueryRow(`
		SELECT amount FROM allowances WHERE owner = ? AND spender = ?
	`, owner.Bytes(), spender.Bytes()).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("allowance %s/%s: %w", owner.Hex(), spender.Hex(), err)
	}
	return uint64(v), nil
}

// SetAllowance overwrites the allowance of spender over owner's balance.
func (t *Tx) SetAllowance(owner, spender common.Address, amount uint64) error {
	if amount > math.MaxInt64 {
		return ErrBalanceOverflow
	}
	_, err := t.tx.Exec(`
		INSERT INTO allowances (owner, spender, amount) VALUES (?, ?, ?)
		ON CONFLICT (owner, spender) DO UPDATE SET amount = excluded.amount
	`, owner.Bytes(), spender.Bytes(), int64(amount))
	if err != nil {
		return fmt.Errorf("set allowance %s/%s: %w", owner.Hex(), spender.Hex(), err)
	}
	return nil
}
