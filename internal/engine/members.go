package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lazypower/erosion/internal/member"
	"github.com/lazypower/erosion/internal/store"
)

// stateAt is the balance-aware state: a holder whose balance cannot cover
// required is dead, written or not.
func stateAt(stored member.State, balance, required uint64) member.State {
	if balance < required {
		return member.Dead
	}
	return stored
}

// advance writes next over the stored state, refusing to move backward.
func advance(tx *store.Tx, epoch uint32, addr common.Address, from, next member.State) error {
	if from == next {
		return nil
	}
	if !from.CanBecome(next) {
		return fmt.Errorf("%s %s -> %s: %w", addr.Hex(), from, next, ErrStateRegression)
	}
	return tx.SetMemberState(epoch, addr, next)
}

// State returns the stored state of addr in epoch.
func (e *Engine) State(epoch uint32, addr common.Address) (member.State, error) {
	var r member.Record
	err := e.view(func(tx *store.Tx) error {
		var err error
		r, err = tx.Member(epoch, addr)
		return err
	})
	return r.State, err
}

// StateAt returns the state of addr in epoch, forced to Dead when balance
// is below required.
func (e *Engine) StateAt(epoch uint32, addr common.Address, balance, required uint64) (member.State, error) {
	s, err := e.State(epoch, addr)
	if err != nil {
		return 0, err
	}
	return stateAt(s, balance, required), nil
}

// LastSettled returns the last settlement time of addr in epoch.
func (e *Engine) LastSettled(epoch uint32, addr common.Address) (uint64, error) {
	var r member.Record
	err := e.view(func(tx *store.Tx) error {
		var err error
		r, err = tx.Member(epoch, addr)
		return err
	})
	return r.LastSettled, err
}

// Member returns the full record of addr in epoch.
func (e *Engine) Member(epoch uint32, addr common.Address) (member.Record, error) {
	var r member.Record
	err := e.view(func(tx *store.Tx) error {
		var err error
		r, err = tx.Member(epoch, addr)
		return err
	})
	return r, err
}

// BalanceOf returns the stored knowledge balance of addr, before decay.
func (e *Engine) BalanceOf(addr common.Address) (uint64, error) {
	var b uint64
	err := e.view(func(tx *store.Tx) error {
		var err error
		b, err = tx.BalanceOf(addr)
		return err
	})
	return b, err
}

// Allowance returns what spender may move for owner.
func (e *Engine) Allowance(owner, spender common.Address) (uint64, error) {
	var a uint64
	err := e.view(func(tx *store.Tx) error {
		var err error
		a, err = tx.Allowance(owner, spender)
		return err
	})
	return a, err
}
