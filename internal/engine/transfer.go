package engine

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/lazypower/erosion/internal/fixed"
	"github.com/lazypower/erosion/internal/member"
	"github.com/lazypower/erosion/internal/store"
)

// Transfer kinds.
const (
	KindShard = "shard"
	KindExit  = "exit"
)

// Receipt describes a committed transfer.
type Receipt struct {
	OpID      string `json:"op_id"`
	Epoch     uint32 `json:"epoch"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    uint64 `json:"amount"`
	Kind      string `json:"kind"`
	Decay     uint64 `json:"decay"`
	Cost      uint64 `json:"cost"`
	Endowment uint64 `json:"endowment"`

	SenderBalance    uint64       `json:"sender_balance"`
	RecipientBalance uint64       `json:"recipient_balance"`
	SenderState      member.State `json:"sender_state"`
	RecipientState   member.State `json:"recipient_state"`
	Born             bool         `json:"born"`
	Died             bool         `json:"died"`

	latestBirth decimal.Decimal
}

// Transfer moves amount of from's knowledge to to under the shard-or-all
// law: amount is either a single admission shard, which pays the auction
// price and endows the recipient, or from's entire remaining balance,
// which is free and retires from.
func (e *Engine) Transfer(from, to common.Address, amount uint64) (Receipt, error) {
	var rcpt Receipt
	opID, err := e.mutate("transfer", func(tx *store.Tx, opID string) error {
		var err error
		rcpt, err = e.transfer(tx, opID, from, to, amount)
		return err
	})
	if err != nil {
		return Receipt{OpID: opID}, err
	}
	e.committed(rcpt)
	return rcpt, nil
}

// TransferFrom spends spender's allowance over from and then runs the
// same protocol as Transfer with from as the sender.
func (e *Engine) TransferFrom(spender, from, to common.Address, amount uint64) (Receipt, error) {
	var rcpt Receipt
	opID, err := e.mutate("transferFrom", func(tx *store.Tx, opID string) error {
		allowed, err := tx.Allowance(from, spender)
		if err != nil {
			return err
		}
		if allowed < amount {
			return fmt.Errorf("%s may move %d of %s, asked %d: %w",
				spender.Hex(), allowed, from.Hex(), amount, ErrInsufficientAllowance)
		}
		if err := tx.SetAllowance(from, spender, allowed-amount); err != nil {
			return err
		}
		rcpt, err = e.transfer(tx, opID, from, to, amount)
		return err
	})
	if err != nil {
		return Receipt{OpID: opID}, err
	}
	e.committed(rcpt)
	return rcpt, nil
}

// Approve sets how much spender may move on behalf of owner.
func (e *Engine) Approve(owner, spender common.Address, amount uint64) (string, error) {
	opID, err := e.mutate("approve", func(tx *store.Tx, opID string) error {
		if spender == (common.Address{}) {
			return fmt.Errorf("zero spender: %w", ErrInvalidRecipient)
		}
		if err := tx.SetAllowance(owner, spender, amount); err != nil {
			return err
		}
		g, err := tx.CurrentGeneration()
		if err != nil {
			return err
		}
		return tx.AppendEvent(store.Event{
			OpID:   opID,
			Kind:   store.EventApproval,
			Epoch:  g.Epoch,
			From:   owner.Hex(),
			To:     spender.Hex(),
			Amount: amount,
		})
	})
	if err != nil {
		return opID, err
	}
	e.log.Info().
		Str("op_id", opID).
		Str("owner", owner.Hex()).
		Str("spender", spender.Hex()).
		Uint64("amount", amount).
		Msg("approval")
	return opID, nil
}

func (e *Engine) transfer(tx *store.Tx, opID string, from, to common.Address, amount uint64) (Receipt, error) {
	if err := validRecipient(from, to); err != nil {
		return Receipt{}, err
	}
	now := e.now()

	c, err := tx.Community()
	if err != nil {
		return Receipt{}, err
	}
	if c == nil {
		return Receipt{}, ErrNotBootstrapped
	}
	g, err := tx.CurrentGeneration()
	if err != nil {
		return Receipt{}, err
	}

	rcpt := Receipt{
		OpID:        opID,
		Epoch:       g.Epoch,
		From:        from.Hex(),
		To:          to.Hex(),
		Amount:      amount,
		latestBirth: c.LatestBirth,
	}

	// 1. The recipient must not be a carcass, written or implied by decay.
	toRec, toDecay, err := decayIn(tx, to, now)
	if err != nil {
		return Receipt{}, err
	}
	toBal, err := tx.BalanceOf(to)
	if err != nil {
		return Receipt{}, err
	}
	if stateAt(toRec.State, toBal, toDecay) == member.Dead {
		return Receipt{}, fmt.Errorf("recipient %s: %w", to.Hex(), ErrRecipientIsDead)
	}

	// 2. The sender must still cover its own decay.
	fromRec, decay, err := decayIn(tx, from, now)
	if err != nil {
		return Receipt{}, err
	}
	fromBal, err := tx.BalanceOf(from)
	if err != nil {
		return Receipt{}, err
	}
	if fromBal < decay {
		return Receipt{}, fmt.Errorf("%s holds %d, owes %d: %w", from.Hex(), fromBal, decay, ErrSenderPerished)
	}
	remaining := fromBal - decay
	rcpt.Decay = decay

	// 3. Shard or all.
	if amount == 0 || (amount != 1 && amount != remaining) {
		return Receipt{}, fmt.Errorf("amount %d with %d remaining: %w", amount, remaining, ErrInvalidTransferAmount)
	}
	exit := amount == remaining
	rcpt.Kind = KindShard
	if exit {
		rcpt.Kind = KindExit
	}

	// 4. A shard pays the auction and consumes emission budget. Exits are free.
	var cost uint64
	if !exit {
		next, err := e.curve.Advance(amount, fixed.FromUint(now), c.LatestBirth)
		if err != nil {
			return Receipt{}, err
		}
		cost, err = e.price(amount, now, c.LatestBirth, g)
		if err != nil {
			return Receipt{}, err
		}
		if err := tx.SetLatestBirth(next); err != nil {
			return Receipt{}, err
		}
		rcpt.latestBirth = next
	}
	rcpt.Cost = cost

	if amount > remaining {
		return Receipt{}, fmt.Errorf("%s has %d remaining, needs %d: %w", from.Hex(), remaining, amount, ErrInsufficientRemainingBalance)
	}

	// 5. Settle decay and erosion by burning them.
	if charge := decay + cost; charge > 0 {
		if remaining-amount < cost {
			return Receipt{}, fmt.Errorf("%s has %d remaining, needs %d plus %d: %w",
				from.Hex(), remaining, amount, cost, ErrInsufficientRemainingBalance)
		}
		if err := tx.Burn(from, charge); err != nil {
			return Receipt{}, err
		}
		if err := tx.SetMemberLastSettled(g.Epoch, from, now); err != nil {
			return Receipt{}, err
		}
		if err := tx.AppendEvent(store.Event{
			OpID:   opID,
			Kind:   store.EventBurn,
			Epoch:  g.Epoch,
			From:   from.Hex(),
			Amount: charge,
			Detail: mustJSON(map[string]uint64{"decay": decay, "cost": cost}),
		}); err != nil {
			return Receipt{}, err
		}
	}

	if err := tx.Move(from, to, amount); err != nil {
		return Receipt{}, err
	}
	if err := tx.AppendEvent(store.Event{
		OpID:   opID,
		Kind:   store.EventTransfer,
		Epoch:  g.Epoch,
		From:   from.Hex(),
		To:     to.Hex(),
		Amount: amount,
		Detail: mustJSON(map[string]any{"kind": rcpt.Kind, "decay": decay, "cost": cost}),
	}); err != nil {
		return Receipt{}, err
	}

	// 6. Sender: an exit is death, otherwise dead only if nothing is left.
	fromPost := fromBal - decay - cost - amount
	fromNext := member.Dead
	if !exit {
		fromNext = stateAt(fromRec.State, fromPost, 1)
	}
	if err := advance(tx, g.Epoch, from, fromRec.State, fromNext); err != nil {
		return Receipt{}, err
	}
	if fromNext == member.Dead && fromRec.State != member.Dead {
		rcpt.Died = true
		if err := tx.AppendEvent(store.Event{OpID: opID, Kind: store.EventDeath, Epoch: g.Epoch, From: from.Hex()}); err != nil {
			return Receipt{}, err
		}
	}

	// 7. Recipient: a first balance is a birth.
	toPost := toBal + amount
	toNext := stateAt(toRec.State, toPost, 1)
	if toBal == 0 {
		toNext = member.Alive
		if err := tx.SetMemberLastSettled(g.Epoch, to, now); err != nil {
			return Receipt{}, err
		}
	}
	if err := advance(tx, g.Epoch, to, toRec.State, toNext); err != nil {
		return Receipt{}, err
	}
	if toBal == 0 {
		rcpt.Born = true
		if err := tx.AppendEvent(store.Event{OpID: opID, Kind: store.EventBirth, Epoch: g.Epoch, To: to.Hex()}); err != nil {
			return Receipt{}, err
		}
	}

	// 8. A single-unit transfer endows the recipient with the generation's
	// capacity, including the last unit of a sender that holds only one.
	if amount == 1 && g.Capacity > 0 {
		if err := tx.Mint(to, uint64(g.Capacity)); err != nil {
			return Receipt{}, err
		}
		toPost += uint64(g.Capacity)
		rcpt.Endowment = uint64(g.Capacity)
		if err := tx.AppendEvent(store.Event{
			OpID:   opID,
			Kind:   store.EventMint,
			Epoch:  g.Epoch,
			To:     to.Hex(),
			Amount: rcpt.Endowment,
		}); err != nil {
			return Receipt{}, err
		}
	}

	rcpt.SenderBalance = fromPost
	rcpt.RecipientBalance = toPost
	rcpt.SenderState = fromNext
	rcpt.RecipientState = toNext
	return rcpt, nil
}

// committed records metrics and the commit log line once a transfer is durable.
func (e *Engine) committed(r Receipt) {
	e.Metrics.Transfer(r.Kind)
	if r.Decay+r.Cost > 0 {
		e.Metrics.Burned(r.Decay + r.Cost)
	}
	if r.Endowment > 0 {
		e.Metrics.Minted(r.Endowment)
	}
	if r.Born {
		e.Metrics.Birth()
	}
	if r.Died {
		e.Metrics.Death()
	}
	if r.Kind == KindShard {
		e.Metrics.LatestBirth(r.latestBirth.InexactFloat64())
	}

	e.log.Info().
		Str("op_id", r.OpID).
		Uint32("epoch", r.Epoch).
		Str("from", r.From).
		Str("to", r.To).
		Str("kind", r.Kind).
		Uint64("amount", r.Amount).
		Uint64("decay", r.Decay).
		Uint64("cost", r.Cost).
		Uint64("endowment", r.Endowment).
		Stringer("sender_state", r.SenderState).
		Stringer("recipient_state", r.RecipientState).
		Msg("transfer")
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
