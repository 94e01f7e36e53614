package engine

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lazypower/erosion/internal/member"
	"github.com/lazypower/erosion/internal/proof"
	"github.com/lazypower/erosion/internal/store"
)

// ClaimReceipt describes a committed genesis claim.
type ClaimReceipt struct {
	OpID      string `json:"op_id"`
	Epoch     uint32 `json:"epoch"`
	Address   string `json:"address"`
	Decay     uint64 `json:"decay"`
	Endowment uint64 `json:"endowment"`
}

// Claim admits a whitelisted address without a sender: the proof must
// place addr under the current generation's root and addr must still be
// unseen in that generation. The claimant is endowed with the current
// capacity and starts decaying now.
func (e *Engine) Claim(addr common.Address, p []common.Hash) (ClaimReceipt, error) {
	var rcpt ClaimReceipt
	opID, err := e.mutate("claim", func(tx *store.Tx, opID string) error {
		if addr == (common.Address{}) {
			return fmt.Errorf("zero address: %w", ErrInvalidRecipient)
		}
		g, err := tx.CurrentGeneration()
		if err != nil {
			return err
		}
		if !proof.VerifyAddress(p, g.ProofRoot, addr) {
			return fmt.Errorf("%s under %s: %w", addr.Hex(), g.ProofRoot.Hex(), ErrInvalidAdmissionProof)
		}
		rec, decay, err := decayIn(tx, addr, e.now())
		if err != nil {
			return err
		}
		if rec.State != member.Unseen {
			return fmt.Errorf("%s is %s in epoch %d: %w", addr.Hex(), rec.State, g.Epoch, ErrAlreadyAdmitted)
		}

		// Knowledge carried from an earlier generation settles its decay
		// before the claim restarts the clock.
		if decay > 0 {
			bal, err := tx.BalanceOf(addr)
			if err != nil {
				return err
			}
			if decay > bal {
				decay = bal
			}
			if decay > 0 {
				if err := tx.Burn(addr, decay); err != nil {
					return err
				}
				if err := tx.AppendEvent(store.Event{
					OpID:   opID,
					Kind:   store.EventBurn,
					Epoch:  g.Epoch,
					From:   addr.Hex(),
					Amount: decay,
					Detail: mustJSON(map[string]uint64{"decay": decay}),
				}); err != nil {
					return err
				}
			}
		}
		rcpt.Decay = decay

		if err := tx.Mint(addr, uint64(g.Capacity)); err != nil {
			return err
		}
		if err := tx.SetMemberLastSettled(g.Epoch, addr, e.now()); err != nil {
			return err
		}
		if err := advance(tx, g.Epoch, addr, rec.State, member.Alive); err != nil {
			return err
		}

		rcpt.OpID, rcpt.Epoch, rcpt.Address = opID, g.Epoch, addr.Hex()
		rcpt.Endowment = uint64(g.Capacity)
		if err := tx.AppendEvent(store.Event{OpID: opID, Kind: store.EventClaim, Epoch: g.Epoch, To: addr.Hex()}); err != nil {
			return err
		}
		return tx.AppendEvent(store.Event{
			OpID:   opID,
			Kind:   store.EventMint,
			Epoch:  g.Epoch,
			To:     addr.Hex(),
			Amount: rcpt.Endowment,
		})
	})
	if err != nil {
		return ClaimReceipt{OpID: opID}, err
	}

	e.Metrics.Claim()
	if rcpt.Decay > 0 {
		e.Metrics.Burned(rcpt.Decay)
	}
	e.Metrics.Minted(rcpt.Endowment)
	e.log.Info().
		Str("op_id", opID).
		Uint32("epoch", rcpt.Epoch).
		Str("address", rcpt.Address).
		Uint64("decay", rcpt.Decay).
		Uint64("endowment", rcpt.Endowment).
		Msg("claim")
	return rcpt, nil
}
