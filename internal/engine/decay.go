package engine

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/lazypower/erosion/internal/member"
	"github.com/lazypower/erosion/internal/store"
)

// Decay accrues one unit of knowledge per decayRate seconds since the
// member last settled. The rate is always the current generation's, even
// for holders whose record belongs to an earlier one: decay is a pressure
// of the society as it is now. A record that has never settled in the
// current epoch accrues from the holder's last settlement in an earlier
// one; a holder that never settled anywhere accrues nothing.

// decayOf is floor((now - lastSettled) / rate).
func decayOf(r member.Record, rate uint32, now uint64) uint64 {
	if r.LastSettled == 0 || now <= r.LastSettled || rate == 0 {
		return 0
	}
	return (now - r.LastSettled) / uint64(rate)
}

// decayIn reads addr's record in the current epoch and returns it along
// with the decay accrued at now. The returned record's LastSettled is the
// effective one, carried over from an earlier epoch when needed.
func decayIn(tx *store.Tx, addr common.Address, now uint64) (member.Record, uint64, error) {
	g, err := tx.CurrentGeneration()
	if err != nil {
		return member.Record{}, 0, err
	}
	r, err := tx.Member(g.Epoch, addr)
	if err != nil {
		return member.Record{}, 0, err
	}
	if r.LastSettled == 0 {
		if r.LastSettled, err = tx.LastSettledBefore(g.Epoch, addr); err != nil {
			return member.Record{}, 0, err
		}
	}
	return r, decayOf(r, g.DecayRate, now), nil
}

// KnowledgeDecay returns the knowledge addr would lose if it settled now.
func (e *Engine) KnowledgeDecay(addr common.Address) (uint64, error) {
	var d uint64
	err := e.view(func(tx *store.Tx) error {
		var err error
		_, d, err = decayIn(tx, addr, e.now())
		return err
	})
	return d, err
}
