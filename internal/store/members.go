package store

import (
	"database/sql"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lazypower/erosion/internal/member"
)

// rawMember returns the packed record for (epoch, addr); zero if unseen.
func (t *Tx) rawMember(epoch uint32, addr common.Address) (uint64, error) {
	var v int64
	err := t.tx.QueryRow(`SELECT record FROM members WHERE epoch = ? AND address = ?`, epoch, addr.Bytes()).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get member %d/%s: %w", epoch, addr.Hex(), err)
	}
	return uint64(v), nil
}

func (t *Tx) putMember(epoch uint32, addr common.Address, v uint64) error {
	_, err := t.tx.Exec(`
		INSERT INTO members (epoch, address, record) VALUES (?, ?, ?)
		ON CONFLICT (epoch, address) DO UPDATE SET record = excluded.record
	`, epoch, addr.Bytes(), int64(v))
	if err != nil {
		return fmt.Errorf("put member %d/%s: %w", epoch, addr.Hex(), err)
	}
	return nil
}

// Member returns the decoded record for (epoch, addr).
func (t *Tx) Member(epoch uint32, addr common.Address) (member.Record, error) {
	v, err := t.rawMember(epoch, addr)
	if err != nil {
		return member.Record{}, err
	}
	return member.Decode(v)
}

// SetMemberState overwrites the state bits of a record.
func (t *Tx) SetMemberState(epoch uint32, addr common.Address, s member.State) error {
	v, err := t.rawMember(epoch, addr)
	if err != nil {
		return err
	}
	v, err = member.WithState(v, s)
	if err != nil {
		return err
	}
	return t.putMember(epoch, addr, v)
}

// SetMemberLastSettled overwrites the timestamp bits of a record.
func (t *Tx) SetMemberLastSettled(epoch uint32, addr common.Address, ts uint64) error {
	v, err := t.rawMember(epoch, addr)
	if err != nil {
		return err
	}
	v, err = member.WithLastSettled(v, ts)
	if err != nil {
		return err
	}
	return t.putMember(epoch, addr, v)
}

// LastSettledBefore returns addr's most recent settlement time recorded in
// an epoch earlier than epoch, or zero if it never settled.
func (t *Tx) LastSettledBefore(epoch uint32, addr common.Address) (uint64, error) {
	rows, err := t.tx.Query(`
		SELECT record FROM members WHERE address = ? AND epoch < ? ORDER BY epoch DESC
	`, addr.Bytes(), epoch)
	if err != nil {
		return 0, fmt.Errorf("earlier settlements %s: %w", addr.Hex(), err)
	}
	defer rows.Close()

	for rows.Next() {
		var v int64
		if err := rows.Scan(&v); err != nil {
			return 0, fmt.Errorf("scan member: %w", err)
		}
		r, err := member.Decode(uint64(v))
		if err != nil {
			return 0, err
		}
		if r.LastSettled != 0 {
			return r.LastSettled, nil
		}
	}
	return 0, rows.Err()
}

// CountMembers returns how many records in epoch hold state s.
func (t *Tx) CountMembers(epoch uint32, s member.State) (int, error) {
	var n int
	err := t.tx.QueryRow(`
		SELECT COUNT(*) FROM members WHERE epoch = ? AND (record & 3) = ?
	`, epoch, int(s)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return n, nil
}
