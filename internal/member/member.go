// Package member holds the per-(epoch, address) lifecycle record and its
// compact encoding: 2 low bits of state, the remaining 62 bits of
// last-settled timestamp.
package member

import "fmt"

// State is a member's lifecycle position. It only advances.
type State uint8

const (
	Unseen State = 0
	Alive  State = 1
	Dead   State = 2
)

const (
	stateBits = 2
	stateMask = 1<<stateBits - 1

	// MaxTimestamp is the largest settlement time the record can hold.
	MaxTimestamp = 1<<(64-stateBits) - 1
)

func (s State) String() string {
	switch s {
	case Unseen:
		return "unseen"
	case Alive:
		return "alive"
	case Dead:
		return "dead"
	default:
		return fmt.Sprintf("state(%d)", uint8(s))
	}
}

// Valid reports whether s is one of the three defined states.
func (s State) Valid() bool {
	return s <= Dead
}

// CanBecome reports whether moving from s to next keeps the lifecycle
// monotonic. Staying put is allowed; nothing leaves Dead.
func (s State) CanBecome(next State) bool {
	if !next.Valid() {
		return false
	}
	if s == Dead {
		return next == Dead
	}
	return next >= s
}

// ParseState is the inverse of String.
func ParseState(s string) (State, error) {
	switch s {
	case "unseen":
		return Unseen, nil
	case "alive":
		return Alive, nil
	case "dead":
		return Dead, nil
	}
	return 0, fmt.Errorf("unknown member state %q", s)
}

// MarshalText renders the state by name in JSON.
func (s State) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid member state %d", s)
	}
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name.
func (s *State) UnmarshalText(b []byte) error {
	v, err := ParseState(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Record is the decoded member record.
type Record struct {
	State       State
	LastSettled uint64
}

// Encode packs the record. It fails on a reserved state or an oversized
// timestamp.
func (r Record) Encode() (uint64, error) {
	if !r.State.Valid() {
		return 0, fmt.Errorf("encode member: invalid state %d", r.State)
	}
	if r.LastSettled > MaxTimestamp {
		return 0, fmt.Errorf("encode member: timestamp %d exceeds %d", r.LastSettled, uint64(MaxTimestamp))
	}
	return r.LastSettled<<stateBits | uint64(r.State), nil
}

// Decode unpacks a stored record. The reserved state value 3 is rejected.
func Decode(v uint64) (Record, error) {
	s := State(v & stateMask)
	if !s.Valid() {
		return Record{}, fmt.Errorf("decode member: reserved state bits %d", s)
	}
	return Record{State: s, LastSettled: v >> stateBits}, nil
}

// WithState replaces the state bits, keeping the timestamp.
func WithState(v uint64, s State) (uint64, error) {
	if !s.Valid() {
		return 0, fmt.Errorf("set member state: invalid state %d", s)
	}
	return v&^stateMask | uint64(s), nil
}

// WithLastSettled replaces the timestamp bits, keeping the state.
func WithLastSettled(v uint64, ts uint64) (uint64, error) {
	if ts > MaxTimestamp {
		return 0, fmt.Errorf("set member timestamp: %d exceeds %d", ts, uint64(MaxTimestamp))
	}
	return ts<<stateBits | v&stateMask, nil
}
