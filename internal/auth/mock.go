package auth

import "github.com/ethereum/go-ethereum/common"

// MockAuthority is a test double recording every check.
type MockAuthority struct {
	Allow bool
	Calls []string
}

// CanCall records the operation and returns m.Allow.
func (m *MockAuthority) CanCall(caller common.Address, op string) bool {
	m.Calls = append(m.Calls, caller.Hex()+":"+op)
	return m.Allow
}
