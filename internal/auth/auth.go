package auth

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lazypower/erosion/internal/config"
)

// Operation names checked by the engine.
const (
	OpSetGeneration = "setGeneration"
)

// Authority decides whether caller may perform a guarded operation.
type Authority interface {
	CanCall(caller common.Address, op string) bool
}

// NewAuthority builds an Authority from the auth config mode.
func NewAuthority(cfg config.AuthConfig) (Authority, error) {
	switch cfg.Mode {
	case "owner", "":
		if cfg.Owner == "" {
			return nil, fmt.Errorf("owner authority requires auth.owner")
		}
		if !common.IsHexAddress(cfg.Owner) {
			return nil, fmt.Errorf("invalid owner address %q", cfg.Owner)
		}
		return &Owner{Address: common.HexToAddress(cfg.Owner)}, nil
	case "allowlist":
		a := &Allowlist{allowed: make(map[common.Address]bool)}
		for _, s := range cfg.Allowlist {
			if !common.IsHexAddress(s) {
				return nil, fmt.Errorf("invalid allowlist address %q", s)
			}
			a.allowed[common.HexToAddress(s)] = true
		}
		if cfg.Owner != "" {
			if !common.IsHexAddress(cfg.Owner) {
				return nil, fmt.Errorf("invalid owner address %q", cfg.Owner)
			}
			a.allowed[common.HexToAddress(cfg.Owner)] = true
		}
		return a, nil
	case "open":
		return Open{}, nil
	default:
		return nil, fmt.Errorf("unknown auth mode: %q", cfg.Mode)
	}
}

// Owner permits a single address.
type Owner struct {
	Address common.Address
}

// CanCall reports whether caller is the owner.
func (o *Owner) CanCall(caller common.Address, op string) bool {
	return caller == o.Address
}

// Allowlist permits every listed address for every operation.
type Allowlist struct {
	allowed map[common.Address]bool
}

// CanCall reports whether caller is listed.
func (a *Allowlist) CanCall(caller common.Address, op string) bool {
	return a.allowed[caller]
}

// Open permits everyone. Development only.
type Open struct{}

// CanCall always permits.
func (Open) CanCall(common.Address, string) bool { return true }
