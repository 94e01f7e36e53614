// Package proof builds and verifies the admission whitelist: a keccak256
// Merkle tree over address leaves with sorted sibling pairs, compatible with
// OpenZeppelin's MerkleProof.verify.
package proof

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"golang.org/x/crypto/sha3"
)

var ErrNotInTree = errors.New("address not in whitelist")

func keccak(data ...[]byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	for _, d := range data {
		h.Write(d)
	}
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// Leaf is the tree leaf for an address: keccak256(address bytes).
func Leaf(addr common.Address) common.Hash {
	return keccak(addr.Bytes())
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return keccak(a[:], b[:])
}

// Verify reports whether proof links leaf to root.
func Verify(proof []common.Hash, root, leaf common.Hash) bool {
	computed := leaf
	for _, p := range proof {
		computed = hashPair(computed, p)
	}
	return computed == root
}

// VerifyAddress checks an address against root.
func VerifyAddress(proof []common.Hash, root common.Hash, addr common.Address) bool {
	return Verify(proof, root, Leaf(addr))
}

// Tree is a whitelist Merkle tree. layers[0] holds the sorted leaves.
type Tree struct {
	layers [][]common.Hash
}

// NewTree builds a tree over the unique addresses given.
func NewTree(addrs []common.Address) *Tree {
	seen := make(map[common.Hash]bool, len(addrs))
	var leaves []common.Hash
	for _, a := range addrs {
		l := Leaf(a)
		if seen[l] {
			continue
		}
		seen[l] = true
		leaves = append(leaves, l)
	}
	sort.Slice(leaves, func(i, j int) bool {
		return bytes.Compare(leaves[i][:], leaves[j][:]) < 0
	})

	t := &Tree{layers: [][]common.Hash{leaves}}
	for level := leaves; len(level) > 1; {
		next := make([]common.Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, level[i])
				continue
			}
			next = append(next, hashPair(level[i], level[i+1]))
		}
		t.layers = append(t.layers, next)
		level = next
	}
	return t
}

// Root returns the tree root, or the zero hash for an empty tree.
func (t *Tree) Root() common.Hash {
	top := t.layers[len(t.layers)-1]
	if len(top) == 0 {
		return common.Hash{}
	}
	return top[0]
}

// Len returns the number of leaves.
func (t *Tree) Len() int {
	return len(t.layers[0])
}

// Proof returns the sibling path for addr.
func (t *Tree) Proof(addr common.Address) ([]common.Hash, error) {
	leaf := Leaf(addr)
	idx := -1
	for i, l := range t.layers[0] {
		if l == leaf {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrNotInTree
	}

	var path []common.Hash
	for _, level := range t.layers[:len(t.layers)-1] {
		sibling := idx ^ 1
		if sibling < len(level) {
			path = append(path, level[sibling])
		}
		idx /= 2
	}
	return path, nil
}

// ParseHash decodes a 32-byte hex hash, with or without the 0x prefix.
func ParseHash(s string) (common.Hash, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		s = "0x" + s
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, err
	}
	if len(b) != common.HashLength {
		return common.Hash{}, fmt.Errorf("want %d bytes, got %d", common.HashLength, len(b))
	}
	return common.BytesToHash(b), nil
}

// ParseProof decodes a list of hex sibling hashes.
func ParseProof(ss []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(ss))
	for i, s := range ss {
		h, err := ParseHash(s)
		if err != nil {
			return nil, fmt.Errorf("proof[%d]: %w", i, err)
		}
		out = append(out, h)
	}
	return out, nil
}
