package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/lazypower/erosion/internal/proof"
)

var whitelistCmd = &cobra.Command{
	Use:   "whitelist",
	Short: "Build admission whitelist roots and proofs",
}

var whitelistRootCmd = &cobra.Command{
	Use:   "root <file>",
	Short: "Print the Merkle root of a whitelist file (one address per line)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addrs, err := readWhitelist(args[0])
		if err != nil {
			return err
		}
		tree := proof.NewTree(addrs)
		fmt.Fprintf(cmd.OutOrStdout(), "%s\n", tree.Root().Hex())
		fmt.Fprintf(cmd.ErrOrStderr(), "%d addresses\n", tree.Len())
		return nil
	},
}

var whitelistProofCmd = &cobra.Command{
	Use:   "proof <file> <address>",
	Short: "Print the admission proof of an address as a JSON array",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		p, err := proofFromFile(args[0], addr)
		if err != nil {
			return err
		}
		b, err := json.Marshal(hexes(p))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return nil
	},
}

func init() {
	whitelistCmd.AddCommand(whitelistRootCmd)
	whitelistCmd.AddCommand(whitelistProofCmd)
}

// readWhitelist reads one address per line. Blank lines and lines starting
// with # are skipped.
func readWhitelist(path string) ([]common.Address, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open whitelist: %w", err)
	}
	defer f.Close()

	var out []common.Address
	sc := bufio.NewScanner(f)
	line := 0
	for sc.Scan() {
		line++
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		a, err := parseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		out = append(out, a)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read whitelist: %w", err)
	}
	return out, nil
}

func proofFromFile(path string, addr common.Address) ([]common.Hash, error) {
	addrs, err := readWhitelist(path)
	if err != nil {
		return nil, err
	}
	p, err := proof.NewTree(addrs).Proof(addr)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", addr.Hex(), err)
	}
	return p, nil
}

func hexes(hs []common.Hash) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.Hex()
	}
	return out
}

func parseAddr(s string) (common.Address, error) {
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("invalid address %q", s)
	}
	return common.HexToAddress(s), nil
}
