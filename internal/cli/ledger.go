package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/cobra"

	"github.com/lazypower/erosion/internal/client"
	"github.com/lazypower/erosion/internal/engine"
	"github.com/lazypower/erosion/internal/proof"
)

// --- claim command ---

var (
	claimProof     string
	claimWhitelist string
)

var claimCmd = &cobra.Command{
	Use:   "claim <address>",
	Short: "Claim genesis admission for a whitelisted address",
	Long:  "Claim genesis admission. Pass the proof with --proof, or let it be built from --whitelist.",
	Args:  cobra.ExactArgs(1),
	RunE:  runClaim,
}

func runClaim(cmd *cobra.Command, args []string) error {
	addr, err := parseAddr(args[0])
	if err != nil {
		return err
	}

	var p []common.Hash
	switch {
	case claimWhitelist != "":
		p, err = proofFromFile(claimWhitelist, addr)
	case claimProof != "":
		p, err = proof.ParseProof(strings.Split(claimProof, ","))
	}
	if err != nil {
		return err
	}

	r, err := client.NewClient().Claim(addr, p)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s admitted in epoch %d with %d knowledge (op %s)\n", r.Address, r.Epoch, r.Endowment, r.OpID)
	if r.Decay > 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "  carried decay settled: %d\n", r.Decay)
	}
	return nil
}

// --- transfer command ---

var transferSpender string

var transferCmd = &cobra.Command{
	Use:   "transfer <from> <to> <amount>",
	Short: "Transfer a shard (1) or a full exit (entire remaining balance)",
	Long: "Transfer knowledge. The amount must be 1, which admits the recipient at the auction price, " +
		"or the sender's entire remaining balance, which is free and retires the sender. " +
		"With --spender the transfer spends an allowance.",
	Args: cobra.ExactArgs(3),
	RunE: runTransfer,
}

func runTransfer(cmd *cobra.Command, args []string) error {
	from, err := parseAddr(args[0])
	if err != nil {
		return err
	}
	to, err := parseAddr(args[1])
	if err != nil {
		return err
	}
	amount, err := strconv.ParseUint(args[2], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", args[2])
	}

	c := client.NewClient()
	var rcpt engine.Receipt
	if transferSpender != "" {
		spender, err := parseAddr(transferSpender)
		if err != nil {
			return err
		}
		rcpt, err = c.TransferFrom(spender, from, to, amount)
		if err != nil {
			return err
		}
	} else {
		rcpt, err = c.Transfer(from, to, amount)
		if err != nil {
			return err
		}
	}
	printReceipt(cmd.OutOrStdout(), rcpt)
	return nil
}

func printReceipt(w io.Writer, r engine.Receipt) {
	fmt.Fprintf(w, "%s of %d: %s -> %s (op %s)\n", r.Kind, r.Amount, r.From, r.To, r.OpID)
	fmt.Fprintf(w, "  decay settled: %d\n", r.Decay)
	fmt.Fprintf(w, "  erosion paid:  %d\n", r.Cost)
	if r.Endowment > 0 {
		fmt.Fprintf(w, "  endowment:     %d\n", r.Endowment)
	}
	fmt.Fprintf(w, "  sender:        %d (%s)\n", r.SenderBalance, r.SenderState)
	fmt.Fprintf(w, "  recipient:     %d (%s)\n", r.RecipientBalance, r.RecipientState)
}

// --- approve command ---

var approveCmd = &cobra.Command{
	Use:   "approve <owner> <spender> <amount>",
	Short: "Allow spender to transfer on behalf of owner",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		spender, err := parseAddr(args[1])
		if err != nil {
			return err
		}
		amount, err := strconv.ParseUint(args[2], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid amount %q", args[2])
		}
		opID, err := client.NewClient().Approve(owner, spender, amount)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s may move %d of %s (op %s)\n", spender.Hex(), amount, owner.Hex(), opID)
		return nil
	},
}

// --- read-only commands ---

var stateEpoch uint32

var stateCmd = &cobra.Command{
	Use:   "state <address>",
	Short: "Show a member's state and last settlement (current epoch by default)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		c := client.NewClient()
		epoch := stateEpoch
		if epoch == 0 {
			info, err := c.Community()
			if err != nil {
				return err
			}
			epoch = info.CurrentEpoch
		}
		m, err := c.Member(epoch, addr)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s in epoch %d: %s\n", m.Address, m.Epoch, m.State)
		if m.LastSettled > 0 {
			fmt.Fprintf(out, "  last settled: %s\n", time.Unix(int64(m.LastSettled), 0).UTC().Format(time.RFC3339))
		}
		return nil
	},
}

var balanceCmd = &cobra.Command{
	Use:   "balance <address>",
	Short: "Show stored knowledge and pending decay",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		b, err := client.NewClient().Balance(addr)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s\n", b.Address)
		fmt.Fprintf(out, "  balance:   %d\n", b.Balance)
		fmt.Fprintf(out, "  decay:     %d\n", b.Decay)
		fmt.Fprintf(out, "  remaining: %d\n", b.Remaining)
		if b.Perished {
			fmt.Fprintln(out, "  perished: decay exceeds balance")
		}
		return nil
	},
}

var decayCmd = &cobra.Command{
	Use:   "decay <address>",
	Short: "Show knowledge decay accrued since last settlement",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		d, err := client.NewClient().Decay(addr)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), d)
		return nil
	},
}

var erosionCmd = &cobra.Command{
	Use:   "erosion [amount]",
	Short: "Quote the knowledge a shard would cost right now",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		amount := uint64(1)
		if len(args) == 1 {
			n, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q", args[0])
			}
			amount = n
		}
		cost, err := client.NewClient().Erosion(amount)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), cost)
		return nil
	},
}

var eventsLimit int

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recent ledger events",
	RunE: func(cmd *cobra.Command, args []string) error {
		events, err := client.NewClient().Events(eventsLimit)
		if err != nil {
			return err
		}
		if len(events) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No events.")
			return nil
		}
		out := cmd.OutOrStdout()
		for _, e := range events {
			ts := time.UnixMilli(e.CreatedAt).UTC().Format(time.RFC3339)
			fmt.Fprintf(out, "%d %s epoch=%d %-18s", e.ID, ts, e.Epoch, e.Kind)
			if e.From != "" {
				fmt.Fprintf(out, " from=%s", e.From)
			}
			if e.To != "" {
				fmt.Fprintf(out, " to=%s", e.To)
			}
			if e.Amount > 0 {
				fmt.Fprintf(out, " amount=%d", e.Amount)
			}
			if len(e.Detail) > 0 {
				fmt.Fprintf(out, " %s", e.Detail)
			}
			fmt.Fprintln(out)
		}
		return nil
	},
}

func init() {
	claimCmd.Flags().StringVar(&claimProof, "proof", "", "comma-separated sibling hashes")
	claimCmd.Flags().StringVar(&claimWhitelist, "whitelist", "", "whitelist file to build the proof from")
	transferCmd.Flags().StringVar(&transferSpender, "spender", "", "spend this address's allowance over <from>")
	stateCmd.Flags().Uint32Var(&stateEpoch, "epoch", 0, "epoch to inspect (default: current)")
	eventsCmd.Flags().IntVarP(&eventsLimit, "limit", "n", 20, "maximum number of events")
}
