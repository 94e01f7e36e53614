package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/lazypower/erosion/internal/client"
)

var generationCmd = &cobra.Command{
	Use:   "generation",
	Short: "Inspect or advance the generation registry",
}

var (
	genCaller    string
	genEpoch     uint32
	genCapacity  uint32
	genDecayRate uint32
	genBaseLoss  uint32
	genPacked    string
	genProofRoot string
)

var generationSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Start a new generation (authorized callers only)",
	RunE: func(cmd *cobra.Command, args []string) error {
		if _, err := parseAddr(genCaller); err != nil {
			return fmt.Errorf("--caller: %w", err)
		}
		req := client.GenerationRequest{
			Caller: genCaller,
			Generation: client.Generation{
				Epoch:        genEpoch,
				Capacity:     genCapacity,
				DecayRate:    genDecayRate,
				BaseLossRate: genBaseLoss,
				Packed:       genPacked,
				ProofRoot:    genProofRoot,
			},
		}
		opID, err := client.NewClient().SetGeneration(req)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "generation %d set (op %s)\n", genEpoch, opID)
		return nil
	},
}

var generationShowCmd = &cobra.Command{
	Use:   "show [epoch]",
	Short: "Show one generation, or all of them",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.NewClient()
		out := cmd.OutOrStdout()
		if len(args) == 1 {
			epoch, err := strconv.ParseUint(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("invalid epoch %q", args[0])
			}
			g, err := c.Generation(uint32(epoch))
			if err != nil {
				return err
			}
			printGeneration(out, g)
			return nil
		}

		gens, err := c.Generations()
		if err != nil {
			return err
		}
		for _, g := range gens {
			printGeneration(out, g)
		}
		return nil
	},
}

func printGeneration(w io.Writer, g client.Generation) {
	fmt.Fprintf(w, "epoch %d\n", g.Epoch)
	fmt.Fprintf(w, "  capacity:       %d\n", g.Capacity)
	fmt.Fprintf(w, "  decay rate:     %ds per unit\n", g.DecayRate)
	fmt.Fprintf(w, "  base loss rate: %d\n", g.BaseLossRate)
	fmt.Fprintf(w, "  packed:         %s\n", g.Packed)
	fmt.Fprintf(w, "  proof root:     %s\n", g.ProofRoot)
}

func init() {
	f := generationSetCmd.Flags()
	f.StringVar(&genCaller, "caller", "", "address authorizing the change")
	f.Uint32Var(&genEpoch, "epoch", 0, "new epoch, strictly greater than the current one")
	f.Uint32Var(&genCapacity, "capacity", 0, "birth endowment")
	f.Uint32Var(&genDecayRate, "decay-rate", 0, "seconds per unit of decay (non-zero)")
	f.Uint32Var(&genBaseLoss, "base-loss-rate", 0, "flat cost added to every shard")
	f.StringVar(&genPacked, "packed", "", "96-bit packed capacity|decayRate|baseLossRate hex, overrides the three fields")
	f.StringVar(&genProofRoot, "proof-root", "", "admission whitelist root")
	generationSetCmd.MarkFlagRequired("caller")
	generationSetCmd.MarkFlagRequired("epoch")

	generationCmd.AddCommand(generationSetCmd)
	generationCmd.AddCommand(generationShowCmd)
}
