package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	reinforce := &cobra.Command{
		Use:   "reinforce [memory-id]",
		Short: "Reconfirm a long-term memory",
		Long:  "Increment the reinforcement count and reset the decay clock.",
		Args:  cobra.ExactArgs(1),
		Run:   runReinforce,
	}
	RootCmd.AddCommand(reinforce)

	verify := &cobra.Command{
		Use:   "verify [memory-id]",
		Short: "Mark a long-term memory user-confirmed",
		Args:  cobra.ExactArgs(1),
		Run:   runVerify,
	}
	RootCmd.AddCommand(verify)

	contradict := &cobra.Command{
		Use:   "contradict [memory-id] [memory-id]",
		Short: "Record a contradiction between two memories",
		Long:  "Links both memories with contradicts edges. Neither is deleted; the ranker discounts both.",
		Args:  cobra.ExactArgs(2),
		Run:   runContradict,
	}
	RootCmd.AddCommand(contradict)
}

func runReinforce(cmd *cobra.Command, args []string) {
	e, s, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer s.Close()

	if err := e.Reinforce(cmd.Context(), args[0]); err != nil {
		exitErr("reinforce", err)
	}
	fmt.Printf("reinforced %s\n", args[0])
}

func runVerify(cmd *cobra.Command, args []string) {
	e, s, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer s.Close()

	if err := e.Verify(cmd.Context(), args[0]); err != nil {
		exitErr("verify", err)
	}
	fmt.Printf("verified %s\n", args[0])
}

func runContradict(cmd *cobra.Command, args []string) {
	e, s, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer s.Close()

	if err := e.Contradict(cmd.Context(), args[0], args[1]); err != nil {
		exitErr("contradict", err)
	}
	fmt.Printf("linked %s <-> %s as contradictory\n", args[0], args[1])
}
