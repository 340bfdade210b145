package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	prune := &cobra.Command{
		Use:   "prune",
		Short: "Remove long-term memories that decayed below the floor",
		Long:  "Deletes long-term records whose effective strength stayed below the configured floor past the grace period. Critical memories are never pruned.",
		Run:   runPrune,
	}
	RootCmd.AddCommand(prune)

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete expired, unconsolidated short-term memories",
		Run:   runPurge,
	}
	RootCmd.AddCommand(purge)
}

func runPrune(cmd *cobra.Command, args []string) {
	e, s, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer s.Close()

	n, err := e.Prune(cmd.Context())
	if err != nil {
		exitErr("prune", err)
	}
	fmt.Printf("pruned %d long-term memories\n", n)
}

func runPurge(cmd *cobra.Command, args []string) {
	e, s, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer s.Close()

	n, err := e.PurgeExpired(cmd.Context())
	if err != nil {
		exitErr("purge", err)
	}
	fmt.Printf("purged %d expired short-term memories\n", n)
}
