package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Promote short-term memories to long-term",
		Long:  "Run a consolidation job for a session: cluster eligible short-term records, merge into long-term knowledge, link related memories.",
		Run:   runConsolidate,
	}

	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.Flags().StringP("session", "s", "", "Session id (required)")

	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("session")

	RootCmd.AddCommand(cmd)
}

func runConsolidate(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	session, _ := cmd.Flags().GetString("session")

	e, s, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer s.Close()

	job, err := e.TriggerConsolidation(cmd.Context(), user, session)
	if err != nil {
		exitErr("consolidate", err)
	}

	b, _ := json.MarshalIndent(job, "", "  ")
	fmt.Println(string(b))
}
