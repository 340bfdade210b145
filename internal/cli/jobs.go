package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List consolidation jobs for a session",
		Run:   runJobs,
	}

	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.Flags().StringP("session", "s", "", "Session id (required)")
	cmd.Flags().IntP("limit", "l", 20, "Max jobs")

	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("session")

	RootCmd.AddCommand(cmd)
}

func runJobs(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	session, _ := cmd.Flags().GetString("session")
	limit, _ := cmd.Flags().GetInt("limit")

	_, s, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer s.Close()

	jobs, err := s.ListJobs(cmd.Context(), user, session, limit)
	if err != nil {
		exitErr("jobs", err)
	}
	b, _ := json.MarshalIndent(jobs, "", "  ")
	fmt.Println(string(b))
}
