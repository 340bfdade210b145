package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a user's long-term memories as JSON",
		Long:  "Dumps all long-term memories including provenance (consolidated_from) for audit.",
		Run:   runExport,
	}
	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.MarkFlagRequired("user")
	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")

	_, s, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer s.Close()

	memories, err := s.ExportLongTerm(cmd.Context(), user)
	if err != nil {
		exitErr("export", err)
	}
	b, _ := json.MarshalIndent(memories, "", "  ")
	fmt.Println(string(b))
}
