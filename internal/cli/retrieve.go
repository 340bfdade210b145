package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quillon/agent-memory/internal/retrieve"
)

func init() {
	cmd := &cobra.Command{
		Use:   "retrieve [query]",
		Short: "Retrieve ranked context for a query",
		Long:  "Score working, short-term, long-term and associated memories into a bounded context set.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runRetrieve,
	}

	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.Flags().StringP("session", "s", "", "Session id")
	cmd.Flags().StringToString("entity", nil, "Entity context, e.g. --entity vendor=v-7")
	cmd.Flags().IntP("limit", "l", 0, "Max results (default from config)")

	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runRetrieve(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	session, _ := cmd.Flags().GetString("session")
	entities, _ := cmd.Flags().GetStringToString("entity")
	limit, _ := cmd.Flags().GetInt("limit")

	e, s, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer s.Close()

	result, err := e.Retrieve(cmd.Context(), retrieve.Params{
		UserID:        user,
		SessionID:     session,
		Query:         strings.Join(args, " "),
		EntityContext: entities,
		Limit:         limit,
	})
	if err != nil {
		exitErr("retrieve", err)
	}

	b, _ := json.MarshalIndent(result, "", "  ")
	fmt.Println(string(b))
}
