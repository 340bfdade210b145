package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/quillon/agent-memory/internal/model"
)

func init() {
	working := &cobra.Command{
		Use:   "working",
		Short: "Inspect and mutate per-session working memory",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Show a session's working memory state",
		Run:   runWorkingShow,
	}
	addSessionFlags(show)
	working.AddCommand(show)

	insert := &cobra.Command{
		Use:   "insert [content]",
		Short: "Insert an item (evicts the weakest when over capacity)",
		Args:  cobra.MinimumNArgs(1),
		Run:   runWorkingInsert,
	}
	addSessionFlags(insert)
	insert.Flags().StringP("type", "t", "context", "Item type: concept, entity, task, preference, context")
	insert.Flags().String("source", "", "Item source")
	working.AddCommand(insert)

	access := &cobra.Command{
		Use:   "access [item-id]",
		Short: "Reset an item's activation to 1.0",
		Args:  cobra.ExactArgs(1),
		Run:   runWorkingAccess,
	}
	addSessionFlags(access)
	working.AddCommand(access)

	focus := &cobra.Command{
		Use:   "focus [item-id]",
		Short: "Mark the session's focus item",
		Args:  cobra.ExactArgs(1),
		Run:   runWorkingFocus,
	}
	addSessionFlags(focus)
	working.AddCommand(focus)

	RootCmd.AddCommand(working)
}

func addSessionFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.Flags().StringP("session", "s", "", "Session id (required)")
	cmd.MarkFlagRequired("user")
	cmd.MarkFlagRequired("session")
}

func sessionArgs(cmd *cobra.Command) (string, string) {
	user, _ := cmd.Flags().GetString("user")
	session, _ := cmd.Flags().GetString("session")
	return user, session
}

func runWorkingShow(cmd *cobra.Command, args []string) {
	user, session := sessionArgs(cmd)

	_, s, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer s.Close()

	state, err := s.GetWorkingState(cmd.Context(), user, session)
	if err != nil {
		exitErr("working show", err)
	}
	b, _ := json.MarshalIndent(state, "", "  ")
	fmt.Println(string(b))
}

func runWorkingInsert(cmd *cobra.Command, args []string) {
	user, session := sessionArgs(cmd)
	itemType, _ := cmd.Flags().GetString("type")
	source, _ := cmd.Flags().GetString("source")

	e, s, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer s.Close()

	item := &model.WorkingMemoryItem{
		Content: strings.Join(args, " "),
		Type:    model.WorkingItemType(itemType),
		Source:  source,
	}
	if err := e.Insert(cmd.Context(), user, session, item); err != nil {
		exitErr("working insert", err)
	}
	b, _ := json.Marshal(item)
	fmt.Println(string(b))
}

func runWorkingAccess(cmd *cobra.Command, args []string) {
	user, session := sessionArgs(cmd)

	e, s, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer s.Close()

	if err := e.Access(cmd.Context(), user, session, args[0]); err != nil {
		exitErr("working access", err)
	}
	fmt.Printf("accessed %s\n", args[0])
}

func runWorkingFocus(cmd *cobra.Command, args []string) {
	user, session := sessionArgs(cmd)

	e, s, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer s.Close()

	if err := e.SetFocus(cmd.Context(), user, session, args[0]); err != nil {
		exitErr("working focus", err)
	}
	fmt.Printf("focus set to %s\n", args[0])
}
