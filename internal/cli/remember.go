package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "remember [turn text]",
		Short: "Record a conversational turn",
		Long:  "Classify a turn and store it as short-term + working memory. Text can be a positional arg or piped via stdin.",
		Run:   runRemember,
	}

	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.Flags().StringP("session", "s", "", "Session id (minted if omitted)")
	cmd.Flags().String("enterprise", "", "Enterprise id")
	cmd.Flags().String("prior", "", "Prior turn text")
	cmd.Flags().StringToString("entity", nil, "Entity context, e.g. --entity contract=c-42")

	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runRemember(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	session, _ := cmd.Flags().GetString("session")
	enterprise, _ := cmd.Flags().GetString("enterprise")
	prior, _ := cmd.Flags().GetString("prior")
	entities, _ := cmd.Flags().GetStringToString("entity")

	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			text = string(b)
		}
	}
	if strings.TrimSpace(text) == "" {
		exitErr("remember", fmt.Errorf("turn text is required (positional arg or stdin)"))
	}

	e, s, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer s.Close()

	result := e.RecordTurn(cmd.Context(), user, enterprise, session, strings.TrimSpace(text), prior, entities)

	b, _ := json.Marshal(result)
	fmt.Println(string(b))
}
