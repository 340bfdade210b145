package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quillon/agent-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "associate",
		Short: "Create or reinforce an edge between long-term memories",
		Run:   runAssociate,
	}

	cmd.Flags().String("from", "", "Source memory id")
	cmd.Flags().String("to", "", "Target memory id")
	cmd.Flags().StringP("type", "t", "related", "Edge type: causal, contradicts, supports, related, precedes, part_of, similar")

	cmd.MarkFlagRequired("from")
	cmd.MarkFlagRequired("to")

	RootCmd.AddCommand(cmd)

	neighbors := &cobra.Command{
		Use:   "neighbors [memory-id]",
		Short: "List memories connected to one memory",
		Args:  cobra.ExactArgs(1),
		Run:   runNeighbors,
	}
	neighbors.Flags().StringP("type", "t", "", "Filter by edge type")
	neighbors.Flags().Float64("min-strength", 0, "Effective strength floor")
	RootCmd.AddCommand(neighbors)
}

func runAssociate(cmd *cobra.Command, args []string) {
	from, _ := cmd.Flags().GetString("from")
	to, _ := cmd.Flags().GetString("to")
	edgeType, _ := cmd.Flags().GetString("type")

	e, s, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer s.Close()

	if err := e.Associate(cmd.Context(), from, to, model.AssociationType(edgeType)); err != nil {
		exitErr("associate", err)
	}
	fmt.Printf("%s -[%s]-> %s\n", from, edgeType, to)
}

func runNeighbors(cmd *cobra.Command, args []string) {
	edgeType, _ := cmd.Flags().GetString("type")
	minStrength, _ := cmd.Flags().GetFloat64("min-strength")

	e, s, err := openEngine()
	if err != nil {
		exitErr("open engine", err)
	}
	defer s.Close()

	neighbors, err := e.Neighbors(cmd.Context(), args[0], model.AssociationType(edgeType), minStrength)
	if err != nil {
		exitErr("neighbors", err)
	}

	type row struct {
		ID       string  `json:"id"`
		Type     string  `json:"edge_type"`
		Strength float64 `json:"effective_strength"`
		Summary  string  `json:"summary"`
	}
	rows := make([]row, 0, len(neighbors))
	for _, n := range neighbors {
		rows = append(rows, row{
			ID:       n.Memory.ID,
			Type:     string(n.Edge.Type),
			Strength: n.EffectiveStrength,
			Summary:  n.Memory.Summary,
		})
	}
	b, _ := json.MarshalIndent(rows, "", "  ")
	fmt.Println(string(b))
}
