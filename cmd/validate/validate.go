package validate

import (
	"fmt"

	"github.com/spf13/cobra"

	_ "github.com/sctg-development/photoacoustic-go/internal/actions"
	_ "github.com/sctg-development/photoacoustic-go/internal/computing"
	"github.com/sctg-development/photoacoustic-go/internal/conf"
	"github.com/sctg-development/photoacoustic-go/internal/pastate"
	"github.com/sctg-development/photoacoustic-go/internal/procgraph"
)

// Command creates a new cobra.Command that loads a declarative graph
// configuration and builds it against a throwaway state, reporting any
// topology or parameter error without starting any service.
func Command(settings *conf.Settings) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a declarative graph configuration without starting a service",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				path = settings.Graph.ConfigPath
			}

			cfg, err := procgraph.LoadConfigFile(path)
			if err != nil {
				return fmt.Errorf("loading graph config %q: %w", path, err)
			}

			g, err := procgraph.FromConfig(cfg, pastate.New())
			if err != nil {
				return fmt.Errorf("building graph %q: %w", path, err)
			}

			view := g.ToSerializableView()
			fmt.Printf("graph %q is valid: %d node(s), output %q\n", view.ID, len(view.Nodes), view.OutputID)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "config", "", "path to the graph configuration document (defaults to graph.configpath)")

	return cmd
}
