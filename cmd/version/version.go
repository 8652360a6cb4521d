package version

import (
	"fmt"

	"github.com/spf13/cobra"
)

// buildVersion is set by the linker at release build time.
var buildVersion = "dev"

// Command creates a new cobra.Command to print the analyzer's version.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the photoacoustic-go version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("photoacoustic-go", buildVersion)
			return nil
		},
	}

	return cmd
}
