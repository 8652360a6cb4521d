// root.go viper root command code
package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sctg-development/photoacoustic-go/cmd/serve"
	"github.com/sctg-development/photoacoustic-go/cmd/validate"
	"github.com/sctg-development/photoacoustic-go/cmd/version"
	"github.com/sctg-development/photoacoustic-go/internal/conf"
)

// RootCommand creates and returns the root command
func RootCommand(settings *conf.Settings) *cobra.Command {
	// Create the root command
	rootCmd := &cobra.Command{
		Use:   "photoacoustic-go",
		Short: "Photoacoustic gas analyzer signal-processing core",
	}

	// Set up the global flags for the root command.
	err := setupFlags(rootCmd, settings)
	if err != nil {
		log.Printf("error setting up flags: %v\n", err)
	}

	// Add sub-commands to the root command.
	serveCmd := serve.Command(settings)
	validateCmd := validate.Command(settings)
	versionCmd := version.Command()

	subcommands := []*cobra.Command{
		serveCmd,
		validateCmd,
		versionCmd,
	}

	rootCmd.AddCommand(subcommands...)

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		// Skip setup for the version command
		if cmd.Name() != versionCmd.Name() {
			if err := initialize(); err != nil {
				return fmt.Errorf("error initializing: %w", err)
			}
		}

		return nil
	}

	return rootCmd
}

// initialize is called before any subcommands are run, but after the context is ready
// This function is responsible for setting up configurations, ensuring the environment is ready, etc.
func initialize() error {
	return nil
}

// setupFlags defines flags that are global to the command line interface
func setupFlags(rootCmd *cobra.Command, settings *conf.Settings) error {
	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", viper.GetBool("debug"), "Enable debug output")
	rootCmd.PersistentFlags().StringVar(&settings.Graph.ConfigPath, "graph", viper.GetString("graph.configpath"), "Path to the declarative graph configuration document")
	rootCmd.PersistentFlags().StringVar(&settings.WebServer.Listen, "listen", viper.GetString("webserver.listen"), "Address:port the web API and live websocket listen on")

	// Bind flags to the viper settings
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}
