// Package cli implements the camera command line client.
package cli

import (
	"errors"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/bjhnbjh/vibecoding-camera/internal/client"
)

// app holds state shared by all subcommands of one invocation.
type app struct {
	configPath string
	server     string
	token      string
	noColor    bool

	file FileConfig
	out  io.Writer
}

// NewRootCommand builds the camera command tree.
func NewRootCommand(version string) *cobra.Command {
	a := &app{out: os.Stdout}

	root := &cobra.Command{
		Use:   "camera",
		Short: "Analyze meal photos from the command line",
		Long: `camera uploads meal photos to the analysis service and reports the
detected foods, calories and macronutrients once the analysis completes.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.out = cmd.OutOrStdout()
			if a.noColor {
				color.NoColor = true
			}
			file, err := LoadFileConfig(a.configPath)
			if err != nil {
				return err
			}
			a.file = file
			a.server, a.token = resolve(a.server, a.token, file)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&a.configPath, "config", DefaultConfigPath(), "config file")
	root.PersistentFlags().StringVar(&a.server, "server", "", "API server URL (env "+EnvServer+")")
	root.PersistentFlags().StringVar(&a.token, "token", "", "bearer token (env "+EnvToken+")")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newAnalyzeCommand(a),
		newStatusCommand(a),
		newWatchCommand(a),
		newUsageCommand(a),
		newSummaryCommand(a),
		newTokenCommand(a),
	)
	return root
}

// client returns an API client for the resolved server and token.
func (a *app) client() (*client.Client, error) {
	if a.token == "" {
		return nil, errors.New("no token configured: run 'camera token --save' or set " + EnvToken)
	}
	return client.New(a.server, a.token)
}
