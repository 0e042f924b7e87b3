// Command ontoreason classifies extracted entities against an ontology and
// serves the reasoner over HTTP or MCP.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cognicore/ontoreason/internal/logging"
	"github.com/cognicore/ontoreason/pkg/ontoreason"
	"github.com/cognicore/ontoreason/pkg/ontoreason/config"
)

const version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// app carries the persistent flags shared by every subcommand.
type app struct {
	configPath   string
	ontologyPath string
	logLevel     string
	journalDSN   string
}

func rootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:           "ontoreason",
		Short:         "Ontology-driven entity classification",
		SilenceUsage:  true,
		SilenceErrors: true,
		Long: `ontoreason loads an ontology into a fact graph, closes it under the
ontology's inference rules and classifies extracted entities against it.`,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.configPath, "config", "c", "", "Config file path (YAML)")
	pf.StringVar(&a.ontologyPath, "ontology", "", "Ontology definition (YAML); defaults to the embedded ontology")
	pf.StringVar(&a.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&a.journalDSN, "journal", "", "Journal DSN (sqlite path or redis:// URL)")

	cmd.AddCommand(
		serveCmd(a),
		mcpCmd(a),
		enrichCmd(a),
		queryCmd(a),
		checkCmd(a),
		statsCmd(a),
		exportCmd(a),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "ontoreason version %s\n", version)
			},
		},
	)
	return cmd
}

// loadConfig applies, in order: defaults, config file, environment, flags.
func (a *app) loadConfig() (*config.Config, error) {
	cfg := config.Default()
	if a.configPath != "" {
		var err error
		if cfg, err = config.Load(a.configPath); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(nil)

	if a.ontologyPath != "" {
		cfg.Ontology.Path = a.ontologyPath
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.journalDSN != "" {
		cfg.SetJournalDSN(a.journalDSN)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads the config, builds the logger and initializes a Reasoner.
func (a *app) setup(ctx context.Context) (*config.Config, *zap.Logger, *ontoreason.Reasoner, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, err := logging.New(cfg.Log.Level)
	if err != nil {
		return nil, nil, nil, err
	}
	r, err := ontoreason.FromConfig(ctx, cfg, logger)
	if err != nil {
		logger.Sync()
		return nil, nil, nil, err
	}
	return cfg, logger, r, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
