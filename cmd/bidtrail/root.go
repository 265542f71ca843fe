package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/aretw0/bidtrail/internal/config"
	"github.com/aretw0/bidtrail/internal/platform"
)

// app carries the state shared by every command of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	verbose bool
	output  string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{v: config.New()}

	rootCmd := &cobra.Command{
		Use:   "bidtrail",
		Short: "An append-only procurement ledger with deterministic replay",
		Long: `bidtrail records every document, status change and event of a procurement
as an immutable record on a ledger, and rebuilds the current status, document
catalog, phase summary and timeline from those records on every read.

The ledger is selected by URI: memory://, fs:///dir, sqlite:///file.db,
redis://host:6379/0 or http(s)://user:pass@node:port. Without --ledger the
nearest .bidtrail directory is used.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(a.v, a.cfgFile)
			if err != nil {
				return err
			}
			if _, err := parseOutputFormat(a.output); err != nil {
				return err
			}
			a.cfg = cfg
			a.logger = cfg.NewLogger(cmd.ErrOrStderr(), a.verbose)
			slog.SetDefault(a.logger)
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "Config file (YAML)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose logging")
	pf.StringVarP(&a.output, "output", "o", "table", "Output format: table, json, yaml")
	pf.String("ledger", "", "Ledger URI")
	pf.String("codec", "json", "Payload codec: json, cbor")
	pf.Bool("read-only", false, "Reject every write")
	_ = a.v.BindPFlag("ledger.uri", pf.Lookup("ledger"))
	_ = a.v.BindPFlag("ledger.codec", pf.Lookup("codec"))
	_ = a.v.BindPFlag("ledger.read_only", pf.Lookup("read-only"))

	rootCmd.AddCommand(
		newInitCmd(a),
		newUploadCmd(a),
		newAdvanceCmd(a),
		newEventCmd(a),
		newShowCmd(a),
		newTimelineCmd(a),
		newNextCmd(a),
		newListCmd(a),
		newRecordsCmd(a),
		newKeyCmd(a),
		newStagesCmd(a),
		newWatchCmd(a),
		newServeCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// uri returns the configured ledger, or the nearest file ledger.
func (a *app) uri() (string, error) {
	if a.cfg.Ledger.URI != "" {
		return a.cfg.Ledger.URI, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return platform.DefaultURI(wd), nil
}

// engine opens the configured ledger. Only init may create a file ledger.
func (a *app) engine(ctx context.Context, create bool) (*platform.Engine, error) {
	uri, err := a.uri()
	if err != nil {
		return nil, err
	}
	opts := append(a.cfg.PlatformOptions(a.logger), platform.WithMustExist(!create))
	return platform.New(ctx, uri, opts...)
}
