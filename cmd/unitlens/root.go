package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	config "unitlens/configs"
	"unitlens/pkg/executor/runner"
	"unitlens/pkg/logger"
	"unitlens/pkg/systemd"
)

// app carries state shared by every subcommand once flags are parsed.
type app struct {
	cfgFile  string
	logLevel string

	cfg *config.Config
	log *zap.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "unitlens",
		Short: "Read-only HTTP bridge to systemctl and journalctl",
		Long: `unitlens exposes unit status, the unit summary and unit journals of the
local service manager over HTTP, MCP, or directly on the command line.
Commands are run without a shell; their output is relayed verbatim.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = logger.Sync()
		},
	}

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "YAML config file (default $"+config.EnvConfigFile+")")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level override (debug, info, warn, error)")

	root.AddCommand(
		newServeCmd(a),
		newSummaryCmd(a),
		newStatusCmd(a),
		newLogsCmd(a),
		newMCPCmd(a),
		newAgentsCmd(a),
		newKeysCmd(a),
		newTokenCmd(a),
	)
	return root
}

func (a *app) init() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}

	l, err := logger.Init(logger.Config{
		Level:      cfg.LogLevel,
		Encoding:   cfg.LogEncoding,
		OutputPath: cfg.LogOutput,
		Service:    "unitlens",
	})
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = l
	return nil
}

func (a *app) inspector() *systemd.Inspector {
	commands := systemd.Commands{
		SystemctlPath:  a.cfg.SystemctlPath,
		JournalctlPath: a.cfg.JournalctlPath,
		NoPager:        a.cfg.NoPager,
	}
	return systemd.NewInspector(commands, runner.NewExecRunner(a.log, a.cfg.CommandTimeout))
}
