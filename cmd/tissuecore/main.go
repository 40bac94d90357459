// Command tissuecore runs the sample-tracking service and its admin tooling.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"tissuecore/internal/config"
	"tissuecore/internal/logging"
)

// app carries what PersistentPreRunE loads for the subcommands.
type app struct {
	envFiles []string
	cfg      *config.Config
	logger   *zap.SugaredLogger
	closeLog func()
}

func newRootCommand() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:               "tissuecore",
		Short:             "tissuecore",
		Long:              "Tissuecore - laboratory sample tracking service",
		SilenceUsage:      true,
		PersistentPreRunE: a.init,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
		PersistentPostRunE: a.close,
	}
	root.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "dotenv files loaded before the environment")
	root.AddCommand(newServeCommand(a))
	root.AddCommand(newSeedCommand(a))
	root.AddCommand(newRefdataCommand(a))
	return root
}

func (a *app) init(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(a.envFiles...)
	if err != nil {
		return err
	}
	logger, closeLog, err := logging.New(logging.Options{
		Path:   cfg.Log.Path,
		Level:  cfg.Log.Level,
		Fields: map[string]string{"service": cfg.Server.ServiceName},
	})
	if err != nil {
		return err
	}
	a.cfg, a.logger, a.closeLog = cfg, logger, closeLog
	return nil
}

func (a *app) close(_ *cobra.Command, _ []string) error {
	if a.closeLog != nil {
		a.closeLog()
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
