package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/CZERTAINLY/poolsvc/internal/log"
	"github.com/CZERTAINLY/poolsvc/internal/model"
	"github.com/CZERTAINLY/poolsvc/internal/service"
	"github.com/CZERTAINLY/poolsvc/internal/unit"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const configEnv = "POOLSVCCONFIG"

var (
	configPath string // actual config file used (if loaded)
	config     model.Config

	flagConfigFilePath string // value of --config flag
	flagVerbose        bool   // value of --verbose flag
	flagThreads        int    // value of --threads flag
	flagTimeout        int    // value of --timeout flag, in seconds
)

func main() {
	// root flags
	bindFlags(rootCmd.PersistentFlags())

	// never print messages
	rootCmd.SilenceErrors = true

	// parse the config, setup logging
	rootCmd.PersistentPreRunE = initPoolsvc

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)

	ctx, stop := interruptContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		slog.Error("poolsvc failed", "error", err)
		var perr *unit.PanicError
		if errors.As(err, &perr) {
			slog.Debug("failure stack", "unit", perr.Unit, "stack", string(perr.Stack))
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "poolsvc",
	Short:        "Worker pool with a poison pill shutdown, runs until interrupted",
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         doRun,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "run starts the watcher, workers, failer and monitor and stops them on ^C",
	Args:  cobra.NoArgs,
	RunE:  doRun,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "version provide version of a poolsvc",
	Run: func(cmd *cobra.Command, args []string) {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			fmt.Println("poolsvc: version info not available")
			return
		}

		if configPath != "" {
			fmt.Printf("config:  %s\n", configPath)
		}
		fmt.Printf("poolsvc: %s\n", info.Main.Version)
		fmt.Printf("go:      %s\n", info.GoVersion)
		for _, s := range info.Settings {
			switch s.Key {
			case "vcs.revision":
				fmt.Printf("commit:  %s\n", s.Value)
			case "vcs.time":
				fmt.Printf("date:    %s\n", s.Value)
			case "vcs.modified":
				fmt.Printf("dirty:   %s\n", s.Value)
			}
		}
		fmt.Println()
	},
}

// interruptContext is canceled by the first of sigs. The signal handling
// is reset right away, so a repeated ^C during a slow shutdown kills the
// process.
func interruptContext(parent context.Context, sigs ...os.Signal) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, sigs...)
	context.AfterFunc(ctx, stop)
	return ctx, stop
}

func bindFlags(flags *pflag.FlagSet) {
	flags.StringVar(&flagConfigFilePath, "config", "", "YAML config file to load, "+configEnv+" takes a precedence")
	flags.BoolVar(&flagVerbose, "verbose", false, "verbose logging")
	flags.IntVarP(&flagThreads, "threads", "n", model.DefaultThreads, "number of workers to run")
	flags.IntVarP(&flagTimeout, "timeout", "t", int(model.DefaultTimeout/time.Second), "seconds after which the failer fails")
}

func doRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	attrs := slog.Group("poolsvc",
		slog.String("cmd", "run"),
		slog.Int("pid", os.Getpid()),
	)
	ctx = log.ContextAttrs(ctx, attrs)

	svc, err := service.New(config)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return err
	}
	slog.InfoContext(ctx, "let's roll! hit ^C to exit")

	select {
	case <-ctx.Done():
	case <-svc.Failed():
		slog.WarnContext(ctx, "a unit has failed, waiting for ^C to shut down")
		<-ctx.Done()
	}
	slog.InfoContext(ctx, "interrupted", "cause", context.Cause(ctx))
	return svc.Stop(context.WithoutCancel(ctx))
}

func initPoolsvc(cmd *cobra.Command, _ []string) error {
	var err error
	configPath, config, err = loadConfig(cmd.Flags(), lookupEnv(configEnv))
	if err != nil {
		return err
	}

	slog.SetDefault(log.New(os.Stderr, config.Verbose))
	slog.Debug("poolsvc run", "configPath", configPath)
	slog.Debug("poolsvc run", "config", config)
	return nil
}

// loadConfig layers defaults, the config file, POOLSVC_* variables and
// command line flags, the later wins. envConfig is the value of
// POOLSVCCONFIG, if set.
func loadConfig(flags *pflag.FlagSet, envConfig string) (string, model.Config, error) {
	path := flagConfigFilePath
	if envConfig != "" {
		path = envConfig
	}

	cfg := model.DefaultConfig()
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return "", model.Config{}, fmt.Errorf("opening config file: %w", err)
		}
		defer func() {
			_ = f.Close()
		}()
		cfg, err = model.LoadConfig(f)
		if err != nil {
			return "", model.Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	cfg, err := model.FromEnv(cfg, nil)
	if err != nil {
		return "", model.Config{}, err
	}

	// flags have a precedence over config file and environment
	if flags.Changed("threads") {
		cfg.Threads = flagThreads
	}
	if flags.Changed("timeout") {
		cfg.Timeout = time.Duration(flagTimeout) * time.Second
	}
	if flags.Changed("verbose") {
		cfg.Verbose = flagVerbose
	}

	if err := cfg.Validate(); err != nil {
		return "", model.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return path, cfg, nil
}

func lookupEnv(key string) string {
	v, _ := os.LookupEnv(key)
	return v
}
