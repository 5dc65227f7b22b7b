package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/plugmon/internal/api"
	"codeberg.org/mutker/plugmon/internal/app"
	"codeberg.org/mutker/plugmon/internal/config"
	"codeberg.org/mutker/plugmon/internal/errors"
	"codeberg.org/mutker/plugmon/internal/logger"
	"codeberg.org/mutker/plugmon/internal/pid"
	"codeberg.org/mutker/plugmon/internal/retention"
	"codeberg.org/mutker/plugmon/internal/storage"
	"github.com/spf13/pflag"
)

const usage = `Usage: plugmon <command> [flags]

Commands:
  serve     Serve the HTTP API
  collect   Collect readings from every known device (or --device)
  prune     Delete readings by age or by device
  export    Write readings as CSV

Run "plugmon <command> --help" for command flags.
`

type command struct {
	flags func(fs *pflag.FlagSet)
	run   func(ctx context.Context, a *app.App, fs *pflag.FlagSet) error

	// pidFile makes a second run of the command against the same database
	// fail fast. Collection itself is serialized by the collector's lock.
	pidFile bool
	sinks   bool

	// quiet sends logs to stderr so stdout carries only data.
	quiet bool
}

var commands = map[string]command{
	"serve": {
		run:   serve,
		sinks: true,
	},
	"collect": {
		flags: func(fs *pflag.FlagSet) {
			fs.String("device", "", "Collect a single device instead of every known device")
		},
		run:     collect,
		pidFile: true,
		sinks:   true,
		quiet:   true,
	},
	"prune": {
		flags: func(fs *pflag.FlagSet) {
			fs.Int("days", 0, "Delete readings older than this many days")
			fs.Int("hours", 0, "Delete readings older than this many hours")
			fs.Int("minutes", 0, "Delete readings older than this many minutes")
			fs.String("device", "", "Delete every reading of this device instead")
			fs.Bool("yes", false, "Confirm the deletion")
		},
		run: prune,
	},
	"export": {
		flags: func(fs *pflag.FlagSet) {
			fs.String("device", storage.AllDevices, "Device to export, or \"all\"")
			fs.Int("hours", 0, "Only export the last N hours (0 exports everything)")
			fs.StringP("output", "o", "-", "Output file, \"-\" for stdout")
		},
		run:   export,
		quiet: true,
	},
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	name := args[0]
	cmd, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", name, usage)
		return 2
	}

	fs := pflag.NewFlagSet("plugmon "+name, pflag.ContinueOnError)
	if cmd.flags != nil {
		cmd.flags(fs)
	}

	cfg, err := config.Load(fs, args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	if cmd.quiet {
		logger.SetConsoleOutput(os.Stderr)
	}
	if err := logger.Init(logger.LogLevel(cfg.LogLevel), logger.IsService()); err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		return 1
	}
	logger.Debug().Str("command", name).Msg("Config loaded")

	var opts []app.Option
	if !cmd.sinks {
		opts = append(opts, app.WithoutSinks())
	}

	a, err := app.New(cfg, opts...)
	if err != nil {
		logger.ErrorWithCode(err).Msg("Failed to initialize")
		return 1
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.ErrorWithCode(err).Msg("Failed to shut down cleanly")
		}
	}()

	if cmd.pidFile {
		pidPath := pid.PathFor(cfg.Database)
		if err := pid.Write(pidPath); err != nil {
			logger.ErrorWithCode(err).Msg("Failed to write PID file")
			return 1
		}
		defer func() {
			if err := pid.Remove(pidPath); err != nil {
				logger.ErrorWithCode(err).Msg("Failed to remove PID file")
			}
		}()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := cmd.run(ctx, a, fs); err != nil {
		logger.ErrorWithCode(err).Str("command", name).Msg("Command failed")
		return 1
	}

	return 0
}

func serve(ctx context.Context, a *app.App, _ *pflag.FlagSet) error {
	return api.New(a).ListenAndServe(ctx, a.Config.HTTP.Addr)
}

func collect(ctx context.Context, a *app.App, fs *pflag.FlagSet) error {
	device, _ := fs.GetString("device")
	if device != "" {
		reading, err := a.Collector.CollectOne(ctx, device)
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, reading)
	}

	result, err := a.Collector.CollectAll(ctx)
	if err != nil {
		return err
	}
	if err := printJSON(os.Stdout, result); err != nil {
		return err
	}

	if result.SuccessCount == 0 && result.Total > 0 {
		return errors.New().WithMessage(errors.ErrNoData, "no device returned a reading")
	}
	return nil
}

func prune(ctx context.Context, a *app.App, fs *pflag.FlagSet) error {
	confirm, _ := fs.GetBool("yes")
	device, _ := fs.GetString("device")

	if device != "" {
		deleted, err := a.Retention.DeleteByDevice(ctx, device, confirm)
		if err != nil {
			return err
		}
		logger.Info().Str("device_id", device).Int64("deleted_records", deleted).Msg("Pruned device")
		return nil
	}

	var cutoff retention.Cutoff
	cutoff.Days, _ = fs.GetInt("days")
	cutoff.Hours, _ = fs.GetInt("hours")
	cutoff.Minutes, _ = fs.GetInt("minutes")

	deleted, err := a.Retention.DeleteOlderThan(ctx, cutoff, confirm)
	if err != nil {
		return err
	}
	logger.Info().
		Int("cutoff_minutes", cutoff.TotalMinutes()).
		Int64("deleted_records", deleted).
		Msg("Pruned old readings")
	return nil
}

func export(ctx context.Context, a *app.App, fs *pflag.FlagSet) error {
	errFactory := errors.New()

	device, _ := fs.GetString("device")
	hours, _ := fs.GetInt("hours")
	output, _ := fs.GetString("output")

	var w io.Writer = os.Stdout
	if output != "-" {
		f, err := os.Create(output)
		if err != nil {
			return errFactory.Wrap(errors.ErrInvalidArgument, err)
		}
		defer f.Close()
		w = f
	}

	rows, err := a.Store.ExportCSV(ctx, w, device, hours)
	if err != nil {
		return err
	}

	logger.Info().Str("device_id", device).Int("rows", rows).Str("output", output).Msg("Export finished")
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return errors.New().Wrap(errors.ErrInternal, err)
	}
	return nil
}
