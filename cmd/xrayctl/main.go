package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/rs/zerolog"
	"github.com/xvzc/xrayctl/internal/config"
	"github.com/xvzc/xrayctl/internal/control"
	"github.com/xvzc/xrayctl/internal/dns"
	"github.com/xvzc/xrayctl/internal/logging"
	"github.com/xvzc/xrayctl/internal/ptr"
	"github.com/xvzc/xrayctl/internal/roster"
	"github.com/xvzc/xrayctl/version"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	cmd := config.CreateCommand(runApp, version.String(), version.Commit, version.Build)
	err := cmd.Run(ctx, os.Args)
	stop()

	if err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func runApp(ctx context.Context, configPath string, cfg *config.Config, task config.Task) error {
	if ptr.FromPtrOr(cfg.General.Silent, false) {
		pterm.DisableOutput()
	}

	logger := logging.NewLogger(
		os.Stderr,
		ptr.FromPtrOr(cfg.General.LogLevel, zerolog.InfoLevel),
	)

	appLogger := logging.WithScope(logger, "APP")
	if configPath != "" {
		appLogger.Debug().Msgf("config file loaded from %s", configPath)
	}

	client, err := createClient(logger, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			appLogger.Debug().Err(err).Msg("error closing api connection")
		}
	}()

	return runTask(ctx, logger, client, cfg, task)
}

func createResolver(logger zerolog.Logger, cfg *config.Config) dns.Resolver {
	switch ptr.FromPtrOr(cfg.API.DNSMode, config.DNSModeSystem) {
	case config.DNSModeUDP:
		return dns.NewPlainResolver(
			logging.WithScope(logger, "DNS(PLAIN)"),
			cfg.API.DNSAddr,
			dns.DefaultQueryTypes,
		)
	default:
		return dns.NewSystemResolver(logging.WithScope(logger, "DNS(SYSTEM)"))
	}
}

func createClient(logger zerolog.Logger, cfg *config.Config) (*control.Client, error) {
	endpoint, err := cfg.API.Endpoint()
	if err != nil {
		return nil, err
	}

	return control.New(
		logging.WithScope(logger, "CONTROL"),
		endpoint,
		control.WithTimeout(ptr.FromPtrOr(cfg.API.Timeout, 0)),
		control.WithResolver(createResolver(logger, cfg)),
	)
}

func runTask(
	ctx context.Context,
	logger zerolog.Logger,
	ctl roster.Controller,
	cfg *config.Config,
	task config.Task,
) error {
	switch task.Kind {
	case config.TaskAdd:
		rec := task.Record
		if _, err := ctl.AddUser(ctx, rec); err != nil {
			return err
		}

		pterm.Success.Printfln("added %s to %s (id: %s)", rec.Email, rec.InTag, rec.UUID)
		return nil

	case config.TaskRemove:
		rec := task.Record
		if _, err := ctl.RemoveUser(ctx, rec); err != nil {
			return err
		}

		pterm.Success.Printfln("removed %s from %s", rec.Email, rec.InTag)
		return nil

	case config.TaskApply:
		op := roster.OpAdd
		if task.Remove {
			op = roster.OpRemove
		}

		return applyRoster(ctx, logger, ctl, op, cfg.Records(), task.Workers)
	}

	return fmt.Errorf("unknown task %s", task.Kind)
}

func applyRoster(
	ctx context.Context,
	logger zerolog.Logger,
	ctl roster.Controller,
	op roster.Operation,
	recs []control.UserRecord,
	workers int,
) error {
	if len(recs) == 0 {
		return errors.New("no [[users]] entries in the config file")
	}

	rosterLogger := logging.WithScope(logger, "ROSTER")
	if err := roster.Validate(op, recs); err != nil {
		logging.ErrorUnwrapped(&rosterLogger, "invalid roster", err)
		return err
	}

	outcomes := roster.Apply(ctx, rosterLogger, ctl, op, recs, workers)
	if err := renderOutcomes(outcomes); err != nil {
		return err
	}

	s := roster.Summarize(outcomes)
	if !s.OK() {
		return fmt.Errorf("%d of %d users failed to %s", s.Failed, len(outcomes), op)
	}

	pterm.Success.Printfln("%s: %d applied, %d unchanged", op, s.Applied, s.Unchanged)
	return nil
}

func renderOutcomes(outcomes []roster.Outcome) error {
	data := pterm.TableData{{"#", "INBOUND", "EMAIL", "STATUS", "DETAIL"}}
	for i, o := range outcomes {
		detail := ""
		if o.Err != nil {
			detail = o.Err.Error()
		}

		data = append(data, []string{
			strconv.Itoa(i),
			o.Record.InTag,
			o.Record.Email,
			o.Status().String(),
			detail,
		})
	}

	return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
}
