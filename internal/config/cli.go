package config

import (
	"context"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"
	"github.com/xvzc/xrayctl/internal/control"
	"github.com/xvzc/xrayctl/internal/ptr"
)

type TaskKind int

const (
	TaskAdd TaskKind = iota
	TaskRemove
	TaskApply
)

func (k TaskKind) String() string {
	switch k {
	case TaskAdd:
		return "add"
	case TaskRemove:
		return "remove"
	case TaskApply:
		return "apply"
	default:
		return fmt.Sprintf("TaskKind(%d)", int(k))
	}
}

// Task is what a subcommand asked for, after flags are validated.
type Task struct {
	Kind TaskKind

	// Record is set for add and remove.
	Record control.UserRecord

	// Remove and Workers are set for apply.
	Remove  bool
	Workers int
}

// RunFunc receives the merged config and the requested task. configPath is
// empty when no file was loaded.
type RunFunc func(ctx context.Context, configPath string, cfg *Config, task Task) error

func CreateCommand(
	runFunc RunFunc,
	version string,
	commit string,
	build string,
) *cli.Command {
	cmd := &cli.Command{
		Name:        "xrayctl",
		Usage:       "manage users of a running xray instance",
		Description: "Adds and removes inbound users through the xray gRPC API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name: "api-addr",
				Usage: `
				Address of the xray API listener, host:port (default: "127.0.0.1:8080")`,
				OnlyOnce:  true,
				Validator: checkHostPort,
			},

			&cli.BoolFlag{
				Name: "clean",
				Usage: `
				if set, all configuration files will be ignored`,
				OnlyOnce: true,
			},

			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage: `
				Custom location of the config file to load. Options given through the command
				line flags will override the options set in this file.`,
				OnlyOnce: true,
				Sources:  cli.EnvVars("XRAYCTL_CONFIG"),
			},

			&cli.StringFlag{
				Name: "dns-addr",
				Usage: `
				DNS server used when dns-mode is 'udp', ip:port (default: "8.8.8.8:53")`,
				OnlyOnce:  true,
				Validator: checkIPPort,
			},

			&cli.StringFlag{
				Name: "dns-mode",
				Usage: `
				How the API host name is resolved, one of 'system' or 'udp' (default: 'system')`,
				OnlyOnce:  true,
				Validator: checkDNSMode,
			},

			&cli.StringFlag{
				Name: "log-level",
				Usage: `
				Set log level (default: 'info')`,
				OnlyOnce:  true,
				Validator: checkLogLevel,
			},

			&cli.BoolFlag{
				Name: "silent",
				Usage: `
				Do not print results, only logs and the exit code`,
				OnlyOnce: true,
			},

			&cli.IntFlag{
				Name: "timeout",
				Usage: `
				Deadline for a single API call in milliseconds.
				No deadline when the value is 0 (default: 3000, max: 65535)`,
				OnlyOnce:  true,
				Validator: checkUint16,
			},

			&cli.BoolFlag{
				Name: "version",
				Usage: `
				Print version; this may contain some other relevant information`,
				Aliases:  []string{"v"},
				OnlyOnce: true,
			},
		},
		Commands: []*cli.Command{
			createAddCommand(runFunc),
			createRemoveCommand(runFunc),
			createApplyCommand(runFunc),
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Bool("version") {
				_, _ = fmt.Fprintf(cmd.Root().Writer, "xrayctl %s %s (%s)\n", version, commit, build)
				return nil
			}

			return cli.ShowAppHelp(cmd)
		},
	}

	return cmd
}

func createAddCommand(runFunc RunFunc) *cli.Command {
	return &cli.Command{
		Name:  "add",
		Usage: "add a user to an inbound",
		Flags: append(recordFlags(),
			&cli.StringFlag{
				Name:      "uuid",
				Usage:     "user id; a random UUID is generated when omitted",
				OnlyOnce:  true,
				Validator: checkUUID,
			},
			&cli.Uint32Flag{
				Name:     "level",
				Usage:    "user level (default: 0)",
				OnlyOnce: true,
			},
			&cli.StringFlag{
				Name:     "flow",
				Usage:    `vless flow control, e.g. "xtls-rprx-vision"`,
				OnlyOnce: true,
			},
		),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			id := cmd.String("uuid")
			if id == "" {
				id = uuid.NewString()
			}

			task := Task{
				Kind: TaskAdd,
				Record: control.UserRecord{
					UUID:  id,
					Level: cmd.Uint32("level"),
					InTag: cmd.String("inbound"),
					Email: cmd.String("email"),
					Flow:  cmd.String("flow"),
				},
			}

			return run(ctx, cmd, runFunc, task)
		},
	}
}

func createRemoveCommand(runFunc RunFunc) *cli.Command {
	return &cli.Command{
		Name:  "remove",
		Usage: "remove a user from an inbound by email",
		Flags: recordFlags(),
		Action: func(ctx context.Context, cmd *cli.Command) error {
			task := Task{
				Kind: TaskRemove,
				Record: control.UserRecord{
					InTag: cmd.String("inbound"),
					Email: cmd.String("email"),
				},
			}

			return run(ctx, cmd, runFunc, task)
		},
	}
}

func createApplyCommand(runFunc RunFunc) *cli.Command {
	return &cli.Command{
		Name:  "apply",
		Usage: "add (or remove) every [[users]] entry of the config file",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:     "remove",
				Usage:    "remove the listed users instead of adding them",
				OnlyOnce: true,
			},
			&cli.IntFlag{
				Name:      "workers",
				Usage:     "number of concurrent API calls (default: 4, max: 256)",
				Value:     4,
				OnlyOnce:  true,
				Validator: checkWorkers,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			task := Task{
				Kind:    TaskApply,
				Remove:  cmd.Bool("remove"),
				Workers: cmd.Int("workers"),
			}

			return run(ctx, cmd, runFunc, task)
		},
	}
}

func recordFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:      "inbound",
			Usage:     "tag of the inbound handler",
			Required:  true,
			OnlyOnce:  true,
			Validator: checkNonEmpty,
		},
		&cli.StringFlag{
			Name:      "email",
			Usage:     "email identifying the user",
			Required:  true,
			OnlyOnce:  true,
			Validator: checkEmail,
		},
	}
}

func run(ctx context.Context, cmd *cli.Command, runFunc RunFunc, task Task) error {
	configPath, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if task.Kind == TaskApply && configPath == "" {
		return fmt.Errorf("apply needs a config file with [[users]] entries")
	}

	return runFunc(ctx, strings.Replace(configPath, os.Getenv("HOME"), "~", 1), cfg, task)
}

func loadConfig(cmd *cli.Command) (string, *Config, error) {
	cfg := getDefault()

	var configPath string
	if !cmd.Bool("clean") {
		p, err := searchTomlFile(cmd.String("config"), lookupPaths())
		if err != nil {
			return "", nil, err
		}

		if p != "" {
			tomlCfg, err := fromTomlFile(p)
			if err != nil {
				return "", nil, fmt.Errorf("error parsing toml config: %w", err)
			}

			configPath = p
			cfg = cfg.Merge(tomlCfg)
		}
	}

	return configPath, cfg.Merge(parseConfigFromArgs(cmd)), nil
}

func lookupPaths() []string {
	paths := []string{path.Join(string(os.PathSeparator), "etc", configFilename)}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, path.Join(xdg, "xrayctl", configFilename))
	}

	if home := os.Getenv("HOME"); home != "" {
		paths = append(paths, path.Join(home, ".config", "xrayctl", configFilename))
	}

	return paths
}

// parseConfigFromArgs keeps only the flags given explicitly, so that file
// values survive the merge.
func parseConfigFromArgs(cmd *cli.Command) *Config {
	general := &GeneralOptions{}
	if cmd.IsSet("log-level") {
		general.LogLevel = ptr.FromValue(MustParseLogLevel(cmd.String("log-level")))
	}
	if cmd.IsSet("silent") {
		general.Silent = ptr.FromValue(cmd.Bool("silent"))
	}

	api := &APIOptions{}
	if cmd.IsSet("api-addr") {
		api.Addr = ptr.FromValue(cmd.String("api-addr"))
	}
	if cmd.IsSet("timeout") {
		api.Timeout = ptr.FromValue(time.Duration(cmd.Int("timeout")) * time.Millisecond)
	}
	if cmd.IsSet("dns-mode") {
		api.DNSMode = ptr.FromValue(MustParseDNSModeType(cmd.String("dns-mode")))
	}
	if cmd.IsSet("dns-addr") {
		api.DNSAddr = MustParseUDPAddr(cmd.String("dns-addr"))
	}

	return &Config{General: general, API: api}
}
