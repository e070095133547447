package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/gsaluja9/aperturedb-go/config"
	"github.com/gsaluja9/aperturedb-go/internal/logging"
)

const defaultConfigPath = "aperturedb.toml"

func runConfig(args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return errUsage
	}
	switch args[0] {
	case "init":
		fs := flag.NewFlagSet("config init", flag.ContinueOnError)
		output := fs.String("output", defaultConfigPath, "output path for the config template")
		force := fs.Bool("force", false, "overwrite an existing file")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		if err := config.WriteTemplate(*output, *force); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "wrote config template to %s\n", *output)
		return nil
	case "validate":
		fs := flag.NewFlagSet("config validate", flag.ContinueOnError)
		input := fs.String("input", defaultConfigPath, "config path to validate")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		cfg, err := config.Load(*input)
		if err != nil {
			return err
		}
		if err := config.Validate(cfg); err != nil {
			return fmt.Errorf("%s: %w", *input, err)
		}
		fmt.Fprintf(stdout, "validated %s (%s)\n", *input, cfg.Addr())
		return nil
	default:
		return fmt.Errorf("unknown config command %q\n%w", args[0], errUsage)
	}
}

// loadClientConfig reads path when given, then applies APERTUREDB_*
// environment overrides.
func loadClientConfig(path string) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	cfg, err := config.FromEnv(cfg)
	if err != nil {
		return config.Config{}, err
	}
	logging.ApplyLevel(cfg.LogLevel)
	return cfg, nil
}
