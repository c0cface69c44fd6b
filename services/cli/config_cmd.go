package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// configKeys maps the yaml keys `config set` accepts to their setters.
var configKeys = map[string]func(*Config, string) error{
	"api_url":       func(c *Config, v string) error { c.APIURL = v; return nil },
	"token_file":    func(c *Config, v string) error { c.TokenFile = v; return nil },
	"nats_url":      func(c *Config, v string) error { c.NATSURL = v; return nil },
	"export_bucket": func(c *Config, v string) error { c.ExportBucket = v; return nil },
	"api_timeout": func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil || d < 0 {
			return fmt.Errorf("api_timeout must be a non-negative duration, got %q", v)
		}
		c.APITimeout = d
		return nil
	},
}

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or change the fitversectl config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.printf("%s\n", a.configPath)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(a.cfg)
			if err != nil {
				return err
			}
			_, err = a.io.Out.Write(data)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set KEY VALUE",
		Short: "Store a value in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.configPath == "" {
				return errors.New("no config path; pass --config")
			}
			set, ok := configKeys[args[0]]
			if !ok {
				keys := make([]string, 0, len(configKeys))
				for k := range configKeys {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				return fmt.Errorf("unknown key %q (one of %s)", args[0], strings.Join(keys, ", "))
			}
			// Start from the file alone so environment overrides are not persisted.
			cfg, err := LoadConfig(a.configPath)
			if err != nil {
				return err
			}
			if err := set(&cfg, args[1]); err != nil {
				return err
			}
			if err := SaveConfig(a.configPath, cfg); err != nil {
				return err
			}
			a.printf("Saved %s in %s\n", args[0], a.configPath)
			return nil
		},
	})
	return cmd
}
