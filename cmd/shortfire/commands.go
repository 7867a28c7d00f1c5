package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/torosent/shortfire/internal/config"
)

func (a *app) scenariosCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the built-in scenarios",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, name := range config.Presets() {
				sc, err := config.Preset(name)
				if err != nil {
					return err
				}
				fmt.Fprintf(a.stdout, "%-20s %8s  %s\n", name, sc.Duration(), sc.Description)
			}
			return nil
		},
	}
}

// validateCommand checks a configuration without sending any traffic.
func (a *app) validateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check configuration, scenario and thresholds without running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, sc, err := a.load(cmd)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "OK: scenario %q, %d streams, %d thresholds, duration %s\n",
				sc.Name, len(sc.Streams), len(sc.Thresholds), sc.Duration())
			return nil
		},
	}
	config.RegisterFlags(cmd)
	return cmd
}
