package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newtron-network/routecheck/pkg/settings"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Show or change persistent settings",
		Long: `Show or change the settings stored in ~/.routecheck/settings.json.

Keys:
  testbed     testbed file used when --testbed is not given
  report_dir  directory for the markdown report
  junit_path  default --junit output`,
		RunE: func(cmd *cobra.Command, args []string) error {
			s := loadSettings()
			fmt.Printf("Settings file: %s\n\n", settings.DefaultSettingsPath())
			fmt.Printf("  testbed:    %s\n", valueOr(s.Testbed, "(not set)"))
			fmt.Printf("  report_dir: %s\n", s.GetReportDir())
			fmt.Printf("  junit_path: %s\n", valueOr(s.JUnitPath, "(not set)"))
			return nil
		},
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set <key> <value>",
			Short: "Set a setting",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				s := loadSettings()
				if !s.Set(args[0], args[1]) {
					return fmt.Errorf("unknown setting %q", args[0])
				}
				if err := s.Save(); err != nil {
					return fmt.Errorf("saving settings: %w", err)
				}
				fmt.Printf("%s = %s\n", args[0], args[1])
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Reset all settings",
			RunE: func(cmd *cobra.Command, args []string) error {
				s := loadSettings()
				s.Clear()
				if err := s.Save(); err != nil {
					return fmt.Errorf("saving settings: %w", err)
				}
				fmt.Println("Settings cleared")
				return nil
			},
		},
	)
	return cmd
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
