package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/newtron-network/routecheck/pkg/cli"
	"github.com/newtron-network/routecheck/pkg/routetest"
)

func newListCmd() *cobra.Command {
	var testbedPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the cases of a testbed",
		RunE: func(cmd *cobra.Command, args []string) error {
			tb, err := loadTestbed(testbedPath, loadSettings())
			if err != nil {
				return err
			}
			cases, err := tb.SelectCases("")
			if err != nil {
				return err
			}

			mode := "single"
			if tb.Secondary != nil {
				mode = "dual (" + tb.Secondary.Name + ")"
			}
			fmt.Printf("Testbed: %s  Topology: %s  Switch: %s  Mode: %s\n\n",
				tb.Name, tb.Topology.Name, tb.Primary.Name, mode)

			t := cli.NewTable("CASE", "PREFIX", "FAMILY", "NEXT HOPS", "RELOAD")
			for _, c := range cases {
				t.Row(c.Name, c.Prefix.String(), c.Family().String(), strconv.Itoa(c.Count), reloadLabel(c))
			}
			t.Flush()
			return nil
		},
	}

	cmd.Flags().StringVar(&testbedPath, "testbed", "", "Testbed file")
	return cmd
}

func reloadLabel(c routetest.Case) string {
	if c.ConfigReload {
		return "yes"
	}
	return "-"
}
