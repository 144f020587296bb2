package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func newCalendarCmd(a *app) *cobra.Command {
	var settings settingsFlags
	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show the months and day counts of a quarter",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := settings.apply(cmd, a.cfg.QuarterDefaults(), decimal.Zero)
			if err != nil {
				return err
			}
			slots, err := cfg.Resolve()
			if err != nil {
				return err
			}
			tw := newTable(a.out)
			fmt.Fprintln(tw, "SLOT\tMONTH\tDAYS")
			total := 0
			for _, s := range slots {
				fmt.Fprintf(tw, "%d\t%s\t%d\n", s.Slot, s.Month, s.DayCount)
				total += s.DayCount
			}
			fmt.Fprintf(tw, "\tTotal\t%d\n", total)
			return tw.Flush()
		},
	}
	settings.register(cmd)
	cmd.Flags().Lookup("adjustment").Hidden = true
	return cmd
}
