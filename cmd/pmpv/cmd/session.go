package cmd

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"pmpv/internal/core"
)

// settingsFlags are the quarter settings accepted by session create and
// session config. Only flags the user set are applied.
type settingsFlags struct {
	startMonth string
	leap       bool
	adjustment string
}

func (f *settingsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.startMonth, "start-month", "", "first calendar month of the quarter (English or Portuguese name)")
	cmd.Flags().BoolVar(&f.leap, "leap", false, "use 29 days for February")
	cmd.Flags().StringVar(&f.adjustment, "adjustment", "", "amount added to the PMPV for the final price")
}

func (f *settingsFlags) apply(cmd *cobra.Command, cfg core.QuarterConfig, adj decimal.Decimal) (core.QuarterConfig, decimal.Decimal, error) {
	if cmd.Flags().Changed("start-month") {
		cfg.StartMonth = f.startMonth
	}
	if cmd.Flags().Changed("leap") {
		cfg.IsLeapYear = f.leap
	}
	if cmd.Flags().Changed("adjustment") {
		d, err := core.ParseAdjustment(f.adjustment)
		if err != nil {
			return cfg, adj, err
		}
		adj = d
	}
	return cfg, adj, cfg.Validate()
}

func newSessionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "session",
		Aliases: []string{"sessions"},
		Short:   "Manage calculation sessions",
	}
	cmd.AddCommand(
		newSessionCreateCmd(a),
		newSessionListCmd(a),
		newSessionShowCmd(a),
		newSessionConfigCmd(a),
		newSessionDeleteCmd(a),
	)
	return cmd
}

func newSessionCreateCmd(a *app) *cobra.Command {
	var (
		notes    string
		settings settingsFlags
	)
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a session with seeded supplier rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, adj, err := settings.apply(cmd, a.cfg.QuarterDefaults(), decimal.Zero)
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			s, err := svc.CreateSession(cmd.Context(), args[0], notes, cfg, adj)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Created session %d\n", s.ID)
			return printSession(a.out, s, nil)
		},
	}
	cmd.Flags().StringVar(&notes, "notes", "", "free text stored with the session")
	settings.register(cmd)
	return cmd
}

func newSessionListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List sessions, most recently modified first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			list, err := svc.ListSessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(a.out, "No sessions.")
				return nil
			}
			tw := newTable(a.out)
			fmt.Fprintln(tw, "ID\tNAME\tSTART\tMODIFIED\tPMPV\tFINAL")
			for _, s := range list {
				pmpv, final := "-", "-"
				if s.Latest != nil {
					pmpv = core.RoundPrice(s.Latest.PMPV).StringFixed(4)
					final = core.RoundPrice(s.Latest.FinalPrice).StringFixed(4)
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
					s.ID, s.Name, s.Config.StartMonth,
					s.ModifiedAt.Local().Format("2006-01-02 15:04"),
					pmpv, final)
			}
			return tw.Flush()
		},
	}
}

func newSessionShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show session settings and its latest result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			exp, err := svc.ExportSession(cmd.Context(), id)
			if err != nil {
				return err
			}
			if err := printSession(a.out, exp.Session, exp.Latest); err != nil {
				return err
			}
			for i, rows := range exp.Months {
				fmt.Fprintf(a.out, "Month %d rows: %d\n", i+1, len(rows))
			}
			return nil
		},
	}
}

func newSessionConfigCmd(a *app) *cobra.Command {
	var settings settingsFlags
	cmd := &cobra.Command{
		Use:   "config ID",
		Short: "Change the start month, leap year flag or adjustment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			s, err := svc.GetSession(cmd.Context(), id)
			if err != nil {
				return err
			}
			cfg, adj, err := settings.apply(cmd, s.Config, s.Adjustment)
			if err != nil {
				return err
			}
			s, err = svc.UpdateSettings(cmd.Context(), id, cfg, adj)
			if err != nil {
				return err
			}
			return printSession(a.out, s, nil)
		},
	}
	settings.register(cmd)
	return cmd
}

func newSessionDeleteCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a session with its rows and results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			s, err := svc.GetSession(cmd.Context(), id)
			if err != nil {
				return err
			}
			if !yes && !confirm(a.in, a.out, fmt.Sprintf("Delete session %d %q?", s.ID, s.Name)) {
				fmt.Fprintln(a.out, "Cancelled.")
				return nil
			}
			if err := svc.DeleteSession(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Deleted session %d\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}
