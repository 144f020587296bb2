package cmd

import (
	"github.com/spf13/cobra"
)

func newCalcCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "calc ID",
		Aliases: []string{"calculate"},
		Short:   "Compute and store the quarterly PMPV of a session",
		Long: `Compute the volume-weighted average price of the three months from the
stored rows, save the result and announce it to the export worker when AMQP
is configured. Rows without positive daily volume are ignored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			calc, err := svc.Calculate(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printCalculation(a.out, calc)
		},
	}
}
