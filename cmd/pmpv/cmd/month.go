package cmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"pmpv/internal/core"
)

// fieldAliases maps the short field names accepted on the command line.
var fieldAliases = map[string]core.Field{
	"name":     core.FieldSupplier,
	"supplier": core.FieldSupplier,
	"a":        core.FieldComponentA,
	"b":        core.FieldComponentB,
	"c":        core.FieldComponentC,
	"volume":   core.FieldDailyVolume,
}

func parseField(s string) core.Field {
	s = strings.ToLower(strings.TrimSpace(s))
	if f, ok := fieldAliases[s]; ok {
		return f
	}
	return core.Field(s)
}

// monthArgs parses the leading "ID SLOT" arguments.
func monthArgs(args []string) (int64, int, error) {
	id, err := parseID(args[0])
	if err != nil {
		return 0, 0, err
	}
	slot, err := parseIndex("slot", args[1])
	if err != nil {
		return 0, 0, err
	}
	return id, slot, core.ValidateSlot(slot)
}

func newMonthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "month",
		Short: "View and edit the supplier rows of one quarter month",
		Long: `Months are addressed by session ID and slot (1-3). Rows are numbered
from 1 in the order shown by "month show". Rows marked with * are seeded
placeholders that have not received data yet.`,
	}
	cmd.AddCommand(
		newMonthShowCmd(a),
		newMonthSetCmd(a),
		newMonthAddCmd(a),
		newMonthRemoveCmd(a),
		newMonthCopyCmd(a),
	)
	return cmd
}

// showMonth prints a slot after an edit.
func (a *app) showMonth(cmd *cobra.Command, id int64, slot int) error {
	svc, err := a.service(cmd.Context())
	if err != nil {
		return err
	}
	sm, rows, err := svc.Month(cmd.Context(), id, slot)
	if err != nil {
		return err
	}
	return printMonth(a.out, sm, rows)
}

func newMonthShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID SLOT",
		Short: "Print the rows of a month",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, slot, err := monthArgs(args)
			if err != nil {
				return err
			}
			return a.showMonth(cmd, id, slot)
		},
	}
}

func newMonthSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set ID SLOT ROW FIELD VALUE",
		Short: "Set one field of a row",
		Long: `Set one field of a row. FIELD is one of supplier (name), component_a (a),
component_b (b), component_c (c) or daily_volume (volume). Amounts accept
a dot or a comma as decimal separator; an empty VALUE clears the field.`,
		Args: cobra.ExactArgs(5),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, slot, err := monthArgs(args)
			if err != nil {
				return err
			}
			row, err := parseIndex("row", args[2])
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := svc.SetField(cmd.Context(), id, slot, row, parseField(args[3]), args[4]); err != nil {
				return err
			}
			return a.showMonth(cmd, id, slot)
		},
	}
}

func newMonthAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add ID SLOT [NAME]",
		Short: "Append a supplier row",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, slot, err := monthArgs(args)
			if err != nil {
				return err
			}
			var name string
			if len(args) == 3 {
				name = args[2]
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			if _, err := svc.AddRow(cmd.Context(), id, slot, name); err != nil {
				return err
			}
			return a.showMonth(cmd, id, slot)
		},
	}
}

func newMonthRemoveCmd(a *app) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:     "remove ID SLOT ROW",
		Aliases: []string{"rm"},
		Short:   "Remove a row after confirmation",
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, slot, err := monthArgs(args)
			if err != nil {
				return err
			}
			row, err := parseIndex("row", args[2])
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			_, rows, err := svc.Month(cmd.Context(), id, slot)
			if err != nil {
				return err
			}
			if row < 1 || row > len(rows) {
				return fmt.Errorf("row %d of slot %d: %w", row, slot, core.ErrRowNotInLedger)
			}
			if !yes && !confirm(a.in, a.out, fmt.Sprintf("Remove row %d (%s)?", row, rows[row-1].SupplierName)) {
				fmt.Fprintln(a.out, "Cancelled.")
				return nil
			}
			if _, err := svc.RemoveRow(cmd.Context(), id, slot, row); err != nil {
				return err
			}
			return a.showMonth(cmd, id, slot)
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newMonthCopyCmd(a *app) *cobra.Command {
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "copy ID FROM_SLOT ROW TO_SLOT",
		Short: "Duplicate a row into another month",
		Long: `Duplicate a row into another month. The copy fills the first target row
that is blank or still a placeholder; a row with the same supplier name in
the target is only replaced after confirmation or with --overwrite. Rows
are never appended to the target.`,
		Args: cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, from, err := monthArgs(args)
			if err != nil {
				return err
			}
			row, err := parseIndex("row", args[2])
			if err != nil {
				return err
			}
			to, err := parseIndex("slot", args[3])
			if err != nil {
				return err
			}
			svc, err := a.service(cmd.Context())
			if err != nil {
				return err
			}
			_, err = svc.DuplicateRow(cmd.Context(), id, from, row, to, overwrite)
			if errors.Is(err, core.ErrDuplicateAborted) && !overwrite {
				if !confirm(a.in, a.out, fmt.Sprintf("Month %d already has this supplier. Overwrite?", to)) {
					fmt.Fprintln(a.out, "Cancelled.")
					return nil
				}
				_, err = svc.DuplicateRow(cmd.Context(), id, from, row, to, true)
			}
			if err != nil {
				return err
			}
			return a.showMonth(cmd, id, to)
		},
	}
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "replace a same-name row in the target without asking")
	return cmd
}
