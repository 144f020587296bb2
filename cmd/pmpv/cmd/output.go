package cmd

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"pmpv/internal/core"
	"pmpv/internal/services"
)

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func printSession(w io.Writer, s core.Session, latest *core.StoredResult) error {
	tw := newTable(w)
	fmt.Fprintf(tw, "ID:\t%d\n", s.ID)
	fmt.Fprintf(tw, "Name:\t%s\n", s.Name)
	if s.Notes != "" {
		fmt.Fprintf(tw, "Notes:\t%s\n", s.Notes)
	}
	fmt.Fprintf(tw, "Start month:\t%s\n", s.Config.StartMonth)
	fmt.Fprintf(tw, "Leap year:\t%s\n", yesNo(s.Config.IsLeapYear))
	fmt.Fprintf(tw, "Adjustment:\t%s\n", s.Adjustment.String())
	fmt.Fprintf(tw, "Modified:\t%s\n", s.ModifiedAt.Local().Format("2006-01-02 15:04"))
	if slots, err := s.Config.Resolve(); err == nil {
		for _, sm := range slots {
			fmt.Fprintf(tw, "Month %d:\t%s (%d days)\n", sm.Slot, sm.Month, sm.DayCount)
		}
	}
	if latest != nil {
		fmt.Fprintf(tw, "Latest PMPV:\t%s (computed %s)\n",
			core.RoundPrice(latest.PMPV).StringFixed(4),
			latest.ComputedAt.Local().Format("2006-01-02 15:04"))
		fmt.Fprintf(tw, "Latest final price:\t%s\n", core.RoundPrice(latest.FinalPrice).StringFixed(4))
	}
	return tw.Flush()
}

func printMonth(w io.Writer, sm core.SlotMonth, rows []core.LedgerRow) error {
	fmt.Fprintf(w, "Month %d - %s (%d days)\n", sm.Slot, sm.Month, sm.DayCount)
	tw := newTable(w)
	fmt.Fprintln(tw, "#\tSUPPLIER\tCOMP A\tCOMP B\tCOMP C\tUNIT PRICE\tDAILY VOLUME\tROW COST")
	for i, r := range rows {
		name := r.SupplierName
		if r.Placeholder {
			name += " *"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			i+1, name,
			r.ComponentA.String(), r.ComponentB.String(), r.ComponentC.String(),
			core.RoundPrice(r.UnitPrice()).String(),
			r.DailyVolume.String(),
			core.RoundMoney(r.Cost(sm.DayCount)).StringFixed(2))
	}
	return tw.Flush()
}

func printCalculation(w io.Writer, c services.Calculation) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "MONTH\tDAYS\tROWS\tVOLUME\tCOST\tPMPV")
	for _, m := range c.Months {
		pmpv := "n/a"
		if m.Volume.IsPositive() {
			pmpv = core.RoundPrice(m.PMPV).StringFixed(4)
		}
		fmt.Fprintf(tw, "%d - %s\t%d\t%d\t%s\t%s\t%s\n",
			m.Slot, m.Month, m.DayCount, m.Rows,
			core.RoundMoney(m.Volume).StringFixed(2),
			core.RoundMoney(m.Cost).StringFixed(2),
			pmpv)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	r := c.Result
	fmt.Fprintln(w)
	tw = newTable(w)
	fmt.Fprintf(tw, "Total volume:\t%s\n", core.RoundMoney(r.TotalVolume).StringFixed(2))
	fmt.Fprintf(tw, "Total cost:\t%s\n", core.RoundMoney(r.TotalCost).StringFixed(2))
	fmt.Fprintf(tw, "PMPV:\t%s\n", core.RoundPrice(r.PMPV).StringFixed(4))
	fmt.Fprintf(tw, "Adjustment:\t%s\n", r.Adjustment.String())
	fmt.Fprintf(tw, "Final price:\t%s\n", core.RoundPrice(r.FinalPrice).StringFixed(4))
	fmt.Fprintf(tw, "Result ID:\t%d\n", r.ID)
	return tw.Flush()
}

// confirm asks a yes/no question on in. Anything but y or yes declines.
func confirm(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", question)
	line, _ := bufio.NewReader(in).ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	}
	return false
}
