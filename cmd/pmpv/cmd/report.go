package cmd

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"pmpv/internal/sheets"
)

var errGoogleDisabled = errors.New("Google Sheets is not configured: set GOOGLE_SPREADSHEET_ID")

// reportTarget picks the Google client or the xlsx store.
func (a *app) reportTarget(cmd *cobra.Command, google bool) (sheets.ReportWriter, sheets.ReportReader, error) {
	res, err := a.backend(cmd.Context())
	if err != nil {
		return nil, nil, err
	}
	if google {
		if res.Google == nil {
			return nil, nil, errGoogleDisabled
		}
		return res.Google, res.Google, nil
	}
	return res.Files, res.Files, nil
}

func newExportCmd(a *app) *cobra.Command {
	var google bool
	cmd := &cobra.Command{
		Use:   "export ID",
		Short: "Write the session report as xlsx or to Google Sheets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			w, _, err := a.reportTarget(cmd, google)
			if err != nil {
				return err
			}
			ref, err := a.res.Service.Export(cmd.Context(), id, w)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Report written: %s\n", ref)
			return nil
		},
	}
	cmd.Flags().BoolVar(&google, "google", false, "export to the configured Google spreadsheet")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var google bool
	cmd := &cobra.Command{
		Use:   "import ID [REF]",
		Short: "Replace the rows of a session with a report's month sheets",
		Long: `Replace all three months of a session with the month sheets of a report.
REF is an xlsx file path, or a spreadsheet ID with --google (default: the
configured spreadsheet). Nothing is saved when any sheet fails to parse.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var ref string
			if len(args) == 2 {
				ref = args[1]
			}
			if ref == "" && !google {
				return errors.New("an xlsx file path is required")
			}
			_, r, err := a.reportTarget(cmd, google)
			if err != nil {
				return err
			}
			months, err := a.res.Service.Import(cmd.Context(), id, r, ref)
			if err != nil {
				return err
			}
			for i, rows := range months {
				fmt.Fprintf(a.out, "Month %d: %d rows\n", i+1, len(rows))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&google, "google", false, "read from the configured Google spreadsheet")
	return cmd
}

func newTemplateCmd(a *app) *cobra.Command {
	var (
		settings settingsFlags
		google   bool
	)
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Write an empty quarter workbook listing the default suppliers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := settings.apply(cmd, a.cfg.QuarterDefaults(), decimal.Zero)
			if err != nil {
				return err
			}
			w, _, err := a.reportTarget(cmd, google)
			if err != nil {
				return err
			}
			ref, err := a.res.Service.Template(cmd.Context(), cfg, w)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Template written: %s\n", ref)
			return nil
		},
	}
	settings.register(cmd)
	cmd.Flags().BoolVar(&google, "google", false, "write to the configured Google spreadsheet")
	return cmd
}
