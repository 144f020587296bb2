package sheets

import "context"

// Ports for report adapters. A ref identifies a written document: a file
// path for xlsx, a spreadsheet id for Google Sheets.
type (
	ReportWriter interface {
		WriteReport(ctx context.Context, wb Workbook) (ref string, err error)
	}

	// ReportReader returns the cell text of every sheet of a document.
	// Missing documents fail with core.ErrDocumentNotFound.
	ReportReader interface {
		ReadReport(ctx context.Context, ref string) (Values, error)
	}
)
