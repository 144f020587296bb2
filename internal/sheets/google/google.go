package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"google.golang.org/api/googleapi"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"pmpv/internal/core"
	ports "pmpv/internal/sheets"
)

// Client writes report workbooks into a Google spreadsheet, one tab per
// workbook sheet, and reads them back.
type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
}

var (
	_ ports.ReportWriter = (*Client)(nil)
	_ ports.ReportReader = (*Client)(nil)
)

// NewFromEnv creates a Sheets client from environment variables.
// Required: GOOGLE_SPREADSHEET_ID
// Credentials: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE,
// GOOGLE_APPLICATION_CREDENTIALS, or an OAuth client plus token.
func NewFromEnv(ctx context.Context) (*Client, error) {
	spreadsheetID := strings.TrimSpace(os.Getenv("GOOGLE_SPREADSHEET_ID"))
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return New(svc, spreadsheetID), nil
}

func New(svc *gsheet.Service, spreadsheetID string) *Client {
	return &Client{svc: svc, spreadsheetID: spreadsheetID}
}

// newSheetsService initializes a Sheets service with service account
// credentials, falling back to an OAuth user token.
func newSheetsService(ctx context.Context) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		slog.DebugContext(ctx, "Using inline service account credentials")
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		data, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		slog.DebugContext(ctx, "Read service account credentials", "path", serviceAccountFile, "size", len(data))
		credentialsJSON = data
	case hasOAuthEnv():
		ts, err := oauthTokenSource(ctx)
		if err != nil {
			return nil, err
		}
		slog.DebugContext(ctx, "Using OAuth user credentials")
		svc, err := gsheet.NewService(ctx, goption.WithTokenSource(ts))
		if err != nil {
			return nil, fmt.Errorf("create sheets service: %w", err)
		}
		return svc, nil
	default:
		return nil, errors.New("missing credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_OAUTH_CLIENT_JSON/FILE)")
	}

	svc, err := gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	return svc, nil
}

// WriteReport replaces the content of every tab named in wb, creating
// missing tabs, and returns the spreadsheet id.
func (c *Client) WriteReport(ctx context.Context, wb ports.Workbook) (string, error) {
	if c.svc == nil {
		return "", errors.New("sheets service not initialized")
	}
	existing, err := c.sheetTitles(ctx, c.spreadsheetID)
	if err != nil {
		return "", err
	}

	if reqs := addSheetRequests(existing, wb); len(reqs) > 0 {
		_, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateSpreadsheetRequest{Requests: reqs}).
			Context(ctx).Do()
		if err != nil {
			return "", fmt.Errorf("add sheets: %w", err)
		}
	}

	clearRanges := make([]string, 0, len(wb.Sheets))
	for _, sh := range wb.Sheets {
		clearRanges = append(clearRanges, a1(sh.Name, "A:Z"))
	}
	_, err = c.svc.Spreadsheets.Values.BatchClear(c.spreadsheetID, &gsheet.BatchClearValuesRequest{Ranges: clearRanges}).
		Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("clear sheets: %w", err)
	}

	_, err = c.svc.Spreadsheets.Values.BatchUpdate(c.spreadsheetID, &gsheet.BatchUpdateValuesRequest{
		ValueInputOption: "RAW",
		Data:             valueRanges(wb),
	}).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("update values: %w", err)
	}

	slog.InfoContext(ctx, "Report pushed to Google Sheets",
		"spreadsheet_id", c.spreadsheetID,
		"sheets", len(wb.Sheets))
	return c.spreadsheetID, nil
}

// ReadReport reads every tab of the spreadsheet ref, or of the configured
// spreadsheet when ref is empty.
func (c *Client) ReadReport(ctx context.Context, ref string) (ports.Values, error) {
	if c.svc == nil {
		return nil, errors.New("sheets service not initialized")
	}
	id := strings.TrimSpace(ref)
	if id == "" {
		id = c.spreadsheetID
	}
	titles, err := c.sheetTitles(ctx, id)
	if err != nil {
		return nil, err
	}
	ranges := make([]string, len(titles))
	for i, t := range titles {
		ranges[i] = a1(t, "A:G")
	}
	resp, err := c.svc.Spreadsheets.Values.BatchGet(id).
		Ranges(ranges...).
		ValueRenderOption("UNFORMATTED_VALUE").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("read values: %w", err)
	}
	return parseValueRanges(titles, resp.ValueRanges), nil
}

func (c *Client) sheetTitles(ctx context.Context, id string) ([]string, error) {
	ss, err := c.svc.Spreadsheets.Get(id).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusNotFound {
			return nil, fmt.Errorf("spreadsheet %s: %w", id, core.ErrDocumentNotFound)
		}
		return nil, fmt.Errorf("get spreadsheet %s: %w", id, err)
	}
	titles := make([]string, 0, len(ss.Sheets))
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			titles = append(titles, s.Properties.Title)
		}
	}
	return titles, nil
}
