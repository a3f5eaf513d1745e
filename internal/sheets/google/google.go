// Package google mirrors estratto conto documents into a Google Sheets
// spreadsheet, one tab per store.
package google

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"totalx/internal/core"
	ports "totalx/internal/sheets"
)

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string

	mu        sync.Mutex
	knownTabs map[string]bool
}

var _ ports.DocumentWriter = (*Client)(nil)

// Credentials selects the service account: inline JSON wins over a file path.
// With neither set, GOOGLE_APPLICATION_CREDENTIALS is consulted.
type Credentials struct {
	JSON string
	File string
}

func New(ctx context.Context, spreadsheetID string, creds Credentials) (*Client, error) {
	spreadsheetID = strings.TrimSpace(spreadsheetID)
	if spreadsheetID == "" {
		return nil, errors.New("missing GOOGLE_SPREADSHEET_ID")
	}
	svc, err := newSheetsService(ctx, creds)
	if err != nil {
		return nil, fmt.Errorf("sheets service: %w", err)
	}
	return &Client{svc: svc, spreadsheetID: spreadsheetID, knownTabs: make(map[string]bool)}, nil
}

func newSheetsService(ctx context.Context, creds Credentials) (*gsheet.Service, error) {
	serviceAccountJSON := strings.TrimSpace(creds.JSON)
	serviceAccountFile := strings.TrimSpace(creds.File)
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		b, err := os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentialsJSON = b
	default:
		return nil, errors.New("missing service account credentials (set GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or GOOGLE_APPLICATION_CREDENTIALS)")
	}

	slog.InfoContext(ctx, "Creating Google Sheets service with Service Account",
		"credentials_size", len(credentialsJSON),
		"scope", gsheet.SpreadsheetsScope)

	return gsheet.NewService(ctx,
		goption.WithCredentialsJSON(credentialsJSON),
		goption.WithScopes(gsheet.SpreadsheetsScope),
		goption.WithHTTPClient(newHTTPClientWithPooling()))
}

// newHTTPClientWithPooling keeps connections to the Sheets API warm between syncs.
func newHTTPClientWithPooling() *http.Client {
	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		MaxConnsPerHost:       50,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 30 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
	}
	return &http.Client{Transport: transport, Timeout: 60 * time.Second}
}

// WriteDocument creates tab when missing, clears it and writes doc from A1.
func (c *Client) WriteDocument(ctx context.Context, tab string, doc core.Document) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}
	if err := c.ensureTab(ctx, tab); err != nil {
		return err
	}

	all := quoteRange(tab, "A:Z")
	if _, err := c.svc.Spreadsheets.Values.Clear(c.spreadsheetID, all, &gsheet.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear %s: %w", all, err)
	}

	vr := &gsheet.ValueRange{Values: documentValues(doc)}
	start := quoteRange(tab, "A1")
	_, err := c.svc.Spreadsheets.Values.Update(c.spreadsheetID, start, vr).
		ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update %s: %w", start, err)
	}

	slog.InfoContext(ctx, "Document written to Google Sheets", "tab", tab, "rows", len(doc.Rows))
	return nil
}

func (c *Client) ensureTab(ctx context.Context, tab string) error {
	c.mu.Lock()
	known := c.knownTabs[tab]
	c.mu.Unlock()
	if known {
		return nil
	}

	ss, err := c.svc.Spreadsheets.Get(c.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("read spreadsheet: %w", err)
	}
	var titles []string
	for _, s := range ss.Sheets {
		if s.Properties != nil {
			titles = append(titles, s.Properties.Title)
		}
	}

	if !containsTitle(titles, tab) {
		req := &gsheet.BatchUpdateSpreadsheetRequest{Requests: []*gsheet.Request{{
			AddSheet: &gsheet.AddSheetRequest{Properties: &gsheet.SheetProperties{Title: tab}},
		}}}
		if _, err := c.svc.Spreadsheets.BatchUpdate(c.spreadsheetID, req).Context(ctx).Do(); err != nil {
			return fmt.Errorf("add tab %q: %w", tab, err)
		}
		slog.InfoContext(ctx, "Created spreadsheet tab", "tab", tab)
	}

	c.mu.Lock()
	c.knownTabs[tab] = true
	c.mu.Unlock()
	return nil
}

// documentValues lays doc out as in the xlsx export: numbers stay numeric
// so the spreadsheet can sum them.
func documentValues(doc core.Document) [][]any {
	out := make([][]any, 0, len(doc.Rows)+len(doc.Trailer)+2)
	header := make([]any, len(doc.Header))
	for i, h := range doc.Header {
		header[i] = h
	}
	out = append(out, header)
	for _, r := range doc.Rows {
		out = append(out, []any{r.Kind, r.Amount.Float64(), r.Principal.String(), r.Timestamp.Format(core.TimestampLayout)})
	}
	out = append(out, []any{})
	for _, t := range doc.Trailer {
		out = append(out, []any{t.Label, t.Amount.Float64()})
	}
	return out
}

// quoteRange builds an A1 range for a tab whose name may contain spaces or quotes.
func quoteRange(tab, cells string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'!" + cells
}

func containsTitle(titles []string, tab string) bool {
	for _, t := range titles {
		if strings.EqualFold(strings.TrimSpace(t), strings.TrimSpace(tab)) {
			return true
		}
	}
	return false
}
