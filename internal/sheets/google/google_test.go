package google

import (
	"context"
	"strings"
	"testing"
	"time"

	"totalx/internal/core"
)

func TestNew_MissingSpreadsheetID(t *testing.T) {
	_, err := New(context.Background(), "  ", Credentials{JSON: "{}"})
	if err == nil || err.Error() != "missing GOOGLE_SPREADSHEET_ID" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_MissingCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")
	_, err := New(context.Background(), "sheet-id", Credentials{})
	if err == nil || !strings.Contains(err.Error(), "missing service account credentials") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNew_UnreadableCredentialsFile(t *testing.T) {
	_, err := New(context.Background(), "sheet-id", Credentials{File: "/nonexistent/sa.json"})
	if err == nil || !strings.Contains(err.Error(), "read service account file") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestWriteDocument_RequiresService(t *testing.T) {
	c := &Client{spreadsheetID: "test"}
	if err := c.WriteDocument(context.Background(), "Estratto admin", core.Document{}); err == nil {
		t.Fatal("expected error without service")
	}
}

func TestDocumentValues(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	doc := core.BuildDocument([]core.Movement{
		{Principal: "@mario", Amount: core.MoneyFromCents(10000), Timestamp: ts},
		{Principal: "@mario", Amount: core.MoneyFromCents(-3050), Timestamp: ts},
	})

	got := documentValues(doc)
	if len(got) != 1+2+1+3 {
		t.Fatalf("unexpected row count %d", len(got))
	}
	if got[0][0] != "Tipo" || got[1][0] != "Entrata" || got[2][1] != -30.5 {
		t.Fatalf("unexpected rows: %v", got[:3])
	}
	if len(got[3]) != 0 {
		t.Fatalf("expected blank separator, got %v", got[3])
	}
	if got[6][0] != "Saldo Finale" || got[6][1] != 69.5 {
		t.Fatalf("unexpected trailer: %v", got[6])
	}
}

func TestQuoteRange(t *testing.T) {
	cases := map[string]string{
		"Estratto admin":   "'Estratto admin'!A1",
		"Estratto @o'neil": "'Estratto @o''neil'!A1",
	}
	for tab, want := range cases {
		if got := quoteRange(tab, "A1"); got != want {
			t.Fatalf("quoteRange(%q) = %q, want %q", tab, got, want)
		}
	}
}

func TestContainsTitle(t *testing.T) {
	titles := []string{"Sheet1", " Estratto admin "}
	if !containsTitle(titles, "estratto admin") {
		t.Fatal("expected case and space insensitive match")
	}
	if containsTitle(titles, "Estratto @mario") {
		t.Fatal("unexpected match")
	}
}
