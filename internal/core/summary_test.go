package core

import (
	"testing"
	"time"
)

func TestSummarize(t *testing.T) {
	who := MustIdentity("@mario")
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	movements := []Movement{
		{ID: 1, Principal: who, Amount: MoneyFromCents(10000), Timestamp: now},
		{ID: 2, Principal: who, Amount: MoneyFromCents(-3000), Timestamp: now},
		{ID: 3, Principal: who, Amount: MoneyFromCents(5), Timestamp: now},
	}
	s := Summarize(movements)
	if len(s.Credits) != 2 || len(s.Debits) != 1 {
		t.Fatalf("unexpected partition: %d credits, %d debits", len(s.Credits), len(s.Debits))
	}
	if s.TotalCredit.String() != "100.05" || s.TotalDebit.String() != "-30.00" || s.Balance.String() != "70.05" {
		t.Fatalf("unexpected totals: %s %s %s", s.TotalCredit, s.TotalDebit, s.Balance)
	}
	if s.IsEmpty() || s.Len() != 3 {
		t.Fatalf("summary should hold 3 movements")
	}

	empty := Summarize(nil)
	if !empty.IsEmpty() || empty.Balance.String() != "0.00" {
		t.Fatalf("empty summary should have zero balance, got %s", empty.Balance)
	}
}

func TestBuildDocument(t *testing.T) {
	who := MustIdentity("@mario")
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	doc := BuildDocument([]Movement{
		{Principal: who, Amount: MoneyFromCents(10000), Timestamp: now},
		{Principal: who, Amount: MoneyFromCents(-3000), Timestamp: now},
	})
	if len(doc.Rows) != 2 || doc.Rows[0].Kind != "Entrata" || doc.Rows[1].Kind != "Uscita" {
		t.Fatalf("unexpected rows: %+v", doc.Rows)
	}
	if len(doc.Trailer) != 3 || doc.Trailer[2].Label != "Saldo Finale" || doc.Trailer[2].Amount.String() != "70.00" {
		t.Fatalf("unexpected trailer: %+v", doc.Trailer)
	}

	values := doc.Values()
	// header + 2 rows + blank + 3 trailer rows
	if len(values) != 7 {
		t.Fatalf("expected 7 value rows, got %d", len(values))
	}
	if values[1][3] != "2025-03-01 10:00:00" {
		t.Fatalf("unexpected timestamp cell %q", values[1][3])
	}
	if len(values[3]) != 0 {
		t.Fatalf("expected blank separator row, got %v", values[3])
	}
}
