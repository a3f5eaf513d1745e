package core

import "time"

// Summary is the derived view of a store: movements partitioned by sign.
type Summary struct {
	Credits     []Movement `json:"credits"`
	Debits      []Movement `json:"debits"`
	TotalCredit Money      `json:"total_credit"`
	TotalDebit  Money      `json:"total_debit"`
	Balance     Money      `json:"balance"`
}

// Summarize partitions movements by sign and totals them.
// Balance is TotalCredit + TotalDebit; debits are already negative.
func Summarize(movements []Movement) Summary {
	s := Summary{Credits: []Movement{}, Debits: []Movement{}}
	for _, m := range movements {
		switch {
		case m.Amount.IsCredit():
			s.Credits = append(s.Credits, m)
			s.TotalCredit = s.TotalCredit.Add(m.Amount)
		case m.Amount.IsDebit():
			s.Debits = append(s.Debits, m)
			s.TotalDebit = s.TotalDebit.Add(m.Amount)
		}
	}
	s.Balance = s.TotalCredit.Add(s.TotalDebit)
	return s
}

// IsEmpty reports whether the store had no movements.
func (s Summary) IsEmpty() bool {
	return len(s.Credits) == 0 && len(s.Debits) == 0
}

// Len returns the number of movements summarized.
func (s Summary) Len() int {
	return len(s.Credits) + len(s.Debits)
}

// TimestampLayout is how movement timestamps are rendered in reports and exports.
const TimestampLayout = "2006-01-02 15:04:05"

// Document is a tabular projection of a store, independent of any file format.
type Document struct {
	Title   string
	Header  []string
	Rows    []DocumentRow
	Trailer []TrailerRow
}

// DocumentRow is one movement line of an export.
type DocumentRow struct {
	Kind      string
	Amount    Money
	Principal Identity
	Timestamp time.Time
}

// TrailerRow is a labelled total printed after the movements.
type TrailerRow struct {
	Label  string
	Amount Money
}

// BuildDocument projects movements into the "Estratto Conto" table:
// one row per movement in insertion order, then total credit, total debit
// and final balance.
func BuildDocument(movements []Movement) Document {
	sum := Summarize(movements)
	doc := Document{
		Title:  "Estratto Conto",
		Header: []string{"Tipo", "Importo", "Utente", "Data"},
		Rows:   make([]DocumentRow, 0, len(movements)),
	}
	for _, m := range movements {
		doc.Rows = append(doc.Rows, DocumentRow{
			Kind:      m.Kind(),
			Amount:    m.Amount,
			Principal: m.Principal,
			Timestamp: m.Timestamp,
		})
	}
	doc.Trailer = []TrailerRow{
		{Label: "Totale Entrate", Amount: sum.TotalCredit},
		{Label: "Totale Uscite", Amount: sum.TotalDebit},
		{Label: "Saldo Finale", Amount: sum.Balance},
	}
	return doc
}

// Values flattens the document into string cells: header, rows, a blank
// separator row and the trailer. Used by writers that only accept text grids.
func (d Document) Values() [][]string {
	out := make([][]string, 0, len(d.Rows)+len(d.Trailer)+2)
	out = append(out, append([]string(nil), d.Header...))
	for _, r := range d.Rows {
		out = append(out, []string{r.Kind, r.Amount.String(), r.Principal.String(), r.Timestamp.Format(TimestampLayout)})
	}
	out = append(out, []string{})
	for _, t := range d.Trailer {
		out = append(out, []string{t.Label, t.Amount.String()})
	}
	return out
}
