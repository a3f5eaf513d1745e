// Package reply renders the Italian chat replies of every ledger command.
package reply

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"

	"totalx/internal/core"
)

const helpText = "Ciao! Sono TotalX Pro Bot.\n" +
	"Comandi:\n" +
	"/add numero - aggiunge un'entrata\n" +
	"/subtract numero - aggiunge un'uscita\n" +
	"/total - mostra il saldo totale\n" +
	"/report - mostra l'estratto conto completo\n" +
	"/export - ricevi un file Excel\n" +
	"/undo - annulla l'ultima operazione\n" +
	"/reset - azzera tutto e crea un nuovo foglio\n" +
	"/setadmin username - aggiunge/rimuove un admin (solo admin)\n" +
	"/adminlist - mostra la lista admin (solo admin)"

const (
	AddUsage        = "Errore! Usa /add numero, esempio /add 100 o /add 0,05"
	SubtractUsage   = "Errore! Usa /subtract numero, esempio /subtract 50 o /subtract 0,07"
	SetAdminUsage   = "Errore! Usa /setadmin @username"
	NoMovements     = "Nessun movimento registrato."
	Undone          = "Ultima operazione annullata."
	NothingToUndo   = "Nessuna operazione da annullare."
	ResetDone       = "Foglio azzerato e ricreato con saldo 0."
	SetAdminDenied  = "Solo admin possono modificare la lista admin."
	AdminListDenied = "Solo admin possono vedere la lista admin."
	InvalidIdentity = "Errore! Nome utente non valido."
	InternalError   = "Errore interno, riprova più tardi."
)

func Help() string { return helpText }

// Added confirms a credit: "Entrata registrata: +5.01\nSaldo attuale: 5.01".
func Added(amount, balance core.Money) string {
	return fmt.Sprintf("Entrata registrata: +%s\nSaldo attuale: %s", amount.Abs(), balance)
}

// Subtracted confirms a debit; amount may be given with either sign.
func Subtracted(amount, balance core.Money) string {
	return fmt.Sprintf("Uscita registrata: -%s\nSaldo attuale: %s", amount.Abs(), balance)
}

func Total(balance core.Money) string {
	return "Saldo totale: " + balance.String()
}

func Undo(removed bool) string {
	if removed {
		return Undone
	}
	return NothingToUndo
}

func Protected(target core.Identity) string {
	return fmt.Sprintf("%s è un admin fisso e non può essere rimosso.", target)
}

func Granted(target core.Identity, granted bool) string {
	if granted {
		return fmt.Sprintf("%s è ora admin.", target)
	}
	return fmt.Sprintf("%s non è più admin.", target)
}

func AdminList(admins []core.Identity) string {
	lines := make([]string, len(admins))
	for i, a := range admins {
		lines[i] = a.String()
	}
	return "Admin attuali:\n" + strings.Join(lines, "\n")
}

// Report renders the estratto conto:
//
//	📄 Estratto Conto
//
//	Entrate:
//	+100.00 (@mario 2024-05-01 12:00:00)
//	Totale Entrate: 100.00
//
//	Uscite:
//	-30.00 (@mario 2024-05-01 12:05:00)
//	Totale Uscite: -30.00
//
//	Saldo Totale: 70.00
//
// An empty summary renders NoMovements.
func Report(s core.Summary) string {
	if s.IsEmpty() {
		return NoMovements
	}
	var b strings.Builder
	b.WriteString("📄 Estratto Conto\n\n")
	if len(s.Credits) > 0 {
		b.WriteString("Entrate:\n")
		writeLines(&b, s.Credits)
		fmt.Fprintf(&b, "\nTotale Entrate: %s\n\n", s.TotalCredit)
	}
	if len(s.Debits) > 0 {
		b.WriteString("Uscite:\n")
		writeLines(&b, s.Debits)
		fmt.Fprintf(&b, "\nTotale Uscite: %s\n\n", s.TotalDebit)
	}
	fmt.Fprintf(&b, "Saldo Totale: %s", s.Balance)
	return b.String()
}

func writeLines(b *strings.Builder, movements []core.Movement) {
	for i, m := range movements {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(b, "%s (%s %s)", m.Amount.SignedString(), m.Principal, m.Timestamp.Format(core.TimestampLayout))
	}
}

// ValidCurrency reports whether code is an ISO 4217 code known to go-money.
func ValidCurrency(code string) bool {
	return money.GetCurrency(code) != nil
}

// Display formats m in currency, e.g. "€1,234.50" for EUR.
func Display(m core.Money, currency string) string {
	if !ValidCurrency(currency) {
		return m.String()
	}
	return money.New(m.Cents(), currency).Display()
}
