package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"totalx/internal/core"
)

func TestXLSX(t *testing.T) {
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	doc := core.BuildDocument([]core.Movement{
		{Principal: "@mario", Amount: core.MoneyFromCents(10000), Timestamp: ts},
		{Principal: "@mario", Amount: core.MoneyFromCents(-3050), Timestamp: ts},
	})

	data, err := XLSX(doc)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Estratto Conto")
	require.NoError(t, err)
	require.Len(t, rows, 7)
	assert.Equal(t, []string{"Tipo", "Importo", "Utente", "Data"}, rows[0])
	assert.Equal(t, []string{"Entrata", "100", "@mario", "2024-05-01 12:00:00"}, rows[1])
	assert.Equal(t, "Uscita", rows[2][0])
	assert.Empty(t, rows[3])
	assert.Equal(t, []string{"Totale Entrate", "100"}, rows[4])
	assert.Equal(t, []string{"Totale Uscite", "-30.5"}, rows[5])
	assert.Equal(t, []string{"Saldo Finale", "69.5"}, rows[6])
}

func TestXLSXEmptyStore(t *testing.T) {
	data, err := XLSX(core.BuildDocument(nil))
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("Estratto Conto")
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, []string{"Saldo Finale", "0"}, rows[4])
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "estratto_conto_export_admin.xlsx", FileName(core.AdminKey()))
	assert.Equal(t, "estratto_conto_export_mario.xlsx", FileName(core.PersonalKey(core.MustIdentity("@Mario"))))
	assert.Equal(t, "estratto_conto_export_a%2Fb.xlsx", FileName(core.PersonalKey(core.MustIdentity("@a/b"))))
}
