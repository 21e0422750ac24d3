package services

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"notifyhub/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildXLSX(t *testing.T, rows [][]interface{}) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestImportService_PreviewXLSX(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice", models.RoleUser)
	bob := createTestUser(t, db, "bob", models.RoleUser)

	amy := createTestCustomer(t, db, alice.ID, "U1", "Amy")
	createTestCustomer(t, db, alice.ID, "U9", "Amy")
	createTestCustomer(t, db, bob.ID, "U2", "Carol")

	data := buildXLSX(t, [][]interface{}{
		{"Name", "Order"},
		{"Amy", "A-1"},
		{"", "skipped"},
		{"Carol", "C-1"},
		{"Dan", "D-1"},
	})

	svc := NewImportService(db)
	preview, err := svc.Preview(testCtx(), alice.ID, "orders.xlsx", bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Order"}, preview.Headers)
	require.Len(t, preview.Matched, 1)
	assert.Equal(t, amy.ID, preview.Matched[0].CustomerID)
	assert.Equal(t, "U1", preview.Matched[0].LineUID)
	assert.Equal(t, map[string]string{"Name": "Amy", "Order": "A-1"}, preview.Matched[0].Row)

	// Carol belongs to another tenant
	assert.Equal(t, []string{"Carol", "Dan"}, preview.Unmatched)
}

func TestImportService_PreviewXLS(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice", models.RoleUser)
	amy := createTestCustomer(t, db, user.ID, "U1", "Amy")
	tester := createTestCustomer(t, db, user.ID, "U2", "測試員")

	// Row 3 has no record and the last row is blank
	data, err := os.ReadFile(filepath.Join("testdata", "customers.xls"))
	require.NoError(t, err)

	svc := NewImportService(db)
	preview, err := svc.Preview(testCtx(), user.ID, "customers.XLS", bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []string{"Name", "Order", "Note"}, preview.Headers)
	require.Len(t, preview.Matched, 2)
	assert.Equal(t, amy.ID, preview.Matched[0].CustomerID)
	assert.Equal(t, map[string]string{"Name": "Amy", "Order": "A-1", "Note": ""}, preview.Matched[0].Row)
	assert.Equal(t, tester.ID, preview.Matched[1].CustomerID)
	assert.Equal(t, "vip", preview.Matched[1].Row["Note"])
	assert.Equal(t, []string{"Dan"}, preview.Unmatched)
}

func TestImportService_MalformedXLS(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice", models.RoleUser)
	svc := NewImportService(db)

	garbage := bytes.Repeat([]byte("not a workbook "), 64)
	_, err := svc.Preview(testCtx(), user.ID, "broken.xls", bytes.NewReader(garbage))
	require.Error(t, err)
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Contains(t, err.Error(), "failed to parse spreadsheet: ")
}

func TestTrimTrailingEmptyRows(t *testing.T) {
	rows := [][]string{{"Name"}, {"Amy"}, nil, {"", " "}, {}}
	assert.Equal(t, [][]string{{"Name"}, {"Amy"}}, trimTrailingEmptyRows(rows))
	assert.Empty(t, trimTrailingEmptyRows([][]string{{""}}))
}

func TestImportService_PreviewCSV(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice", models.RoleUser)
	createTestCustomer(t, db, user.ID, "U1", "測試員")

	csvData := "\xef\xbb\xbfname,amount\n測試員,300\nNobody,1\n"
	svc := NewImportService(db)
	preview, err := svc.Preview(testCtx(), user.ID, "list.CSV", strings.NewReader(csvData))
	require.NoError(t, err)

	assert.Equal(t, []string{"name", "amount"}, preview.Headers)
	require.Len(t, preview.Matched, 1)
	assert.Equal(t, "300", preview.Matched[0].Row["amount"])
	assert.Equal(t, []string{"Nobody"}, preview.Unmatched)
}

func TestImportService_Errors(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice", models.RoleUser)
	svc := NewImportService(db)

	_, err := svc.Preview(testCtx(), user.ID, "notes.txt", strings.NewReader("a,b"))
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Contains(t, err.Error(), "unsupported file type")

	_, err = svc.Preview(testCtx(), user.ID, "broken.xlsx", strings.NewReader("not a zip file"))
	assert.Equal(t, KindValidation, KindOf(err))
	assert.Contains(t, err.Error(), "failed to parse spreadsheet")

	_, err = svc.Preview(testCtx(), user.ID, "empty.csv", strings.NewReader(""))
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestImportService_HeaderOnly(t *testing.T) {
	db := newTestDB(t)
	user := createTestUser(t, db, "alice", models.RoleUser)
	svc := NewImportService(db)

	preview, err := svc.Preview(testCtx(), user.ID, "h.csv", strings.NewReader("name,,x\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "column_2", "x"}, preview.Headers)
	assert.Empty(t, preview.Matched)
	assert.Empty(t, preview.Unmatched)
}
