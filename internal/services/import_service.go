package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"notifyhub/internal/models"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

// MaxImportSize bounds the size of an uploaded spreadsheet
const MaxImportSize = 10 << 20

// ImportService matches spreadsheet rows against the customer directory
type ImportService struct {
	db *gorm.DB
}

// NewImportService creates a new import service
func NewImportService(db *gorm.DB) *ImportService {
	return &ImportService{db: db}
}

// ImportMatch is a spreadsheet row bound to a customer
type ImportMatch struct {
	CustomerID uint              `json:"customer_id"`
	LineUID    string            `json:"line_uid"`
	CustomName string            `json:"custom_name"`
	Row        map[string]string `json:"row"`
}

// ImportPreview is the outcome of matching a spreadsheet
type ImportPreview struct {
	Headers   []string      `json:"headers"`
	Matched   []ImportMatch `json:"matched"`
	Unmatched []string      `json:"unmatched"`
}

// Preview parses a spreadsheet and matches its first column against the
// custom names of userID's customers. Nothing is written.
func (s *ImportService) Preview(ctx context.Context, userID uint, filename string, r io.Reader) (*ImportPreview, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImportSize+1))
	if err != nil {
		return nil, Wrap(err, "failed to read upload")
	}
	if len(data) > MaxImportSize {
		return nil, ValidationError("file exceeds %d bytes", MaxImportSize)
	}

	rows, err := readRows(filename, data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ValidationError("spreadsheet is empty")
	}

	headers := normalizeHeaders(rows[0])
	preview := &ImportPreview{Headers: headers, Matched: []ImportMatch{}, Unmatched: []string{}}

	type pending struct {
		name string
		row  map[string]string
	}
	var entries []pending
	var names []string
	for _, cells := range rows[1:] {
		if len(cells) == 0 {
			continue
		}
		name := strings.TrimSpace(cells[0])
		if name == "" {
			continue
		}
		entries = append(entries, pending{name: name, row: rowMap(headers, cells)})
		names = append(names, name)
	}
	if len(entries) == 0 {
		return preview, nil
	}

	var customers []models.Customer
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND custom_name IN ?", userID, uniqueStrings(names)).
		Order("id ASC").
		Find(&customers).Error
	if err != nil {
		return nil, Wrap(err, "failed to match customers")
	}

	// Lowest id wins when several customers share a name
	byName := make(map[string]models.Customer, len(customers))
	for _, c := range customers {
		if _, ok := byName[c.CustomName]; !ok {
			byName[c.CustomName] = c
		}
	}

	for _, entry := range entries {
		customer, ok := byName[entry.name]
		if !ok {
			preview.Unmatched = append(preview.Unmatched, entry.name)
			continue
		}
		preview.Matched = append(preview.Matched, ImportMatch{
			CustomerID: customer.ID,
			LineUID:    customer.LineUID,
			CustomName: customer.CustomName,
			Row:        entry.row,
		})
	}
	return preview, nil
}

// readRows returns the cells of the first sheet, row by row
func readRows(filename string, data []byte) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return readXLSX(data)
	case ".xls":
		return readXLS(data)
	case ".csv":
		return readCSV(data)
	default:
		return nil, ValidationError("unsupported file type, expected .xlsx, .xls or .csv")
	}
}

func readXLSX(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, parseError(err)
	}
	defer f.Close()

	rows, err := f.GetRows(f.GetSheetName(0))
	if err != nil {
		return nil, parseError(err)
	}
	return rows, nil
}

func readXLS(data []byte) (rows [][]string, err error) {
	// The xls reader panics on some malformed input
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, parseError(fmt.Errorf("%v", r))
		}
	}()

	wb, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, parseError(err)
	}
	if wb == nil {
		return nil, parseError(fmt.Errorf("no workbook stream found"))
	}
	sheet := wb.GetSheet(0)
	if sheet == nil {
		return nil, parseError(fmt.Errorf("workbook has no sheets"))
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := xlsRow(sheet, i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]string, 0, row.LastCol())
		for c := 0; c < row.LastCol(); c++ {
			cells = append(cells, row.Col(c))
		}
		rows = append(rows, cells)
	}
	return trimTrailingEmptyRows(rows), nil
}

// xlsRow returns row i of sheet, nil when the sheet has no record for it
func xlsRow(sheet *xls.WorkSheet, i int) (row *xls.Row) {
	defer func() {
		if recover() != nil {
			row = nil
		}
	}()
	return sheet.Row(i)
}

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, parseError(err)
	}
	return rows, nil
}

func parseError(err error) error {
	return ValidationError("failed to parse spreadsheet: %v", err)
}

func normalizeHeaders(cells []string) []string {
	headers := make([]string, len(cells))
	for i, cell := range cells {
		headers[i] = strings.TrimSpace(cell)
		if headers[i] == "" {
			headers[i] = fmt.Sprintf("column_%d", i+1)
		}
	}
	return headers
}

func rowMap(headers, cells []string) map[string]string {
	row := make(map[string]string, len(headers))
	for i, header := range headers {
		if i < len(cells) {
			row[header] = strings.TrimSpace(cells[i])
		} else {
			row[header] = ""
		}
	}
	return row
}

func trimTrailingEmptyRows(rows [][]string) [][]string {
	for len(rows) > 0 {
		last := rows[len(rows)-1]
		empty := true
		for _, cell := range last {
			if strings.TrimSpace(cell) != "" {
				empty = false
				break
			}
		}
		if !empty {
			break
		}
		rows = rows[:len(rows)-1]
	}
	return rows
}

func uniqueStrings(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
