package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/xuri/excelize/v2"

	"github.com/wonny/demandcast/internal/contracts"
	"github.com/wonny/demandcast/pkg/logger"
)

const stage = "ingest"

// Loader parses uploaded sales files into raw records. Header names are
// matched loosely so exports from different systems load without remapping.
type Loader struct {
	log      *logger.Logger
	validate *validator.Validate
}

// NewLoader creates a Loader.
func NewLoader(log *logger.Logger) *Loader {
	return &Loader{
		log:      log.WithComponent("ingest"),
		validate: validator.New(),
	}
}

// columnRole identifies what a header column means.
type columnRole int

const (
	roleNone columnRole = iota
	roleDate
	roleQuantity
	rolePrice
	roleProduct
	roleStore
	roleSegment
)

var headerSynonyms = map[string]columnRole{
	"date":             roleDate,
	"order_date":       roleDate,
	"sale_date":        roleDate,
	"day":              roleDate,
	"quantity":         roleQuantity,
	"qty":              roleQuantity,
	"units":            roleQuantity,
	"demand":           roleQuantity,
	"sales":            roleQuantity,
	"units_sold":       roleQuantity,
	"price":            rolePrice,
	"unit_price":       rolePrice,
	"product":          roleProduct,
	"product_id":       roleProduct,
	"sku":              roleProduct,
	"item":             roleProduct,
	"store":            roleStore,
	"shop":             roleStore,
	"location":         roleStore,
	"segment":          roleSegment,
	"customer_segment": roleSegment,
	"channel":          roleSegment,
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"01/02/2006",
	"02.01.2006",
	time.RFC3339,
}

// LoadFile reads a CSV or Excel file from disk based on its extension.
func (l *Loader) LoadFile(path string) ([]contracts.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return l.LoadCSV(f)
	case ".xlsx", ".xlsm":
		return l.LoadExcel(f)
	default:
		return nil, contracts.Validationf(stage, "unsupported file type %q", filepath.Ext(path))
	}
}

// LoadCSV parses comma-separated sales data with a header row.
func (l *Loader) LoadCSV(r io.Reader) ([]contracts.RawRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, contracts.Validationf(stage, "malformed CSV: %v", err)
	}
	return l.parseRows(rows)
}

// LoadExcel parses the first sheet of a workbook with a header row.
func (l *Loader) LoadExcel(r io.Reader) ([]contracts.RawRecord, error) {
	book, err := excelize.OpenReader(r)
	if err != nil {
		return nil, contracts.Validationf(stage, "malformed workbook: %v", err)
	}
	defer book.Close()

	sheet := book.GetSheetName(0)
	rows, err := book.GetRows(sheet)
	if err != nil {
		return nil, contracts.Validationf(stage, "read sheet %q: %v", sheet, err)
	}
	return l.parseRows(rows)
}

func (l *Loader) parseRows(rows [][]string) ([]contracts.RawRecord, error) {
	if len(rows) < 2 {
		return nil, contracts.Validationf(stage, "file has no data rows")
	}

	roles := make([]columnRole, len(rows[0]))
	haveDate, haveQty := false, false
	for i, h := range rows[0] {
		key := strings.ToLower(strings.TrimSpace(h))
		key = strings.ReplaceAll(key, " ", "_")
		roles[i] = headerSynonyms[key]
		haveDate = haveDate || roles[i] == roleDate
		haveQty = haveQty || roles[i] == roleQuantity
	}
	if !haveDate || !haveQty {
		return nil, contracts.Validationf(stage, "header must contain a date and a quantity column")
	}

	records := make([]contracts.RawRecord, 0, len(rows)-1)
	for lineNo, row := range rows[1:] {
		if isBlank(row) {
			continue
		}
		rec := contracts.RawRecord{Quantity: math.NaN(), UnitPrice: math.NaN()}
		for i, cell := range row {
			if i >= len(roles) {
				break
			}
			cell = strings.TrimSpace(cell)
			switch roles[i] {
			case roleDate:
				d, err := parseDate(cell)
				if err != nil {
					return nil, contracts.Validationf(stage, "row %d: %v", lineNo+2, err)
				}
				rec.Date = d
			case roleQuantity:
				rec.Quantity = parseFloatOrNaN(cell)
			case rolePrice:
				rec.UnitPrice = parseFloatOrNaN(cell)
			case roleProduct:
				rec.ProductID = cell
			case roleStore:
				rec.Store = cell
			case roleSegment:
				rec.Segment = cell
			}
		}
		if err := l.validate.Struct(rec); err != nil {
			return nil, contracts.Validationf(stage, "row %d: missing required fields", lineNo+2)
		}
		records = append(records, rec)
	}

	if len(records) == 0 {
		return nil, contracts.Validationf(stage, "file has no data rows")
	}

	l.log.WithField("records", len(records)).Info("upload parsed")
	return records, nil
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

// parseFloatOrNaN treats empty or unparseable cells as missing values; the
// cleaning stage imputes them.
func parseFloatOrNaN(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
