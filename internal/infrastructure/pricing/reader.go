package pricing

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/catalogsync/backend/internal/domain"
	"github.com/catalogsync/backend/internal/logger"
)

// DefaultSheet is preferred over the first sheet when a workbook has it
const DefaultSheet = "Pricing"

// column aliases, compared after lowercasing and dropping spaces, underscores, slashes and hyphens
var columnAliases = map[string][]string{
	"item":     {"item", "itemname"},
	"mrp":      {"mrppack", "mrp"},
	"selling":  {"sellingprice", "selling"},
	"discount": {"discount%", "discount"},
}

var required = []string{"item", "mrp", "selling"}

// Reader is a PricingSource over a CSV or XLSX file
type Reader struct {
	path    string
	sheet   string
	charset string
}

// NewReader creates a reader for the sheet at path. sheet only applies to workbooks;
// charset only applies to CSV ("" or "utf-8", "windows-1252", "iso-8859-1").
func NewReader(path, sheet, charset string) *Reader {
	return &Reader{path: path, sheet: sheet, charset: charset}
}

// Rows reads every pricing row of the file
func (r *Reader) Rows(ctx context.Context) ([]domain.PricingRow, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := Parse(ctx, f, filepath.Base(r.path), r.sheet, r.charset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", r.path, err)
	}
	return rows, nil
}

// Parse reads pricing rows from a CSV or XLSX stream; the format is chosen by file extension
func Parse(ctx context.Context, src io.Reader, filename, sheet, charset string) ([]domain.PricingRow, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return ParseXLSX(ctx, src, sheet)
	case ".csv", ".txt", "":
		return ParseCSV(ctx, src, charset)
	default:
		return nil, fmt.Errorf("unsupported pricing file type %q", filepath.Ext(filename))
	}
}

// ParseCSV reads a CSV sheet. Lines that fail to parse are skipped and counted in the log.
func ParseCSV(ctx context.Context, src io.Reader, charset string) ([]domain.PricingRow, error) {
	log := logger.Component(ctx, "pricing")

	dec, err := decoder(charset)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(transform.NewReader(src, dec))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: sheet is empty", domain.ErrMissingColumn)
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := mapColumns(header)
	if err != nil {
		return nil, err
	}

	var rows []domain.PricingRow
	skipped := 0
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		var parseErr *csv.ParseError
		if errors.As(err, &parseErr) {
			skipped++
			log.Warn().Int("line", parseErr.StartLine).Err(parseErr.Err).Msg("unreadable line skipped")
			continue
		}
		if err != nil {
			return nil, err
		}

		line, _ := cr.FieldPos(0)
		if row, ok := cols.row(line, record); ok {
			rows = append(rows, row)
		}
	}

	log.Info().Int("rows", len(rows)).Int("skipped_lines", skipped).Msg("csv read")
	return rows, nil
}

// ParseXLSX reads the configured sheet, the Pricing sheet, or the first sheet of a workbook
func ParseXLSX(ctx context.Context, src io.Reader, sheet string) ([]domain.PricingRow, error) {
	f, err := excelize.OpenReader(src)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	name, err := pickSheet(f.GetSheetList(), sheet)
	if err != nil {
		return nil, err
	}

	records, err := f.GetRows(name)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", name, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: sheet %q is empty", domain.ErrMissingColumn, name)
	}

	cols, err := mapColumns(records[0])
	if err != nil {
		return nil, err
	}

	var rows []domain.PricingRow
	for i, record := range records[1:] {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// header is spreadsheet line 1
		if row, ok := cols.row(i+2, record); ok {
			rows = append(rows, row)
		}
	}

	logger.Component(ctx, "pricing").Info().Str("sheet", name).Int("rows", len(rows)).Msg("workbook read")
	return rows, nil
}

func pickSheet(sheets []string, want string) (string, error) {
	if len(sheets) == 0 {
		return "", fmt.Errorf("%w: workbook has no sheets", domain.ErrMissingColumn)
	}
	if want != "" {
		for _, s := range sheets {
			if s == want {
				return s, nil
			}
		}
		return "", fmt.Errorf("sheet %q not found (have %s)", want, strings.Join(sheets, ", "))
	}
	for _, s := range sheets {
		if strings.EqualFold(s, DefaultSheet) {
			return s, nil
		}
	}
	return sheets[0], nil
}

type columns map[string]int

func mapColumns(header []string) (columns, error) {
	cols := make(columns)
	for i, h := range header {
		key := headerKey(h)
		for field, aliases := range columnAliases {
			if _, taken := cols[field]; taken {
				continue
			}
			for _, a := range aliases {
				if key == a {
					cols[field] = i
				}
			}
		}
	}

	var missing []string
	for _, field := range required {
		if _, ok := cols[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s (header: %s)", domain.ErrMissingColumn,
			strings.Join(missing, ", "), strings.Join(header, " | "))
	}
	return cols, nil
}

// row builds a pricing row; blank lines are dropped
func (c columns) row(line int, record []string) (domain.PricingRow, bool) {
	get := func(field string) string {
		i, ok := c[field]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	row := domain.PricingRow{
		Line:     line,
		ItemName: get("item"),
		MRP:      get("mrp"),
		Selling:  get("selling"),
		Discount: get("discount"),
	}
	if row.ItemName == "" && row.MRP == "" && row.Selling == "" {
		return row, false
	}
	return row, true
}

func headerKey(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.NewReplacer(" ", "", "_", "", "/", "", "-", "").Replace(h)
}

func decoder(charset string) (transform.Transformer, error) {
	var enc encoding.Encoding
	switch strings.ToLower(strings.TrimSpace(charset)) {
	case "", "utf-8", "utf8":
		return unicode.BOMOverride(unicode.UTF8.NewDecoder()), nil
	case "windows-1252", "cp1252":
		enc = charmap.Windows1252
	case "iso-8859-1", "latin1":
		enc = charmap.ISO8859_1
	default:
		return nil, fmt.Errorf("unsupported charset %q", charset)
	}
	return enc.NewDecoder(), nil
}
