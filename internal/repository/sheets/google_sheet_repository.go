package sheets

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/mvbarros/estoque/internal/config"
)

// ErrSheetNotFound indicates the addressed sheet does not exist in the
// spreadsheet. Callers must treat this as fatal for the operation, never as
// an empty result.
var ErrSheetNotFound = errors.New("sheet not found")

// Repository defines the tabular persistence operations supported by the
// Google Sheets adapter. Rows are header-keyed: row 1 of every sheet is the
// header and appends are ordered to match whatever the header currently is.
type Repository interface {
	ReadRows(ctx context.Context, sheet string) ([]Record, error)
	AppendRow(ctx context.Context, sheet string, fields map[string]interface{}) error
	UpdateCell(ctx context.Context, sheet string, row int, column string, value interface{}) error
}

// GoogleSheetRepository implements the Repository interface using the
// official Google Sheets API, with exponential-backoff retries around every
// call since the service is remote and rate limited.
type GoogleSheetRepository struct {
	service       *sheetsapi.Service
	spreadsheetID string
	attempts      int
	baseDelay     time.Duration
	logger        *zap.Logger
}

// NewGoogleSheetRepository builds a Google Sheets backed repository instance.
func NewGoogleSheetRepository(ctx context.Context, cfg config.SheetsConfig, retry config.RetryConfig, logger *zap.Logger) (Repository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	service, err := sheetsapi.NewService(ctx, option.WithCredentialsFile(cfg.CredentialsPath), option.WithScopes(sheetsapi.SpreadsheetsScope))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize sheets client: %w", err)
	}

	return &GoogleSheetRepository{
		service:       service,
		spreadsheetID: cfg.SpreadsheetID,
		attempts:      retry.Attempts,
		baseDelay:     retry.BaseDelay,
		logger:        logger,
	}, nil
}

// ReadRows fetches every data row of the sheet as header-keyed records.
func (r *GoogleSheetRepository) ReadRows(ctx context.Context, sheet string) ([]Record, error) {
	if sheet == "" {
		return nil, fmt.Errorf("sheet must not be empty")
	}

	var resp *sheetsapi.ValueRange
	err := withRetry(ctx, r.logger, r.attempts, r.baseDelay, "read "+sheet, func() error {
		got, err := r.service.Spreadsheets.Values.Get(r.spreadsheetID, sheet).Context(ctx).Do()
		if err != nil {
			return err
		}
		resp = got
		return nil
	})
	if err != nil {
		return nil, wrapNotFound(err, sheet)
	}

	if len(resp.Values) == 0 {
		return nil, fmt.Errorf("sheet %s has no header row", sheet)
	}

	header := headerNames(resp.Values[0])
	records := make([]Record, 0, len(resp.Values)-1)
	for i, cells := range resp.Values[1:] {
		records = append(records, NewRecord(header, cells, i+2))
	}

	r.logger.Debug("rows read from sheet", zap.String("sheet", sheet), zap.Int("rows", len(records)))
	return records, nil
}

// AppendRow appends one row with values ordered to match the sheet's current
// header. Fields without a matching header column are dropped; header columns
// without a field are written empty.
func (r *GoogleSheetRepository) AppendRow(ctx context.Context, sheet string, fields map[string]interface{}) error {
	if sheet == "" {
		return fmt.Errorf("sheet must not be empty")
	}

	header, err := r.readHeader(ctx, sheet)
	if err != nil {
		return err
	}

	values := orderByHeader(header, fields)
	payload := &sheetsapi.ValueRange{Values: [][]interface{}{values}}

	err = withRetry(ctx, r.logger, r.attempts, r.baseDelay, "append "+sheet, func() error {
		_, err := r.service.Spreadsheets.Values.Append(r.spreadsheetID, sheet, payload).
			ValueInputOption("USER_ENTERED").
			InsertDataOption("INSERT_ROWS").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("append row into sheet %s: %w", sheet, err)
	}

	r.logger.Debug("row appended to sheet", zap.String("sheet", sheet))
	return nil
}

// UpdateCell writes a single cell addressed by 1-based sheet row and header
// column name.
func (r *GoogleSheetRepository) UpdateCell(ctx context.Context, sheet string, row int, column string, value interface{}) error {
	if sheet == "" {
		return fmt.Errorf("sheet must not be empty")
	}
	if row < 2 {
		return fmt.Errorf("row %d is not a data row", row)
	}

	header, err := r.readHeader(ctx, sheet)
	if err != nil {
		return err
	}

	colIdx := -1
	for i, name := range header {
		if equalFold(name, column) {
			colIdx = i
			break
		}
	}
	if colIdx < 0 {
		return fmt.Errorf("sheet %s has no column %q", sheet, column)
	}

	cellRef := fmt.Sprintf("%s!%s%d", sheet, columnLetter(colIdx), row)
	payload := &sheetsapi.ValueRange{Values: [][]interface{}{{value}}}

	err = withRetry(ctx, r.logger, r.attempts, r.baseDelay, "update "+cellRef, func() error {
		_, err := r.service.Spreadsheets.Values.Update(r.spreadsheetID, cellRef, payload).
			ValueInputOption("USER_ENTERED").
			Context(ctx).
			Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("update cell %s: %w", cellRef, err)
	}

	r.logger.Debug("cell updated", zap.String("cell", cellRef))
	return nil
}

func (r *GoogleSheetRepository) readHeader(ctx context.Context, sheet string) ([]string, error) {
	var resp *sheetsapi.ValueRange
	err := withRetry(ctx, r.logger, r.attempts, r.baseDelay, "read header "+sheet, func() error {
		got, err := r.service.Spreadsheets.Values.Get(r.spreadsheetID, sheet+"!1:1").Context(ctx).Do()
		if err != nil {
			return err
		}
		resp = got
		return nil
	})
	if err != nil {
		return nil, wrapNotFound(err, sheet)
	}

	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		return nil, fmt.Errorf("sheet %s has no header row", sheet)
	}

	return headerNames(resp.Values[0]), nil
}

func headerNames(cells []interface{}) []string {
	names := make([]string, len(cells))
	for i, cell := range cells {
		names[i] = toString(cell)
	}
	return names
}

func orderByHeader(header []string, fields map[string]interface{}) []interface{} {
	normalized := make(map[string]interface{}, len(fields))
	for key, value := range fields {
		normalized[foldKey(key)] = value
	}

	values := make([]interface{}, len(header))
	for i, name := range header {
		if value, ok := normalized[foldKey(name)]; ok {
			values[i] = value
		} else {
			values[i] = ""
		}
	}
	return values
}

// The Sheets API reports a missing sheet as an unparseable range.
func wrapNotFound(err error, sheet string) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == 400 || apiErr.Code == 404) {
		return fmt.Errorf("%w: %s: %v", ErrSheetNotFound, sheet, err)
	}
	return err
}

func foldKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func equalFold(a, b string) bool {
	return foldKey(a) == foldKey(b)
}

func columnLetter(index int) string {
	letters := ""
	for index >= 0 {
		letters = string(rune('A'+index%26)) + letters
		index = index/26 - 1
	}
	return letters
}
