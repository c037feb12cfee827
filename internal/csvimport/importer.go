package csvimport

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/BlakeDanielson/cyrustrack/internal/quantity"
	"github.com/BlakeDanielson/cyrustrack/internal/sessions"
	"go.uber.org/zap"
)

var (
	errMissingSessions = errors.New("session creator is required")
	// ErrEmptyInput indicates input with no header row.
	ErrEmptyInput = errors.New("csvimport: empty input")
	// ErrMissingColumn indicates a header without one of the required columns.
	ErrMissingColumn = errors.New("csvimport: missing required column")
)

// timestampLayouts are the accepted forms for the combined date/time column.
var timestampLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"1/2/2006 15:04",
	"1/2/2006 3:04 PM",
	"01/02/2006 15:04",
}

// SessionCreator is the slice of the session store the importer needs.
type SessionCreator interface {
	Create(ctx context.Context, draft sessions.Draft) (sessions.Session, error)
}

// RowError records one rejected data row. Row is the 1-based data row index,
// not counting the header.
type RowError struct {
	Row    int    `json:"row"`
	Reason string `json:"reason"`
}

// Result summarizes an import run.
type Result struct {
	Success  bool       `json:"success"`
	Imported int        `json:"imported"`
	Errors   []RowError `json:"errors"`
}

// ImporterConfig describes the dependencies for the batch importer.
type ImporterConfig struct {
	Sessions SessionCreator
	Logger   *zap.Logger
}

// Importer turns tab- or comma-separated rows into sessions. Rows are
// processed strictly sequentially; a malformed row is recorded and the
// import continues.
type Importer struct {
	sessions SessionCreator
	logger   *zap.Logger
}

// NewImporter constructs the importer.
func NewImporter(cfg ImporterConfig) (*Importer, error) {
	if cfg.Sessions == nil {
		return nil, fmt.Errorf("csvimport: %w", errMissingSessions)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{sessions: cfg.Sessions, logger: logger}, nil
}

// Import reads the full input and creates one session per parseable row.
// The delimiter is sniffed from the header: tab when present, else comma.
func (i *Importer) Import(ctx context.Context, input io.Reader) (Result, error) {
	buffered := bufio.NewReader(input)
	headerLine, err := buffered.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return Result{}, fmt.Errorf("csvimport: read header: %w", err)
	}
	if strings.TrimSpace(headerLine) == "" {
		return Result{}, ErrEmptyInput
	}

	delimiter := ','
	if strings.ContainsRune(headerLine, '\t') {
		delimiter = '\t'
	}

	reader := csv.NewReader(io.MultiReader(strings.NewReader(headerLine), buffered))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return Result{}, fmt.Errorf("csvimport: parse header: %w", err)
	}
	columns := mapColumns(header)

	for _, required := range []string{"instance", "timestamp", "location", "vessel", "strain", "quantity"} {
		if _, ok := columns[required]; !ok {
			return Result{}, fmt.Errorf("%w %q", ErrMissingColumn, required)
		}
	}

	result := Result{Errors: []RowError{}}
	rowIndex := 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		rowIndex++
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowIndex, Reason: err.Error()})
			continue
		}
		if isBlank(row) {
			continue
		}

		draft, err := i.draftFromRow(columns, row)
		if err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowIndex, Reason: err.Error()})
			continue
		}

		if _, err := i.sessions.Create(ctx, draft); err != nil {
			result.Errors = append(result.Errors, RowError{Row: rowIndex, Reason: err.Error()})
			continue
		}
		result.Imported++
	}

	result.Success = len(result.Errors) == 0
	i.logger.Info("csv import finished",
		zap.Int("imported", result.Imported),
		zap.Int("errors", len(result.Errors)))
	return result, nil
}

var columnAliases = map[string]string{
	"instance":          "instance",
	"instance id":       "instance",
	"id":                "instance",
	"timestamp":         "timestamp",
	"datetime":          "timestamp",
	"date/time":         "timestamp",
	"location":          "location",
	"vessel":            "vessel",
	"vessel category":   "vessel_category",
	"strain":            "strain",
	"strain name":       "strain",
	"strain type":       "strain_type",
	"thc":               "thc",
	"thc %":             "thc",
	"thc percentage":    "thc",
	"quantity":          "quantity",
	"amount":            "quantity",
	"who with":          "who_with",
	"companions":        "who_with",
	"comments":          "comments",
	"accessory":         "accessory",
	"accessory used":    "accessory",
	"my vessel":         "my_vessel",
	"my substance":      "my_substance",
	"purchased legally": "purchased_legally",
	"state purchased":   "state_purchased",
	"tobacco":           "tobacco",
	"kief":              "kief",
	"concentrate":       "concentrate",
	"lavender":          "lavender",
}

func mapColumns(header []string) map[string]int {
	columns := map[string]int{}
	for index, name := range header {
		normalized := strings.ToLower(strings.TrimSpace(name))
		if canonical, ok := columnAliases[normalized]; ok {
			if _, taken := columns[canonical]; !taken {
				columns[canonical] = index
			}
		}
	}
	return columns
}

func (i *Importer) draftFromRow(columns map[string]int, row []string) (sessions.Draft, error) {
	cell := func(name string) string {
		index, ok := columns[name]
		if !ok || index >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[index])
	}

	date, timeOfDay, err := parseTimestamp(cell("timestamp"))
	if err != nil {
		return sessions.Draft{}, err
	}

	vessel := cell("vessel")
	rawQuantity := cell("quantity")
	encoded, err := quantity.Encode(vessel, rawQuantity)
	if err != nil {
		return sessions.Draft{}, err
	}

	category := cell("vessel_category")
	if category == "" {
		category = quantity.CategoryFor(vessel)
	}

	draft := sessions.Draft{
		Date:           date,
		Time:           timeOfDay,
		Location:       cell("location"),
		VesselCategory: category,
		Vessel:         vessel,
		StrainName:     cell("strain"),
		StrainType:     cell("strain_type"),
		Quantity:       encoded.Wire(),
		StatePurchased: cell("state_purchased"),
		AccessoryUsed:  cell("accessory"),
		Companions:     sessions.SplitCompanions(cell("who_with")),
		Comments:       cell("comments"),
	}

	if raw := cell("thc"); raw != "" {
		value, err := strconv.ParseFloat(strings.TrimSuffix(raw, "%"), 64)
		if err == nil {
			draft.THCPercentage = &value
		}
	}

	if raw := cell("tobacco"); raw != "" {
		used, product := sessions.ParseTobacco(raw)
		draft.UsedTobacco = &used
		draft.TobaccoProduct = product
	}
	if value, ok := parseOptionalBool(cell("my_vessel")); ok {
		draft.MyVessel = &value
	}
	if value, ok := parseOptionalBool(cell("my_substance")); ok {
		draft.MySubstance = &value
	}
	if value, ok := parseOptionalBool(cell("purchased_legally")); ok {
		draft.PurchasedLegally = &value
	}
	if value, ok := parseOptionalBool(cell("kief")); ok {
		draft.Kief = &value
	}
	if value, ok := parseOptionalBool(cell("concentrate")); ok {
		draft.Concentrate = &value
	}
	if value, ok := parseOptionalBool(cell("lavender")); ok {
		draft.Lavender = &value
	}

	return draft, nil
}

func parseTimestamp(raw string) (string, string, error) {
	if raw == "" {
		return "", "", fmt.Errorf("csvimport: missing timestamp")
	}
	for _, layout := range timestampLayouts {
		parsed, err := time.Parse(layout, raw)
		if err == nil {
			return parsed.Format("2006-01-02"), parsed.Format("15:04"), nil
		}
	}
	return "", "", fmt.Errorf("csvimport: unparseable timestamp %q", raw)
}

func parseOptionalBool(raw string) (bool, bool) {
	switch strings.ToLower(raw) {
	case "true", "yes", "1":
		return true, true
	case "false", "no", "0":
		return false, true
	default:
		return false, false
	}
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
