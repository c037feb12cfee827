package quantity

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Type enumerates the supported quantity encodings.
type Type string

const (
	// TypeDecimal stores a literal decimal amount, typically grams.
	TypeDecimal Type = "decimal"
	// TypeMilligrams stores a literal milligram amount.
	TypeMilligrams Type = "milligrams"
	// TypeSizeCategory stores an index into the ordered size scale.
	TypeSizeCategory Type = "size_category"
)

var (
	// ErrInvalidAmount indicates a raw numeric input that failed to parse.
	ErrInvalidAmount = errors.New("quantity: invalid amount")
	// ErrUnknownSize indicates a size label outside the ordered scale.
	ErrUnknownSize = errors.New("quantity: unknown size category")
	// ErrInvalidValue indicates a wire value that cannot be decoded.
	ErrInvalidValue = errors.New("quantity: invalid wire value")
	// ErrTypeMismatch indicates a wire value whose type conflicts with the
	// vessel's configured quantity type.
	ErrTypeMismatch = errors.New("quantity: type does not match vessel")
)

// sizeScale is the ordered small-to-large scale. The stored amount for
// size_category values is an index into this table, so the table is part of
// the wire contract and must never be reordered.
var sizeScale = [...]string{"tiny", "small", "medium", "large"}

// Value is the wire representation of a quantity. For size_category values
// Amount is an index into the size scale, not a literal quantity.
type Value struct {
	Amount float64 `json:"amount"`
	Unit   string  `json:"unit"`
	Type   Type    `json:"type"`
}

// VesselConfig describes how a vessel measures quantity and how the input
// field should present itself.
type VesselConfig struct {
	Type        Type
	Unit        string
	Category    string
	Step        float64
	Placeholder string
}

var vesselConfigs = map[string]VesselConfig{
	"Joint":     {Type: TypeDecimal, Unit: "g", Category: "Flower - Rolled", Step: 0.1, Placeholder: "0.5"},
	"Blunt":     {Type: TypeDecimal, Unit: "g", Category: "Flower - Rolled", Step: 0.1, Placeholder: "1.0"},
	"Pipe":      {Type: TypeSizeCategory, Unit: "bowl size", Category: "Glass"},
	"Bong":      {Type: TypeSizeCategory, Unit: "bowl size", Category: "Glass"},
	"Bubbler":   {Type: TypeSizeCategory, Unit: "bowl size", Category: "Glass"},
	"Vaporizer": {Type: TypeMilligrams, Unit: "mg", Category: "Vaporizer", Step: 1, Placeholder: "10"},
	"Edible":    {Type: TypeMilligrams, Unit: "mg", Category: "Ingestible", Step: 1, Placeholder: "10"},
	"Tincture":  {Type: TypeMilligrams, Unit: "mg", Category: "Ingestible", Step: 1, Placeholder: "5"},
	"Dab Rig":   {Type: TypeDecimal, Unit: "g", Category: "Glass", Step: 0.05, Placeholder: "0.1"},
}

var defaultVesselConfig = VesselConfig{Type: TypeDecimal, Unit: "units", Category: "Other", Step: 0.1, Placeholder: "1"}

// ConfigFor returns the configuration for a vessel. Unknown vessels fall back
// to the default "Other" configuration so new vessel names degrade gracefully.
func ConfigFor(vessel string) VesselConfig {
	if cfg, ok := vesselConfigs[strings.TrimSpace(vessel)]; ok {
		return cfg
	}
	return defaultVesselConfig
}

// CategoryFor returns the coarse device class for a vessel, falling back to
// the default configuration's category for unknown names.
func CategoryFor(vessel string) string {
	return ConfigFor(vessel).Category
}

// Vessels lists the configured vessel names in no particular order.
func Vessels() []string {
	names := make([]string, 0, len(vesselConfigs))
	for name := range vesselConfigs {
		names = append(names, name)
	}
	return names
}

// SizeLabels returns the ordered size scale labels.
func SizeLabels() []string {
	labels := make([]string, len(sizeScale))
	copy(labels, sizeScale[:])
	return labels
}

// Quantity is the decoded, variant-typed form of a wire Value. Exactly one
// concrete type exists per quantity Type, so callers never inspect a tag
// before interpreting the amount.
type Quantity interface {
	// Display renders the human-facing string for the quantity.
	Display() string
	// Wire returns the encoded triple for storage and transport.
	Wire() Value

	sealedQuantity()
}

// Decimal is a literal decimal amount with its unit label.
type Decimal struct {
	Amount float64
	Unit   string
}

func (q Decimal) Display() string {
	return formatAmount(q.Amount) + " " + q.Unit
}

func (q Decimal) Wire() Value {
	return Value{Amount: q.Amount, Unit: q.Unit, Type: TypeDecimal}
}

func (Decimal) sealedQuantity() {}

// Milligrams is a literal milligram amount.
type Milligrams struct {
	Amount float64
}

func (q Milligrams) Display() string {
	return formatAmount(q.Amount) + " mg"
}

func (q Milligrams) Wire() Value {
	return Value{Amount: q.Amount, Unit: "mg", Type: TypeMilligrams}
}

func (Milligrams) sealedQuantity() {}

// SizeCategory is an index into the ordered size scale plus the vessel's
// unit label.
type SizeCategory struct {
	Index int
	Unit  string
}

// Label returns the scale label for the stored index.
func (q SizeCategory) Label() string {
	if q.Index < 0 || q.Index >= len(sizeScale) {
		return "unknown"
	}
	return sizeScale[q.Index]
}

func (q SizeCategory) Display() string {
	return q.Label() + " " + q.Unit
}

func (q SizeCategory) Wire() Value {
	return Value{Amount: float64(q.Index), Unit: q.Unit, Type: TypeSizeCategory}
}

func (SizeCategory) sealedQuantity() {}

// Encode converts raw form input for the given vessel into a Quantity. The
// vessel's configuration decides how the raw value is interpreted.
func Encode(vessel, raw string) (Quantity, error) {
	cfg := ConfigFor(vessel)
	trimmed := strings.TrimSpace(raw)

	switch cfg.Type {
	case TypeSizeCategory:
		lowered := strings.ToLower(trimmed)
		for index, label := range sizeScale {
			if label == lowered {
				return SizeCategory{Index: index, Unit: cfg.Unit}, nil
			}
		}
		return nil, fmt.Errorf("%w: %q", ErrUnknownSize, raw)
	case TypeMilligrams:
		amount, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
		}
		return Milligrams{Amount: amount}, nil
	default:
		amount, err := strconv.ParseFloat(trimmed, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
		}
		return Decimal{Amount: amount, Unit: cfg.Unit}, nil
	}
}

// Decode converts a stored wire value back into its typed variant.
func Decode(value Value) (Quantity, error) {
	switch value.Type {
	case TypeDecimal:
		return Decimal{Amount: value.Amount, Unit: value.Unit}, nil
	case TypeMilligrams:
		return Milligrams{Amount: value.Amount}, nil
	case TypeSizeCategory:
		index := int(value.Amount)
		if float64(index) != value.Amount || index < 0 || index >= len(sizeScale) {
			return nil, fmt.Errorf("%w: size index %v", ErrInvalidValue, value.Amount)
		}
		return SizeCategory{Index: index, Unit: value.Unit}, nil
	default:
		return nil, fmt.Errorf("%w: unknown type %q", ErrInvalidValue, value.Type)
	}
}

// ValidateForVessel rejects wire values whose type does not match the
// vessel's configured quantity type. A size index decoded as a literal
// amount produces nonsense, so stores enforce this before persisting.
func ValidateForVessel(vessel string, value Value) error {
	cfg := ConfigFor(vessel)
	if value.Type != cfg.Type {
		return fmt.Errorf("%w: vessel %q expects %s, got %s", ErrTypeMismatch, vessel, cfg.Type, value.Type)
	}
	if value.Type == TypeSizeCategory {
		if _, err := Decode(value); err != nil {
			return err
		}
	}
	return nil
}

func formatAmount(amount float64) string {
	return strconv.FormatFloat(amount, 'f', -1, 64)
}
