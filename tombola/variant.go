package tombola

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
)

//go:embed variants/*.json
var variantFiles embed.FS

var (
	ErrVariantNotFound         = errors.New("game variant not found")
	ErrUnsupportedVariantRange = errors.New("variant range does not fit the 9-column card layout")
)

// DefaultVariant is used when a game is created without an explicit variant.
const DefaultVariant = "Napoletana"

// Variant is a named ruleset fixing the extractable range and the captions read
// out for each number.
type Variant struct {
	Name           string         `json:"name"`
	Min            int            `json:"min"`
	Max            int            `json:"max"`
	NumbersPerCard int            `json:"numbersPerCard"`
	Labels         map[int]string `json:"labels"`
}

// Size is the number of extractable numbers.
func (v Variant) Size() int {
	return v.Max - v.Min + 1
}

func (v Variant) Label(n int) string {
	return v.Labels[n]
}

// Validate checks the bounds against the card layout: column i covers
// [i*10+1, i*10+10] and the last column runs up to Max, so every column has
// to offer at least three numbers.
func (v Variant) Validate() error {
	if v.Name == "" {
		return fmt.Errorf("%w: variant name is required", ErrUnsupportedVariantRange)
	}
	if v.Min > v.Max {
		return fmt.Errorf("%w: %s has min %d greater than max %d", ErrInvalidRange, v.Name, v.Min, v.Max)
	}
	if v.Min != 1 {
		return fmt.Errorf("%w: %s must start at 1, got %d", ErrUnsupportedVariantRange, v.Name, v.Min)
	}
	if v.Max < (Columns-1)*10+Rows || v.Max > Columns*10+9 {
		return fmt.Errorf("%w: %s max %d outside [%d, %d]", ErrUnsupportedVariantRange, v.Name, v.Max, (Columns-1)*10+Rows, Columns*10+9)
	}
	if v.NumbersPerCard != Rows*FilledPerRow {
		return fmt.Errorf("%w: %s expects %d numbers per card, layout holds %d", ErrUnsupportedVariantRange, v.Name, v.NumbersPerCard, Rows*FilledPerRow)
	}
	return nil
}

var registry = mustLoadVariants()

func mustLoadVariants() map[string]Variant {
	variants, err := loadVariants(variantFiles)
	if err != nil {
		panic(err)
	}
	return variants
}

func loadVariants(fsys embed.FS) (map[string]Variant, error) {
	entries, err := fsys.ReadDir("variants")
	if err != nil {
		return nil, fmt.Errorf("reading embedded variants: %w", err)
	}
	out := make(map[string]Variant, len(entries))
	for _, e := range entries {
		raw, err := fsys.ReadFile(path.Join("variants", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("reading variant %s: %w", e.Name(), err)
		}
		v, err := ParseVariant(raw)
		if err != nil {
			return nil, fmt.Errorf("variant %s: %w", e.Name(), err)
		}
		if _, dup := out[v.Name]; dup {
			return nil, fmt.Errorf("duplicate variant %q", v.Name)
		}
		out[v.Name] = v
	}
	return out, nil
}

// ParseVariant decodes and validates a variant definition.
func ParseVariant(raw []byte) (Variant, error) {
	var v Variant
	if err := json.Unmarshal(raw, &v); err != nil {
		return Variant{}, fmt.Errorf("decoding variant: %w", err)
	}
	if v.Labels == nil {
		v.Labels = map[int]string{}
	}
	if err := v.Validate(); err != nil {
		return Variant{}, err
	}
	return v, nil
}

func VariantByName(name string) (Variant, error) {
	v, ok := registry[name]
	if !ok {
		return Variant{}, fmt.Errorf("%w: %q", ErrVariantNotFound, name)
	}
	return v, nil
}

// Variants returns every built-in variant ordered by name.
func Variants() []Variant {
	out := make([]Variant, 0, len(registry))
	for _, v := range registry {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
