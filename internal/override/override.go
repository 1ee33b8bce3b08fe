// Package override resolves parameter values per locale and reconciles
// per-country override maps across partial updates.
package override

import (
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"strings"
)

var (
	ErrInvalidCountryCode = errors.New("invalid_country_code")
	ErrOverrideNotFound   = errors.New("override_not_found")
	ErrInvalidValue       = errors.New("invalid_value")
	ErrInvalidMode        = errors.New("invalid_overrides_mode")
)

// Mode selects how incoming overrides combine with stored ones.
type Mode string

const (
	ModeMerge   Mode = "merge"
	ModeReplace Mode = "replace"
)

// ParseMode defaults to ModeMerge for an empty input.
func ParseMode(raw string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(raw))) {
	case "", ModeMerge:
		return ModeMerge, nil
	case ModeReplace:
		return ModeReplace, nil
	default:
		return "", ErrInvalidMode
	}
}

// Overrides is the stored override document. Country keys are two uppercase letters.
type Overrides struct {
	Country map[string]any `json:"country"`
}

// Clone returns a copy whose country map can be mutated without touching o.
func (o Overrides) Clone() Overrides {
	out := Overrides{Country: make(map[string]any, len(o.Country))}
	for code, v := range o.Country {
		out.Country[code] = v
	}
	return out
}

// Codes returns the country codes in ascending order.
func (o Overrides) Codes() []string {
	codes := make([]string, 0, len(o.Country))
	for code := range o.Country {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

func (o Overrides) Lookup(code string) (any, bool) {
	if o.Country == nil {
		return nil, false
	}
	v, ok := o.Country[code]
	return v, ok
}

// Validate checks every country code and value in o.
func (o Overrides) Validate() error {
	for code, v := range o.Country {
		if err := ValidateCountryCode(code); err != nil {
			return err
		}
		if _, err := NormalizeValue(v); err != nil {
			return err
		}
	}
	return nil
}

// Resolve returns the override for locale when one exists, otherwise the
// default value. Locale matching is case-insensitive.
func Resolve(defaultValue any, overrides Overrides, locale string) any {
	code := strings.ToUpper(strings.TrimSpace(locale))
	if code == "" {
		return defaultValue
	}
	if v, ok := overrides.Lookup(code); ok {
		return v
	}
	return defaultValue
}

// MergeOverrides never mutates its inputs.
func MergeOverrides(existing, incoming Overrides, mode Mode) Overrides {
	if mode == ModeReplace {
		return incoming.Clone()
	}
	merged := existing.Clone()
	for code, v := range incoming.Country {
		merged.Country[code] = v
	}
	return merged
}

func SetCountryOverride(existing Overrides, code string, value any) (Overrides, error) {
	if err := ValidateCountryCode(code); err != nil {
		return Overrides{}, err
	}
	normalized, err := NormalizeValue(value)
	if err != nil {
		return Overrides{}, err
	}
	out := existing.Clone()
	out.Country[code] = normalized
	return out, nil
}

// RemoveCountryOverride fails with ErrOverrideNotFound when code has no override,
// so a no-op removal never reaches the store.
func RemoveCountryOverride(existing Overrides, code string) (Overrides, error) {
	if err := ValidateCountryCode(code); err != nil {
		return Overrides{}, err
	}
	if _, ok := existing.Lookup(code); !ok {
		return Overrides{}, ErrOverrideNotFound
	}
	out := existing.Clone()
	delete(out.Country, code)
	return out, nil
}

// ValidateCountryCode accepts exactly two uppercase ASCII letters.
func ValidateCountryCode(code string) error {
	if len(code) != 2 {
		return ErrInvalidCountryCode
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'A' || code[i] > 'Z' {
			return ErrInvalidCountryCode
		}
	}
	return nil
}

// NormalizeLocale upper-cases a caller supplied locale. An empty locale is valid
// and means "no locale".
func NormalizeLocale(locale string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(locale))
	if code == "" {
		return "", nil
	}
	if err := ValidateCountryCode(code); err != nil {
		return "", err
	}
	return code, nil
}

// NormalizeValue round-trips v through JSON so that numbers become float64 and
// objects become map[string]any, then checks it is a string, number, boolean
// or object. Null and arrays are rejected.
func NormalizeValue(v any) (any, error) {
	if v == nil {
		return nil, ErrInvalidValue
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, ErrInvalidValue
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, ErrInvalidValue
	}
	switch out.(type) {
	case string, float64, bool, map[string]any:
		return out, nil
	default:
		return nil, ErrInvalidValue
	}
}

// ValuesEqual compares structurally, so objects with the same members in a
// different order are equal.
func ValuesEqual(a, b any) bool {
	na, errA := canonical(a)
	nb, errB := canonical(b)
	if errA != nil || errB != nil {
		return reflect.DeepEqual(a, b)
	}
	return reflect.DeepEqual(na, nb)
}

func canonical(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}
