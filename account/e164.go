// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package account

import "fmt"

// E164 is a phone number in E.164 normal form: '+' followed by the
// country code and national number, digits only, at most 15 of them.
// Meridian performs no locale-aware normalization here — callers must
// hand in numbers already normalized, typically as returned by the
// registration service.
//
// E164 is an immutable value type. The zero value is not a valid
// number; use IsZero to check.
type E164 struct {
	number string
}

// ParseE164 validates and wraps a raw phone number string.
func ParseE164(raw string) (E164, error) {
	if raw == "" {
		return E164{}, fmt.Errorf("empty phone number")
	}
	if raw[0] != '+' {
		return E164{}, fmt.Errorf("phone number must start with '+': %q", raw)
	}
	digits := raw[1:]
	if len(digits) == 0 {
		return E164{}, fmt.Errorf("phone number has no digits after '+': %q", raw)
	}
	if len(digits) > 15 {
		return E164{}, fmt.Errorf("phone number exceeds 15 digits: %q", raw)
	}
	if digits[0] == '0' {
		return E164{}, fmt.Errorf("country code cannot start with 0: %q", raw)
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return E164{}, fmt.Errorf("phone number contains non-digit at position %d: %q", i+1, raw)
		}
	}
	return E164{number: raw}, nil
}

// MustParseE164 is like ParseE164 but panics on error. Use in tests
// and static initialization where the input is known-valid.
func MustParseE164(raw string) E164 {
	number, err := ParseE164(raw)
	if err != nil {
		panic(fmt.Sprintf("account.MustParseE164(%q): %v", raw, err))
	}
	return number
}

// String returns the full number including the '+' prefix, or the
// empty string for the zero value.
func (e E164) String() string { return e.number }

// IsZero reports whether the E164 is the zero value (uninitialized).
func (e E164) IsZero() bool { return e.number == "" }

// MarshalText implements encoding.TextMarshaler for JSON and other
// text-based serialization formats.
func (e E164) MarshalText() ([]byte, error) {
	if e.number == "" {
		return nil, nil
	}
	return []byte(e.number), nil
}

// UnmarshalText implements encoding.TextUnmarshaler for JSON and other
// text-based serialization formats. Validates the number format. An
// empty input produces the zero value (unset number).
func (e *E164) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*e = E164{}
		return nil
	}
	parsed, err := ParseE164(string(data))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
