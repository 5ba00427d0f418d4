// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package account

import (
	"fmt"

	"github.com/google/uuid"
)

// ACI is the account identity: the stable, server-assigned UUID that
// identifies this account to other devices. It never changes for the
// life of the account, across phone number changes and
// reregistrations on the same account.
//
// ACI is an immutable value type. The zero value means "no identity";
// use IsZero to check.
type ACI struct {
	id uuid.UUID
}

// NewACI returns a fresh random ACI. Real identities come from the
// registration service; this exists for tests.
func NewACI() ACI {
	return ACI{id: uuid.New()}
}

// ParseACI validates and wraps a raw UUID string.
func ParseACI(raw string) (ACI, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return ACI{}, fmt.Errorf("invalid ACI: %w", err)
	}
	if id == uuid.Nil {
		return ACI{}, fmt.Errorf("ACI cannot be the nil UUID")
	}
	return ACI{id: id}, nil
}

// MustParseACI is like ParseACI but panics on error. Use in tests and
// static initialization where the input is known-valid.
func MustParseACI(raw string) ACI {
	aci, err := ParseACI(raw)
	if err != nil {
		panic(fmt.Sprintf("account.MustParseACI(%q): %v", raw, err))
	}
	return aci
}

// UUID returns the underlying UUID value.
func (a ACI) UUID() uuid.UUID { return a.id }

// String returns the canonical lowercase UUID string, or the empty
// string for the zero value.
func (a ACI) String() string {
	if a.id == uuid.Nil {
		return ""
	}
	return a.id.String()
}

// IsZero reports whether the ACI is the zero value (no identity).
func (a ACI) IsZero() bool { return a.id == uuid.Nil }

// MarshalText implements encoding.TextMarshaler for JSON and other
// text-based serialization formats.
func (a ACI) MarshalText() ([]byte, error) {
	if a.id == uuid.Nil {
		return nil, nil
	}
	return []byte(a.id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value (no identity).
func (a *ACI) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*a = ACI{}
		return nil
	}
	parsed, err := ParseACI(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// PNI is the phone-number identity: the server-assigned UUID bound to
// the account's current phone number rather than to the account
// itself. It changes when the number changes, and unlike the ACI it
// may be absent — identities registered before PNIs existed backfill
// it lazily.
//
// PNI is an immutable value type. The zero value means "no identity";
// use IsZero to check.
type PNI struct {
	id uuid.UUID
}

// NewPNI returns a fresh random PNI. Real identities come from the
// registration service; this exists for tests.
func NewPNI() PNI {
	return PNI{id: uuid.New()}
}

// ParsePNI validates and wraps a raw UUID string.
func ParsePNI(raw string) (PNI, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return PNI{}, fmt.Errorf("invalid PNI: %w", err)
	}
	if id == uuid.Nil {
		return PNI{}, fmt.Errorf("PNI cannot be the nil UUID")
	}
	return PNI{id: id}, nil
}

// MustParsePNI is like ParsePNI but panics on error. Use in tests and
// static initialization where the input is known-valid.
func MustParsePNI(raw string) PNI {
	pni, err := ParsePNI(raw)
	if err != nil {
		panic(fmt.Sprintf("account.MustParsePNI(%q): %v", raw, err))
	}
	return pni
}

// UUID returns the underlying UUID value.
func (p PNI) UUID() uuid.UUID { return p.id }

// String returns the canonical lowercase UUID string, or the empty
// string for the zero value.
func (p PNI) String() string {
	if p.id == uuid.Nil {
		return ""
	}
	return p.id.String()
}

// IsZero reports whether the PNI is the zero value (no identity).
func (p PNI) IsZero() bool { return p.id == uuid.Nil }

// MarshalText implements encoding.TextMarshaler for JSON and other
// text-based serialization formats.
func (p PNI) MarshalText() ([]byte, error) {
	if p.id == uuid.Nil {
		return nil, nil
	}
	return []byte(p.id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. An empty input
// produces the zero value (no identity).
func (p *PNI) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*p = PNI{}
		return nil
	}
	parsed, err := ParsePNI(string(data))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
