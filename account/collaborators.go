// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package account

import (
	"fmt"

	"github.com/meridian-im/meridian/lib/kvstore"
)

// IdentityKind selects which of the account's two identities a
// per-identity operation applies to.
type IdentityKind int

const (
	// IdentityACI scopes an operation to account-identity material.
	IdentityACI IdentityKind = iota
	// IdentityPNI scopes an operation to phone-number-identity
	// material.
	IdentityPNI
)

// String returns the short identity name.
func (k IdentityKind) String() string {
	switch k {
	case IdentityACI:
		return "aci"
	case IdentityPNI:
		return "pni"
	default:
		return fmt.Sprintf("IdentityKind(%d)", int(k))
	}
}

// The interfaces below are the subsystems whose state is coupled to
// the registration lifecycle. Registration transitions call them
// inside the transition's own write transaction, so their cleanup
// commits or rolls back together with the state change. All are
// optional in [Config]; a nil collaborator is skipped.

// SessionStore wipes established crypto sessions. Reregistration
// resets sessions for both identities: the old sessions belong to an
// identity the server is about to forget.
type SessionStore interface {
	ResetSessions(tx *kvstore.WriteTx, kind IdentityKind) error
}

// CertificateStore drops cached sender certificates, which embed the
// sender's number and identifiers and go stale the moment either
// changes.
type CertificateStore interface {
	ClearSenderCertificates(tx *kvstore.WriteTx) error
}

// ProfileCredentialStore drops cached profile-key credentials, which
// are bound to the account identity.
type ProfileCredentialStore interface {
	ClearProfileCredentials(tx *kvstore.WriteTx) error
}

// GroupCredentialStore drops cached temporal group credentials, which
// are issued against the current identity and expire with it.
type GroupCredentialStore interface {
	ClearTemporalCredentials(tx *kvstore.WriteTx) error
}

// PaymentsStore wipes local payments state. Only linked devices clear
// it on reregistration; the primary device keeps payments data across
// a reregistration of the same account.
type PaymentsStore interface {
	ClearPaymentsState(tx *kvstore.WriteTx) error
}

// AddressCache maintains the in-memory ACI-to-number mapping other
// subsystems resolve addresses through. Purely in-memory: no
// transaction, no error.
type AddressCache interface {
	UpdateMapping(aci ACI, number E164)
}

// DeregistrationHandler surfaces a deregistration to the user. Called
// inside the transaction that flips the flag, so the notice and the
// flag are atomic: if the write rolls back, the user never hears
// about it.
type DeregistrationHandler interface {
	HandleDeregistration(tx *kvstore.WriteTx) error
}
