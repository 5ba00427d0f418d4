// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package account

import (
	"fmt"
	"time"

	"github.com/meridian-im/meridian/lib/kvstore"
)

// RegistrationState is the account's position in the registration
// lifecycle, derived from stored fields rather than stored itself.
type RegistrationState int

const (
	// Unregistered: no confirmed identity and no reregistration in
	// progress. Fresh installs start here.
	Unregistered RegistrationState = iota

	// Registered: a confirmed identity exists and the server has not
	// rejected our credentials.
	Registered

	// Deregistered: a confirmed identity exists but the server has
	// rejected our credentials. Locally stored data is intact; only
	// re-verification restores service.
	Deregistered

	// Reregistering: the confirmed identity was cleared by
	// ResetForReregistration and the old number is parked in the
	// reregistration slots awaiting a fresh verification.
	Reregistering
)

// String returns the lowercase state name.
func (s RegistrationState) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case Registered:
		return "registered"
	case Deregistered:
		return "deregistered"
	case Reregistering:
		return "reregistering"
	default:
		return fmt.Sprintf("RegistrationState(%d)", int(s))
	}
}

// ParseRegistrationState converts a state name as produced by String
// back into the state value.
func ParseRegistrationState(raw string) (RegistrationState, error) {
	switch raw {
	case "unregistered":
		return Unregistered, nil
	case "registered":
		return Registered, nil
	case "deregistered":
		return Deregistered, nil
	case "reregistering":
		return Reregistering, nil
	default:
		return 0, fmt.Errorf("unknown registration state %q", raw)
	}
}

// pendingVerification holds identifiers a verification attempt has
// claimed but not yet confirmed. Zero fields mean "nothing claimed".
type pendingVerification struct {
	number E164
	aci    ACI
	pni    PNI
}

func (p pendingVerification) isSet() bool {
	return !p.number.IsZero() || !p.aci.IsZero() || !p.pni.IsZero()
}

// AccountState is an immutable snapshot of the account's stored state,
// with any pending verification overrides baked in at construction.
// All methods are pure reads; two calls on the same snapshot always
// agree, no matter what the store does in between. Obtain snapshots
// from [StateCache] or, for foreign readers, from [LoadState].
type AccountState struct {
	number           E164
	aci              ACI
	pni              PNI
	registrationDate time.Time
	deregistered     bool

	reregistrationNumber E164
	reregistrationACI    ACI

	onboarded          bool
	transferInProgress bool
	wasTransferred     bool

	serverAuthToken string
	deviceID        uint32
	deviceName      string

	manualMessageFetch bool

	discoverable      bool
	discoverableSetAt time.Time

	pending pendingVerification
}

// LoadState reads a snapshot directly from the store, with no pending
// overrides. Processes that do not own the account cache (inspection
// tools, extensions doing one-shot reads) use this; the owning process
// goes through [StateCache] instead.
func LoadState(tx kvstore.ReadTx) (*AccountState, error) {
	return loadState(tx, pendingVerification{})
}

// loadState reads every account field inside tx. All reads share the
// transaction's snapshot, so the result is internally consistent even
// while another connection writes.
func loadState(tx kvstore.ReadTx, pending pendingVerification) (*AccountState, error) {
	c := kvstore.NewCollection(collectionName)
	state := &AccountState{pending: pending}

	var err error
	if state.number, err = readNumber(tx, c, keyRegisteredNumber); err != nil {
		return nil, err
	}
	if state.aci, err = readACI(tx, c, keyRegisteredACI); err != nil {
		return nil, err
	}
	if state.pni, err = readPNI(tx, c, keyRegisteredPNI); err != nil {
		return nil, err
	}
	if state.registrationDate, _, err = c.GetDate(tx, keyRegistrationDate); err != nil {
		return nil, err
	}
	if state.deregistered, err = c.GetBool(tx, keyIsDeregistered, false); err != nil {
		return nil, err
	}
	if state.reregistrationNumber, err = readNumber(tx, c, keyReregistrationNumber); err != nil {
		return nil, err
	}
	if state.reregistrationACI, err = readACI(tx, c, keyReregistrationACI); err != nil {
		return nil, err
	}
	if state.onboarded, err = c.GetBool(tx, keyIsOnboarded, false); err != nil {
		return nil, err
	}
	if state.transferInProgress, err = c.GetBool(tx, keyIsTransferInProgress, false); err != nil {
		return nil, err
	}
	if state.wasTransferred, err = c.GetBool(tx, keyWasTransferred, false); err != nil {
		return nil, err
	}
	if state.serverAuthToken, _, err = c.GetString(tx, keyServerAuthToken); err != nil {
		return nil, err
	}
	if state.deviceID, err = c.GetUint32(tx, keyDeviceID, primaryDeviceID); err != nil {
		return nil, err
	}
	if state.deviceName, _, err = c.GetString(tx, keyDeviceName); err != nil {
		return nil, err
	}
	if state.manualMessageFetch, err = c.GetBool(tx, keyManualMessageFetchEnabled, false); err != nil {
		return nil, err
	}
	if state.discoverable, err = c.GetBool(tx, keyDiscoverableByNumber, true); err != nil {
		return nil, err
	}
	if state.discoverableSetAt, _, err = c.GetDate(tx, keyDiscoverableSetAt); err != nil {
		return nil, err
	}
	return state, nil
}

// withPending returns a copy of the snapshot with the pending
// overrides replaced. The stored fields are untouched.
func (s *AccountState) withPending(pending pendingVerification) *AccountState {
	next := *s
	next.pending = pending
	return &next
}

// readNumber loads and parses a stored E164, treating a value that no
// longer parses as corruption rather than absence.
func readNumber(tx kvstore.ReadTx, c kvstore.Collection, key string) (E164, error) {
	raw, found, err := c.GetString(tx, key)
	if err != nil || !found {
		return E164{}, err
	}
	number, err := ParseE164(raw)
	if err != nil {
		return E164{}, fmt.Errorf("account: stored %s is corrupt: %w", key, err)
	}
	return number, nil
}

func readACI(tx kvstore.ReadTx, c kvstore.Collection, key string) (ACI, error) {
	raw, found, err := c.GetString(tx, key)
	if err != nil || !found {
		return ACI{}, err
	}
	aci, err := ParseACI(raw)
	if err != nil {
		return ACI{}, fmt.Errorf("account: stored %s is corrupt: %w", key, err)
	}
	return aci, nil
}

func readPNI(tx kvstore.ReadTx, c kvstore.Collection, key string) (PNI, error) {
	raw, found, err := c.GetString(tx, key)
	if err != nil || !found {
		return PNI{}, err
	}
	pni, err := ParsePNI(raw)
	if err != nil {
		return PNI{}, fmt.Errorf("account: stored %s is corrupt: %w", key, err)
	}
	return pni, nil
}

// LocalNumber returns the phone number the client should act as:
// the pending verification number when one is claimed, otherwise the
// confirmed number. Zero when neither exists.
func (s *AccountState) LocalNumber() E164 {
	if !s.pending.number.IsZero() {
		return s.pending.number
	}
	return s.number
}

// LocalACI returns the account identity the client should act as,
// preferring a pending claim over the confirmed value.
func (s *AccountState) LocalACI() ACI {
	if !s.pending.aci.IsZero() {
		return s.pending.aci
	}
	return s.aci
}

// LocalPNI returns the phone-number identity the client should act
// as, preferring a pending claim over the confirmed value.
func (s *AccountState) LocalPNI() PNI {
	if !s.pending.pni.IsZero() {
		return s.pending.pni
	}
	return s.pni
}

// StoredNumber returns the confirmed number only, ignoring any pending
// verification.
func (s *AccountState) StoredNumber() E164 { return s.number }

// StoredACI returns the confirmed account identity only, ignoring any
// pending verification.
func (s *AccountState) StoredACI() ACI { return s.aci }

// StoredPNI returns the confirmed phone-number identity only, ignoring
// any pending verification.
func (s *AccountState) StoredPNI() PNI { return s.pni }

// HasPendingVerification reports whether any identifier is claimed but
// not yet confirmed.
func (s *AccountState) HasPendingVerification() bool { return s.pending.isSet() }

// hasConfirmedIdentity reports whether the stored number/ACI pair is
// complete. Pending claims do not count.
func (s *AccountState) hasConfirmedIdentity() bool {
	return !s.number.IsZero() && !s.aci.IsZero()
}

// RegistrationState derives the lifecycle state from the stored
// fields. The deregistered flag is only meaningful while a confirmed
// identity exists, and the reregistration slots only while none does.
func (s *AccountState) RegistrationState() RegistrationState {
	if s.hasConfirmedIdentity() {
		if s.deregistered {
			return Deregistered
		}
		return Registered
	}
	if !s.reregistrationNumber.IsZero() {
		return Reregistering
	}
	return Unregistered
}

// IsRegistered reports whether a confirmed identity exists, regardless
// of whether the server currently honors it.
func (s *AccountState) IsRegistered() bool { return s.hasConfirmedIdentity() }

// IsRegisteredAndReady reports whether the account is registered and
// the server has not rejected our credentials. This is the gate for
// normal message traffic.
func (s *AccountState) IsRegisteredAndReady() bool {
	return s.RegistrationState() == Registered
}

// IsDeregistered reports whether the server has rejected our
// credentials while a confirmed identity exists.
func (s *AccountState) IsDeregistered() bool {
	return s.RegistrationState() == Deregistered
}

// IsReregistering reports whether a reregistration is in progress.
func (s *AccountState) IsReregistering() bool {
	return s.RegistrationState() == Reregistering
}

// RegistrationDate returns when the confirmed identity was first
// stored, or the zero time if the account never registered.
func (s *AccountState) RegistrationDate() time.Time { return s.registrationDate }

// ReregistrationNumber returns the number parked by
// ResetForReregistration, or zero when no reregistration is pending.
func (s *AccountState) ReregistrationNumber() E164 { return s.reregistrationNumber }

// ReregistrationACI returns the account identity parked by
// ResetForReregistration, or zero when no reregistration is pending.
func (s *AccountState) ReregistrationACI() ACI { return s.reregistrationACI }

// IsOnboarded reports whether the user finished the post-registration
// onboarding flow.
func (s *AccountState) IsOnboarded() bool { return s.onboarded }

// IsTransferInProgress reports whether a device-to-device transfer is
// currently running.
func (s *AccountState) IsTransferInProgress() bool { return s.transferInProgress }

// WasTransferred reports whether this install's data was transferred
// away to another device. A transferred install stays readable but
// must not talk to the server.
func (s *AccountState) WasTransferred() bool { return s.wasTransferred }

// ServerAuthToken returns the credential presented to the server, or
// the empty string before first registration.
func (s *AccountState) ServerAuthToken() string { return s.serverAuthToken }

// DeviceID returns this install's device slot on the account. Installs
// that never stored one report the primary slot.
func (s *AccountState) DeviceID() uint32 { return s.deviceID }

// IsPrimaryDevice reports whether this install occupies the account's
// primary device slot.
func (s *AccountState) IsPrimaryDevice() bool { return s.deviceID == primaryDeviceID }

// DeviceName returns the user-visible name of this device, or the
// empty string when none was stored.
func (s *AccountState) DeviceName() string { return s.deviceName }

// ManualMessageFetchEnabled reports whether the user opted out of push
// delivery in favor of manual fetching.
func (s *AccountState) ManualMessageFetchEnabled() bool { return s.manualMessageFetch }

// IsDiscoverableByNumber reports whether other users may find this
// account by its phone number. Accounts that never chose report true:
// discoverability predates the setting, so legacy accounts are
// discoverable until they opt out.
func (s *AccountState) IsDiscoverableByNumber() bool { return s.discoverable }

// HasDefinedDiscoverability reports whether the user ever chose a
// discoverability setting, as opposed to riding the default.
func (s *AccountState) HasDefinedDiscoverability() bool { return !s.discoverableSetAt.IsZero() }

// DiscoverabilitySetAt returns when discoverability was last chosen,
// or the zero time if it never was.
func (s *AccountState) DiscoverabilitySetAt() time.Time { return s.discoverableSetAt }
