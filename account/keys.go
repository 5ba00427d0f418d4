// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package account

// collectionName is the kvstore namespace holding all account state.
// The names below are part of the persisted format: renaming one
// silently resets that field for existing installs.
const collectionName = "account"

const (
	// The confirmed local identity. Written together, atomically, by
	// StoreLocalIdentity; the PNI may be absent for identities
	// registered before PNIs existed.
	keyRegisteredNumber = "registered_number"
	keyRegisteredACI    = "registered_aci"
	keyRegisteredPNI    = "registered_pni"

	// When the confirmed identity was first stored. Never moves on
	// re-confirmation of the same identity.
	keyRegistrationDate = "registration_date"

	// Set when the server rejects our credentials; cleared by the
	// next successful registration.
	keyIsDeregistered = "is_deregistered"

	// The identity held before ResetForReregistration wiped the
	// confirmed slots, kept so the client can re-verify the same
	// number without asking the user for it again.
	keyReregistrationNumber = "reregistration_number"
	keyReregistrationACI    = "reregistration_aci"

	keyIsOnboarded = "is_onboarded"

	keyIsTransferInProgress = "is_transfer_in_progress"
	keyWasTransferred       = "was_transferred"

	// Credentials and identity of this install as a device on the
	// account. The device ID defaults to the primary slot for
	// installs that predate linked-device support.
	keyServerAuthToken = "server_auth_token"
	keyDeviceID        = "device_id"
	keyDeviceName      = "device_name"

	keyManualMessageFetchEnabled = "manual_message_fetch_enabled"

	// Whether the account may be looked up by phone number, and when
	// the user last decided. Written together by
	// SetDiscoverableByNumber: the timestamp's presence is what marks
	// the preference as user-chosen rather than defaulted.
	keyDiscoverableByNumber = "discoverable_by_number"
	keyDiscoverableSetAt    = "discoverable_set_at"
)

// primaryDeviceID is the device ID the server assigns the primary
// device. Linked devices get higher IDs.
const primaryDeviceID uint32 = 1
