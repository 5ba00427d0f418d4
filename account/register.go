// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package account

import (
	"context"
	"fmt"

	"github.com/meridian-im/meridian/lib/kvstore"
)

// BeginVerification claims identifiers for an in-flight verification
// attempt. The claim is pure in-memory state: reads prefer it over the
// stored identity immediately, storage is untouched, and a process
// restart forgets it. The number is required; the ACI and PNI may be
// zero when the server has not assigned them yet. A later claim
// replaces the whole earlier one.
func (m *Manager) BeginVerification(number E164, aci ACI, pni PNI) error {
	if number.IsZero() {
		return fmt.Errorf("account: begin verification: number is required")
	}
	snapshot := m.cache.setPending(pendingVerification{number: number, aci: aci, pni: pni})

	event := LocalIdentifiersMayHaveChanged{Number: number, ACI: aci, PNI: pni}
	if snapshot != nil {
		event = LocalIdentifiersMayHaveChanged{
			Number: snapshot.LocalNumber(),
			ACI:    snapshot.LocalACI(),
			PNI:    snapshot.LocalPNI(),
		}
	}
	m.bus.Publish(event)
	return nil
}

// StoreLocalIdentity is the atomic confirm step: the server has
// verified number/aci/pni as this install's identity, and this call
// makes them the stored truth. Within tx it writes the identifier
// fields, sets the registration date if absent, clears the
// deregistered flag and the reregistration slots, drops
// identity-bound collateral (sender certificates, profile and group
// credentials), updates the address cache, and reloads the snapshot
// cache with the pending claim cleared — in that order, so the claim
// stops overriding reads in the same locked step that installs the
// confirmed values.
//
// The ACI is mandatory; a zero PNI is legitimate and removes any
// stored one. Calling twice with identical arguments changes nothing
// and performs no duplicate collateral clearing.
//
// The caller owns tx. If the enclosing transaction rolls back after
// this returns, the caller must Invalidate the cache.
func (m *Manager) StoreLocalIdentity(tx *kvstore.WriteTx, number E164, aci ACI, pni PNI) error {
	if number.IsZero() {
		m.logger.Error("store local identity called without a number")
		return fmt.Errorf("account: store local identity: number is required")
	}
	if aci.IsZero() {
		m.logger.Error("store local identity called without an ACI")
		return fmt.Errorf("account: store local identity: aci is required")
	}

	prior, err := loadState(tx, pendingVerification{})
	if err != nil {
		return err
	}

	c := kvstore.NewCollection(collectionName)
	changed := prior.number != number || prior.aci != aci || prior.pni != pni

	if changed {
		if err := c.SetString(tx, keyRegisteredNumber, number.String()); err != nil {
			return err
		}
		if err := c.SetString(tx, keyRegisteredACI, aci.String()); err != nil {
			return err
		}
		if pni.IsZero() {
			if err := c.Remove(tx, keyRegisteredPNI); err != nil {
				return err
			}
		} else {
			if err := c.SetString(tx, keyRegisteredPNI, pni.String()); err != nil {
				return err
			}
		}
		if err := c.Remove(tx, keyReregistrationNumber); err != nil {
			return err
		}
		if err := c.Remove(tx, keyReregistrationACI); err != nil {
			return err
		}
		if err := m.clearIdentityCollaterals(tx); err != nil {
			return err
		}
		if m.addresses != nil {
			m.addresses.UpdateMapping(aci, number)
		}
	}

	// Independent of changed: re-verifying the same identity while
	// deregistered restores service without moving the identifiers.
	if prior.deregistered {
		if err := c.Remove(tx, keyIsDeregistered); err != nil {
			return err
		}
	}

	// Backfilled independently of changed: a legacy row can have
	// identifiers without a date.
	if prior.registrationDate.IsZero() {
		if err := c.SetDate(tx, keyRegistrationDate, m.clock.Now()); err != nil {
			return err
		}
	}

	state, hadPending, err := m.cache.confirmTx(tx)
	if err != nil {
		return err
	}

	if changed || prior.deregistered || hadPending {
		registrationState := state.RegistrationState()
		identifiers := LocalIdentifiersMayHaveChanged{
			Number: state.LocalNumber(),
			ACI:    state.LocalACI(),
			PNI:    state.LocalPNI(),
		}
		publishRegistration := changed || prior.deregistered
		tx.OnCommit(func() {
			if publishRegistration {
				m.bus.Publish(RegistrationStateChanged{State: registrationState})
			}
			m.bus.Publish(identifiers)
		})
	}

	if changed {
		m.logger.Info("local identity confirmed",
			"registration_state", state.RegistrationState().String(),
			"had_pending", hadPending)
	}
	return nil
}

// MarkRegistered confirms the identifiers claimed by the last
// BeginVerification, in a transaction of its own. Returns
// ErrNoPendingVerification when no claim with at least a number and
// an ACI is outstanding.
func (m *Manager) MarkRegistered(ctx context.Context) error {
	pending := m.cache.pendingSnapshot()
	if pending.number.IsZero() || pending.aci.IsZero() {
		return ErrNoPendingVerification
	}
	return m.write(ctx, func(tx *kvstore.WriteTx) error {
		return m.StoreLocalIdentity(tx, pending.number, pending.aci, pending.pni)
	})
}

// MarkRegisteredPrimary is StoreLocalIdentity for the primary-device
// registration flow: alongside the identity it stores the server auth
// token and claims the primary device slot.
func (m *Manager) MarkRegisteredPrimary(tx *kvstore.WriteTx, number E164, aci ACI, pni PNI, authToken string) error {
	if authToken == "" {
		return fmt.Errorf("account: register primary: auth token is required")
	}
	c := kvstore.NewCollection(collectionName)
	if err := c.SetString(tx, keyServerAuthToken, authToken); err != nil {
		return err
	}
	if err := c.SetUint32(tx, keyDeviceID, primaryDeviceID); err != nil {
		return err
	}
	// Last: its cache reload must see the token and device ID above.
	return m.StoreLocalIdentity(tx, number, aci, pni)
}

// RecordLegacyACI backfills the account identity for an install that
// registered before ACIs existed: it has a confirmed number but no
// stored ACI. Returns ErrNotRegistered without a confirmed number, an
// error if a different ACI is already stored, and succeeds silently
// if the same one is.
func (m *Manager) RecordLegacyACI(ctx context.Context, aci ACI) error {
	if aci.IsZero() {
		return fmt.Errorf("account: record legacy aci: aci is required")
	}
	return m.write(ctx, func(tx *kvstore.WriteTx) error {
		prior, err := loadState(tx, pendingVerification{})
		if err != nil {
			return err
		}
		if prior.number.IsZero() {
			return ErrNotRegistered
		}
		if !prior.aci.IsZero() {
			if prior.aci == aci {
				return nil
			}
			return fmt.Errorf("account: record legacy aci: different identity already stored")
		}

		c := kvstore.NewCollection(collectionName)
		if err := c.SetString(tx, keyRegisteredACI, aci.String()); err != nil {
			return err
		}
		if m.addresses != nil {
			m.addresses.UpdateMapping(aci, prior.number)
		}

		state, err := m.cache.ReloadTx(tx)
		if err != nil {
			return err
		}
		registrationState := state.RegistrationState()
		identifiers := LocalIdentifiersMayHaveChanged{
			Number: state.LocalNumber(),
			ACI:    state.LocalACI(),
			PNI:    state.LocalPNI(),
		}
		tx.OnCommit(func() {
			m.bus.Publish(RegistrationStateChanged{State: registrationState})
			m.bus.Publish(identifiers)
		})
		m.logger.Info("legacy account identity recorded")
		return nil
	})
}

// ChangeLocalNumber rebinds the registered account to a new phone
// number and its PNI after a server-driven number change. The ACI must
// match the stored identity — a different one means this is not a
// number change but a different account, which only a full
// registration may install. Returns ErrNotRegistered when no confirmed
// identity exists.
func (m *Manager) ChangeLocalNumber(tx *kvstore.WriteTx, number E164, aci ACI, pni PNI) error {
	if number.IsZero() {
		return fmt.Errorf("account: change number: number is required")
	}
	if aci.IsZero() {
		return fmt.Errorf("account: change number: aci is required")
	}

	prior, err := loadState(tx, pendingVerification{})
	if err != nil {
		return err
	}
	if !prior.hasConfirmedIdentity() {
		return ErrNotRegistered
	}
	if prior.aci != aci {
		m.logger.Error("change number called with a mismatched ACI")
		return fmt.Errorf("account: change number: aci does not match stored identity")
	}
	if prior.number == number && prior.pni == pni {
		return nil
	}

	c := kvstore.NewCollection(collectionName)
	if err := c.SetString(tx, keyRegisteredNumber, number.String()); err != nil {
		return err
	}
	if pni.IsZero() {
		if err := c.Remove(tx, keyRegisteredPNI); err != nil {
			return err
		}
	} else {
		if err := c.SetString(tx, keyRegisteredPNI, pni.String()); err != nil {
			return err
		}
	}
	if m.addresses != nil {
		m.addresses.UpdateMapping(aci, number)
	}

	state, err := m.cache.ReloadTx(tx)
	if err != nil {
		return err
	}
	identifiers := LocalIdentifiersMayHaveChanged{
		Number: state.LocalNumber(),
		ACI:    state.LocalACI(),
		PNI:    state.LocalPNI(),
	}
	tx.OnCommit(func() {
		m.bus.Publish(identifiers)
	})
	m.logger.Info("local number changed")
	return nil
}
