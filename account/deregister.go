// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package account

import (
	"context"
	"fmt"

	"github.com/meridian-im/meridian/lib/kvstore"
)

// SetDeregistered records whether the server has rejected this
// install's credentials. Setting true on an account that is not
// registered and ready is ignored with a log line — there is nothing
// to deregister — as is setting either value it already holds. On the
// transition to true, the deregistration handler runs inside the same
// transaction, so the user-facing notice and the flag commit together.
func (m *Manager) SetDeregistered(ctx context.Context, deregistered bool) error {
	return m.write(ctx, func(tx *kvstore.WriteTx) error {
		prior, err := loadState(tx, pendingVerification{})
		if err != nil {
			return err
		}
		if deregistered && !prior.IsRegisteredAndReady() {
			m.logger.Info("ignoring deregistration, account is not registered and ready",
				"registration_state", prior.RegistrationState().String())
			return nil
		}
		if prior.deregistered == deregistered {
			m.logger.Info("deregistered flag unchanged", "deregistered", deregistered)
			return nil
		}

		c := kvstore.NewCollection(collectionName)
		if err := c.SetBool(tx, keyIsDeregistered, deregistered); err != nil {
			return err
		}
		if deregistered && m.deregistration != nil {
			if err := m.deregistration.HandleDeregistration(tx); err != nil {
				return fmt.Errorf("account: deregistration handler: %w", err)
			}
		}

		state, err := m.cache.ReloadTx(tx)
		if err != nil {
			return err
		}
		registrationState := state.RegistrationState()
		tx.OnCommit(func() {
			m.bus.Publish(RegistrationStateChanged{State: registrationState})
		})
		m.logger.Info("deregistered flag changed",
			"deregistered", deregistered,
			"registration_state", registrationState.String())
		return nil
	})
}

// ResetForReregistration tears the registration down to re-verify the
// same account: it wipes the entire account collection, resets crypto
// sessions for both identities, drops identity-bound collateral,
// parks the old number and ACI in the reregistration slots, clears the
// onboarded flag, and abandons any pending verification claim. Linked
// devices additionally clear payments state; the primary device keeps
// it across reregistration on purpose.
//
// Returns ErrNotRegistered when no confirmed identity exists — there
// is nothing to re-register — leaving all state untouched. That case
// can arise from legitimate races (storage wiped concurrently), so it
// is an error to handle, not a crash.
func (m *Manager) ResetForReregistration(ctx context.Context) error {
	return m.write(ctx, func(tx *kvstore.WriteTx) error {
		prior, err := loadState(tx, pendingVerification{})
		if err != nil {
			return err
		}
		if !prior.hasConfirmedIdentity() {
			m.logger.Warn("reregistration requested without a confirmed identity",
				"registration_state", prior.RegistrationState().String())
			return ErrNotRegistered
		}
		number := prior.number
		aci := prior.aci
		wasPrimary := prior.IsPrimaryDevice()

		c := kvstore.NewCollection(collectionName)
		if err := c.RemoveAll(tx); err != nil {
			return err
		}
		if m.sessions != nil {
			for _, kind := range []IdentityKind{IdentityACI, IdentityPNI} {
				if err := m.sessions.ResetSessions(tx, kind); err != nil {
					return fmt.Errorf("account: resetting %s sessions: %w", kind, err)
				}
			}
		}
		if err := m.clearIdentityCollaterals(tx); err != nil {
			return err
		}

		if err := c.SetString(tx, keyReregistrationNumber, number.String()); err != nil {
			return err
		}
		if err := c.SetString(tx, keyReregistrationACI, aci.String()); err != nil {
			return err
		}
		if err := c.SetBool(tx, keyIsOnboarded, false); err != nil {
			return err
		}
		if !wasPrimary && m.payments != nil {
			if err := m.payments.ClearPaymentsState(tx); err != nil {
				return fmt.Errorf("account: clearing payments state: %w", err)
			}
		}

		state, _, err := m.cache.confirmTx(tx)
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
		m.logger.Info("account reset for reregistration", "was_primary", wasPrimary)
		return nil
	})
}
