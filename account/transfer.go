// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package account

import (
	"context"

	"github.com/meridian-im/meridian/lib/kvstore"
)

// SetTransferInProgress records whether a device-to-device transfer is
// running. Setting the value it already holds is ignored; otherwise
// the flag is persisted and a registration-state notification fires,
// since consumers gate network traffic on it.
func (m *Manager) SetTransferInProgress(ctx context.Context, inProgress bool) error {
	return m.write(ctx, func(tx *kvstore.WriteTx) error {
		prior, err := loadState(tx, pendingVerification{})
		if err != nil {
			return err
		}
		if prior.transferInProgress == inProgress {
			m.logger.Info("transfer-in-progress flag unchanged", "in_progress", inProgress)
			return nil
		}

		c := kvstore.NewCollection(collectionName)
		if err := c.SetBool(tx, keyIsTransferInProgress, inProgress); err != nil {
			return err
		}

		state, err := m.cache.ReloadTx(tx)
		if err != nil {
			return err
		}
		registrationState := state.RegistrationState()
		tx.OnCommit(func() {
			m.bus.Publish(RegistrationStateChanged{State: registrationState})
		})
		m.logger.Info("transfer-in-progress flag changed", "in_progress", inProgress)
		return nil
	})
}

// SetWasTransferred records whether this install's data has been
// transferred to another device. A transferred install must stop
// talking to the server, so the write is unconditional — re-asserting
// it must never be skipped on a stale read — and always notifies.
func (m *Manager) SetWasTransferred(ctx context.Context, transferred bool) error {
	return m.write(ctx, func(tx *kvstore.WriteTx) error {
		c := kvstore.NewCollection(collectionName)
		if err := c.SetBool(tx, keyWasTransferred, transferred); err != nil {
			return err
		}

		state, err := m.cache.ReloadTx(tx)
		if err != nil {
			return err
		}
		registrationState := state.RegistrationState()
		tx.OnCommit(func() {
			m.bus.Publish(RegistrationStateChanged{State: registrationState})
		})
		m.logger.Info("was-transferred flag set", "transferred", transferred)
		return nil
	})
}
