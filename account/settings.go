// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

package account

import (
	"fmt"

	"github.com/meridian-im/meridian/lib/kvstore"
)

// SetOnboarded persists whether the user finished post-registration
// onboarding. The write is unconditional and always notifies.
//
// The caller owns tx; on a later rollback it must Invalidate the
// cache. The same holds for every setter below.
func (m *Manager) SetOnboarded(tx *kvstore.WriteTx, onboarded bool) error {
	c := kvstore.NewCollection(collectionName)
	if err := c.SetBool(tx, keyIsOnboarded, onboarded); err != nil {
		return err
	}
	if _, err := m.cache.ReloadTx(tx); err != nil {
		return err
	}
	tx.OnCommit(func() {
		m.bus.Publish(OnboardingStateChanged{Onboarded: onboarded})
	})
	m.logger.Info("onboarded flag set", "onboarded", onboarded)
	return nil
}

// SetManualMessageFetchEnabled persists the user's choice to fetch
// messages manually instead of receiving push delivery. A plain
// setting: no lifecycle interaction, no notification.
func (m *Manager) SetManualMessageFetchEnabled(tx *kvstore.WriteTx, enabled bool) error {
	c := kvstore.NewCollection(collectionName)
	if err := c.SetBool(tx, keyManualMessageFetchEnabled, enabled); err != nil {
		return err
	}
	_, err := m.cache.ReloadTx(tx)
	return err
}

// SetDeviceName persists the user-visible name of this device.
func (m *Manager) SetDeviceName(tx *kvstore.WriteTx, name string) error {
	if name == "" {
		return fmt.Errorf("account: set device name: name is required")
	}
	c := kvstore.NewCollection(collectionName)
	if err := c.SetString(tx, keyDeviceName, name); err != nil {
		return err
	}
	_, err := m.cache.ReloadTx(tx)
	return err
}

// SetServerAuthToken stores the credential the server issued for this
// install together with the device slot it belongs to. The two are
// written as a pair so a token can never be presented for the wrong
// device ID.
func (m *Manager) SetServerAuthToken(tx *kvstore.WriteTx, token string, deviceID uint32) error {
	if token == "" {
		return fmt.Errorf("account: set server auth token: token is required")
	}
	if deviceID == 0 {
		return fmt.Errorf("account: set server auth token: device ID is required")
	}
	c := kvstore.NewCollection(collectionName)
	if err := c.SetString(tx, keyServerAuthToken, token); err != nil {
		return err
	}
	if err := c.SetUint32(tx, keyDeviceID, deviceID); err != nil {
		return err
	}
	_, err := m.cache.ReloadTx(tx)
	return err
}

// SetDiscoverableByNumber persists whether other users may find this
// account by its phone number, stamping when the user decided. The
// timestamp is what distinguishes a chosen setting from the default.
func (m *Manager) SetDiscoverableByNumber(tx *kvstore.WriteTx, discoverable bool) error {
	c := kvstore.NewCollection(collectionName)
	if err := c.SetBool(tx, keyDiscoverableByNumber, discoverable); err != nil {
		return err
	}
	if err := c.SetDate(tx, keyDiscoverableSetAt, m.clock.Now()); err != nil {
		return err
	}
	if _, err := m.cache.ReloadTx(tx); err != nil {
		return err
	}
	m.logger.Info("discoverability set", "discoverable", discoverable)
	return nil
}
