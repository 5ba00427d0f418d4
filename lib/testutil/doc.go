// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Meridian packages.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with time.After fallback) so
// that individual tests do not need direct time.After calls.
// [RequireNoReceive] is the negative form: it asserts that a channel
// stays silent for a bounded window, for testing that suppressed or
// dropped notifications are really never delivered.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no Meridian-internal dependencies.
package testutil
