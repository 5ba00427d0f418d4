// Copyright 2026 The Meridian Authors
// SPDX-License-Identifier: Apache-2.0

// Meridian-account-check reads the account database and evaluates the
// registration state. It is a pipeline building block: shell steps can
// use it as a "when" guard or "check" assertion without linking the
// account library themselves.
//
// The database is opened read-only, so the tool is safe to run while
// the owning client is live.
//
// Exit codes:
//
//	0  state printed, or --expect condition matched
//	1  --expect condition did not match (actual state printed to stderr)
//	2  error (database unreadable, bad arguments)
package main
