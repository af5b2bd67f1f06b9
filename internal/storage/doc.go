// Package storage persists the singleton project envelope and the API
// credential for one profile.
//
// Store is backed by SQLite (modernc.org/sqlite) in the profile data
// directory and guarded by an exclusive file lock so two stepwise processes
// never write the same profile. Memory offers the same behaviour without a
// database.
//
// Reads never fail: a missing or unreadable record yields an empty project,
// and a record that no longer matches the current shape is salvaged field by
// field, keeping every task that still decodes. Writes surface their errors,
// with ErrQuotaExceeded marking payloads that cannot fit.
package storage
