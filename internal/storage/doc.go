// Package storage persists the engine's delivery ledger.
//
// It records:
//   - Campaign executions (which campaign ids already ran, and when)
//   - Per-campaign contacts already delivered to (crash-restart dedup)
//   - An append-only audit log of per-contact delivery attempts
package storage
