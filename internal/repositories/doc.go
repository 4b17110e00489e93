// Package repositories implements SQL persistence (SQLite or Postgres through sqlx) for footprint entities.
//
// Key Implementations:
//   - [UserRepository] : Users with find-or-create login by username and soft deletes
//   - [CityRepository] : Visited cities keyed by (user, city name), upserted on save, with their category photos
//
// Sequence numbers provide stable, human-readable ordering (e.g., user #42, city #15) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
//
// Queries are written with "?" placeholders and rebound for the connected driver.
package repositories
