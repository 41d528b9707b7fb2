// Package store provides the SQLite-backed live record store.
//
// Tables:
//   - entities: one row per live record, default-language fields as canonical JSON
//   - translations: one row per (entity, langcode)
//   - field_definitions: attribute type tags per entity type and bundle
//   - languages: known locales, at most one marked default
//
// Identity is (entity_type, uuid); the numeric id is local to a database.
// All list queries order by id so results are deterministic.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Translations are deleted with their entity
package store
