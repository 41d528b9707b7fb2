// Package engine keeps serialized records and the live record store in
// step.
//
// The engine exports live entities to record files, materializes discovered
// records into the store in dependency order, classifies drift between the
// two sides, and prunes record files without breaking records that still
// depend on them.
//
// Operations run to completion on the calling goroutine. There is no
// batch-wide transaction: each record save is committed on its own, so a
// failed import leaves the records saved before the failure in place.
//
// Two Materializer batches against the same identity space must not run
// concurrently; get-or-create by identity is a read-then-write.
package engine
