// Package contacts persists the local mirror of the device contact table.
//
// # Overview
//
// The package defines a Repository interface for contact storage and a
// SQLite-backed implementation (SQLiteRepository) over dbx.DBTX (either
// *sql.DB or *sql.Tx).
//
// # Data Model
//
// A contact row is keyed by the node's full ed25519 public key. Rows carry
// the routing fields learned over the air (out_path, out_path_len) and the
// last_modified stamp that drives incremental sync: the highest stamp seen
// across a completed sync run becomes the next run's since watermark (held
// in the metadata repository, not here).
//
// # Lookup Forms
//
// Wire pushes and mailbox messages address contacts by a key prefix, not
// the full key, so the repository supports both exact and prefix lookups.
// Misses are reported as common.ErrorNotFound.
//
// Typical Usage
//
//	repo := contacts.NewSQLiteRepository(db)
//	_ = repo.Upsert(ctx, contact)
//	all, _ := repo.GetAll(ctx)
//	one, _ := repo.GetByPrefix(ctx, prefix)
package contacts
