// Package objectstore is a small transactional key-value document store on top
// of SQLite (modernc.org/sqlite).
//
// Data is grouped into named partitions. Each partition declares a key path and
// stores one JSON document per key; the key is read from the document itself.
// Partitions are created and changed only by versioned migrations, which run
// once when a Client first opens the database (see Migration and Schema).
//
// A Client is constructed once and injected wherever storage is needed:
//
//	store := objectstore.New(objectstore.Options{
//		Path:       "/var/lib/soundboard/store.db",
//		Migrations: schema.Migrations(),
//	})
//	db, err := store.Open(ctx)
//
// Every open handle holds a shared advisory lock on "<path>.lock". A migration
// needs the exclusive lock; when other handles keep it from being taken within
// Options.BlockedTimeout the open fails with common.ErrBlocked. Opens of one
// path are serialized through "<path>.open.lock".
//
// Client.Store returns a Store that reopens the database on demand, for
// callers that outlive a Close.
package objectstore
