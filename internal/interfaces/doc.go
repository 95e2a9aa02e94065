// Package interfaces documents the core abstractions of the application and
// holds compile-time checks for their implementations.
//
// # Persistence
//
//   - store.Store: books, library entries and users (internal/store). Backed by
//     GORM over SQLite (internal/database) or Badger (internal/badgerstore).
//     Shared behaviour is pinned by the contract tests in internal/store/storetest.
//
// # Background fetch
//
//   - dispatch.Dispatcher: hands a new library entry to the metadata fetch.
//     Implementations run it in a detached goroutine (dispatch.Immediate),
//     through the backlite queue (tasks.Dispatcher), over Kafka (dispatch.Kafka)
//     or drop it (dispatch.Noop).
//   - dispatch.Syncer: runs one fetch. *metadata.Fetcher is the only implementation.
//
// # External services
//
//   - metadata.Catalog: ISBN lookup (Google Books).
//   - library.Scanner: barcode image to ISBN (internal/barcode).
package interfaces
