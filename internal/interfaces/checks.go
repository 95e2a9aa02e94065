package interfaces

// Compile-time checks that concrete types satisfy the interfaces they are
// wired behind. To verify: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/booktracker/internal/badgerstore"
	"github.com/mrlokans/booktracker/internal/barcode"
	"github.com/mrlokans/booktracker/internal/database"
	"github.com/mrlokans/booktracker/internal/dispatch"
	"github.com/mrlokans/booktracker/internal/http"
	"github.com/mrlokans/booktracker/internal/library"
	"github.com/mrlokans/booktracker/internal/metadata"
	"github.com/mrlokans/booktracker/internal/scheduler"
	"github.com/mrlokans/booktracker/internal/store"
	"github.com/mrlokans/booktracker/internal/tasks"
)

// =============================================================================
// Persistence
// =============================================================================

var _ store.Store = (*database.Database)(nil)
var _ store.Store = (*badgerstore.Store)(nil)

var _ library.Store = (store.Store)(nil)
var _ metadata.Store = (store.Store)(nil)
var _ scheduler.PendingLister = (store.Store)(nil)
var _ http.Pinger = (store.Store)(nil)

// =============================================================================
// Background fetch
// =============================================================================

var _ dispatch.Dispatcher = dispatch.Noop{}
var _ dispatch.Dispatcher = (*dispatch.Immediate)(nil)
var _ dispatch.Dispatcher = (*dispatch.Kafka)(nil)
var _ dispatch.Dispatcher = (*tasks.Dispatcher)(nil)

var _ dispatch.Syncer = (*metadata.Fetcher)(nil)
var _ tasks.Syncer = (*metadata.Fetcher)(nil)
var _ scheduler.Redispatcher = (*library.Service)(nil)

// =============================================================================
// External services
// =============================================================================

var _ metadata.Catalog = (*metadata.GoogleBooksClient)(nil)

var _ library.Scanner = (*barcode.Scanner)(nil)
var _ http.ScanCapability = (*barcode.Scanner)(nil)
