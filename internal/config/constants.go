package config

const (
	// DefaultDatabasePath is the default path for the main application database
	DefaultDatabasePath = "./booktracker.db"

	// DefaultBadgerDir is the default directory for the Badger key-value backing
	DefaultBadgerDir = "./booktracker-badger"

	// DefaultGoogleBooksBaseURL is the catalog API root.
	DefaultGoogleBooksBaseURL = "https://www.googleapis.com"
)
