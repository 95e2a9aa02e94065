// Command generate_demo creates a demo database with a reader and a library
// of public domain books.
// Usage: go run ./cmd/generate_demo [-db path/to/demo.db]
package main

import (
	"context"
	"flag"
	"os"

	"go.uber.org/zap"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/booktracker/internal/auth"
	"github.com/mrlokans/booktracker/internal/config"
	"github.com/mrlokans/booktracker/internal/database"
	"github.com/mrlokans/booktracker/internal/dispatch"
	"github.com/mrlokans/booktracker/internal/entities"
	"github.com/mrlokans/booktracker/internal/library"
	"github.com/mrlokans/booktracker/internal/logging"
)

const (
	defaultDemoDatabasePath = "./demo/demo.db"
	demoUsername            = "demo"
	demoEmail               = "demo@example.com"
)

type demoBook struct {
	input library.AddBookInput
	// synced entries look as if the catalog fetch already ran
	synced bool
}

func main() {
	dbPath := flag.String("db", defaultDemoDatabasePath, "path to the demo database file")
	password := flag.String("password", "demo-password", "password for the demo account")
	flag.Parse()

	log, err := logging.New("info", "console")
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("generating demo database", zap.String("path", *dbPath))

	if err := os.Remove(*dbPath); err != nil && !os.IsNotExist(err) {
		log.Fatal("failed to remove existing demo database", zap.Error(err))
	}

	db, err := database.NewDatabase(*dbPath, database.Options{LogLevel: logger.Silent, Logger: log})
	if err != nil {
		log.Fatal("failed to create database", zap.Error(err))
	}
	defer db.Close()

	ctx := context.Background()

	users := auth.NewService(db, config.Auth{}, log)
	user, err := users.Register(ctx, auth.RegisterInput{
		Username:        demoUsername,
		Email:           demoEmail,
		Password:        *password,
		ConfirmPassword: *password,
	})
	if err != nil {
		log.Fatal("failed to create demo user", zap.Error(err))
	}

	books := library.NewService(db, dispatch.Noop{}, nil, log)
	for _, b := range publicDomainBooks() {
		added, err := books.AddBook(ctx, user.ID, b.input)
		if err != nil {
			log.Warn("failed to add book", zap.String("title", b.input.Title), zap.Error(err))
			continue
		}
		if b.synced {
			if _, err := books.EditBook(ctx, user.ID, added.UserBook.ID, library.EditBookInput{}); err != nil {
				log.Warn("failed to mark book synced", zap.String("title", b.input.Title), zap.Error(err))
			}
		}
		log.Info("saved", zap.String("title", b.input.Title), zap.String("author", b.input.Author))
	}

	log.Info("demo database generated", zap.String("email", demoEmail))
}

func rating(n int) *int { return &n }

func publicDomainBooks() []demoBook {
	return []demoBook{
		{synced: true, input: library.AddBookInput{
			ISBN:        "9780141439518",
			Title:       "Pride and Prejudice",
			Author:      "Jane Austen",
			Genre:       "Fiction",
			Description: "A witty portrait of manners and marriage among the landed gentry of Regency England.",
			Status:      entities.ReadingStatusRead,
			Rating:      rating(5),
		}},
		{synced: true, input: library.AddBookInput{
			ISBN:        "9780141441146",
			Title:       "Jane Eyre",
			Author:      "Charlotte Brontë",
			Genre:       "Fiction",
			Description: "An orphaned governess finds independence and love at Thornfield Hall.",
			Status:      entities.ReadingStatusReading,
		}},
		{synced: true, input: library.AddBookInput{
			ISBN:        "9780140449334",
			Title:       "Meditations",
			Author:      "Marcus Aurelius",
			Genre:       "Philosophy",
			Description: "Private notes of a Roman emperor on Stoic discipline and duty.",
			Status:      entities.ReadingStatusRead,
			Rating:      rating(4),
		}},
		{input: library.AddBookInput{
			ISBN:   "9780141439846",
			Title:  "Frankenstein",
			Author: "Mary Shelley",
			Status: entities.ReadingStatusToRead,
		}},
		{input: library.AddBookInput{
			ISBN:   "9780486284736",
			Title:  "The Origin of Species",
			Author: "Charles Darwin",
			Genre:  "Science",
		}},
	}
}
