// Package database is the relational store.Store backing: GORM over SQLite.
//
// # Schema
//
//	users       unique username, unique email
//	books       unique isbn
//	user_books  unique (user_id, book_id), FK user_id -> users (cascade),
//	            FK book_id -> books (restrict)
//
// Uniqueness is enforced by the database, never by a read-then-write check:
//
//   - GetOrCreateBook inserts with ON CONFLICT(isbn) DO NOTHING and re-reads
//     on conflict, so the first committed writer wins.
//   - CreateUserBook maps the unique-index violation to store.ErrAlreadyExists.
//
// # Partial updates
//
// UpdateBook and UpdateUserBook take typed update structs. Only non-nil
// fields become columns in the UPDATE statement, so a metadata fetch and a
// manual edit touching different columns never overwrite each other.
//
// # Usage
//
//	db, err := database.NewDatabase("./booktracker.db", database.Options{})
//	book, created, err := db.GetOrCreateBook(ctx, store.BookInput{ISBN: isbn})
package database
