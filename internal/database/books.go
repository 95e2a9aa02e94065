package database

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	"github.com/mrlokans/booktracker/internal/entities"
	"github.com/mrlokans/booktracker/internal/id"
	"github.com/mrlokans/booktracker/internal/store"
)

// GetOrCreateBook inserts the book unless the ISBN is already taken.
// The insert uses ON CONFLICT DO NOTHING, so racing writers never error and
// the row committed first is returned to everyone.
func (d *Database) GetOrCreateBook(ctx context.Context, in store.BookInput) (*entities.Book, bool, error) {
	bookID, err := id.Generate(id.PrefixBook)
	if err != nil {
		return nil, false, err
	}

	book := &entities.Book{
		ID:            bookID,
		ISBN:          in.ISBN,
		Title:         in.Title,
		Author:        in.Author,
		Genre:         in.Genre,
		CoverImageURL: in.CoverImageURL,
		Description:   in.Description,
	}

	result := d.DB.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "isbn"}}, DoNothing: true}).
		Create(book)
	if result.Error != nil {
		return nil, false, fmt.Errorf("create book %s: %w", in.ISBN, translateError(result.Error))
	}
	if result.RowsAffected == 1 {
		return book, true, nil
	}

	existing, err := d.GetBookByISBN(ctx, in.ISBN)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (d *Database) GetBook(ctx context.Context, bookID string) (*entities.Book, error) {
	var book entities.Book
	if err := d.DB.WithContext(ctx).Where("id = ?", bookID).First(&book).Error; err != nil {
		return nil, translateError(err)
	}
	return &book, nil
}

func (d *Database) GetBookByISBN(ctx context.Context, isbn string) (*entities.Book, error) {
	var book entities.Book
	if err := d.DB.WithContext(ctx).Where("isbn = ?", isbn).First(&book).Error; err != nil {
		return nil, translateError(err)
	}
	return &book, nil
}

// UpdateBook writes only the fields set on update.
func (d *Database) UpdateBook(ctx context.Context, bookID string, update store.BookUpdate) error {
	if update.IsEmpty() {
		_, err := d.GetBook(ctx, bookID)
		return err
	}

	result := d.DB.WithContext(ctx).
		Model(&entities.Book{}).
		Where("id = ?", bookID).
		Updates(bookColumns(update))
	if result.Error != nil {
		return fmt.Errorf("update book %s: %w", bookID, translateError(result.Error))
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// bookColumns converts the typed update into the column map GORM expects.
// A map is used so empty strings are written rather than skipped.
func bookColumns(u store.BookUpdate) map[string]any {
	cols := make(map[string]any)
	if u.Title != nil {
		cols["title"] = *u.Title
	}
	if u.Author != nil {
		cols["author"] = *u.Author
	}
	if u.Genre != nil {
		cols["genre"] = *u.Genre
	}
	if u.CoverImageURL != nil {
		cols["cover_image_url"] = *u.CoverImageURL
	}
	if u.Description != nil {
		cols["description"] = *u.Description
	}
	return cols
}
