package database

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/booktracker/internal/entities"
	"github.com/mrlokans/booktracker/internal/id"
	"github.com/mrlokans/booktracker/internal/store"
)

// CreateUserBook relies on the (user_id, book_id) unique index to reject duplicates.
func (d *Database) CreateUserBook(ctx context.Context, in store.UserBookInput) (*entities.UserBook, error) {
	linkID, err := id.Generate(id.PrefixUserBook)
	if err != nil {
		return nil, err
	}

	ub := &entities.UserBook{
		ID:         linkID,
		UserID:     in.UserID,
		BookID:     in.BookID,
		Status:     in.Status,
		Rating:     in.Rating,
		SyncStatus: in.SyncStatus,
		DateAdded:  time.Now().UTC(),
	}
	if ub.Status == "" {
		ub.Status = entities.ReadingStatusToRead
	}
	if ub.SyncStatus == "" {
		ub.SyncStatus = entities.SyncStatusPending
	}

	if err := d.DB.WithContext(ctx).Omit("User", "Book").Create(ub).Error; err != nil {
		return nil, fmt.Errorf("create user book: %w", translateError(err))
	}
	return ub, nil
}

func (d *Database) GetUserBook(ctx context.Context, linkID string) (*entities.UserBook, error) {
	var ub entities.UserBook
	err := d.DB.WithContext(ctx).Preload("Book").Where("id = ?", linkID).First(&ub).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &ub, nil
}

func (d *Database) FindUserBook(ctx context.Context, userID, bookID string) (*entities.UserBook, error) {
	var ub entities.UserBook
	err := d.DB.WithContext(ctx).
		Where("user_id = ? AND book_id = ?", userID, bookID).
		First(&ub).Error
	if err != nil {
		return nil, translateError(err)
	}
	return &ub, nil
}

func (d *Database) ListUserBooks(ctx context.Context, userID string) ([]entities.UserBook, error) {
	var links []entities.UserBook
	err := d.DB.WithContext(ctx).
		Preload("Book").
		Where("user_id = ?", userID).
		Order("date_added DESC, id DESC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("list user books: %w", err)
	}
	return links, nil
}

func (d *Database) ListUserBooksBySyncStatus(ctx context.Context, status entities.SyncStatus, olderThan time.Time) ([]entities.UserBook, error) {
	var links []entities.UserBook
	err := d.DB.WithContext(ctx).
		Where("sync_status = ? AND date_added < ?", status, olderThan.UTC()).
		Order("date_added ASC").
		Find(&links).Error
	if err != nil {
		return nil, fmt.Errorf("list user books by sync status: %w", err)
	}
	return links, nil
}

func (d *Database) UpdateUserBook(ctx context.Context, linkID string, update store.UserBookUpdate) error {
	if update.IsEmpty() {
		_, err := d.GetUserBook(ctx, linkID)
		return err
	}

	cols := make(map[string]any)
	if update.Status != nil {
		cols["status"] = *update.Status
	}
	if update.ClearRating {
		cols["rating"] = gorm.Expr("NULL")
	} else if update.Rating != nil {
		cols["rating"] = *update.Rating
	}
	if update.SyncStatus != nil {
		cols["sync_status"] = *update.SyncStatus
	}

	result := d.DB.WithContext(ctx).
		Model(&entities.UserBook{}).
		Where("id = ?", linkID).
		Updates(cols)
	if result.Error != nil {
		return fmt.Errorf("update user book %s: %w", linkID, translateError(result.Error))
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteUserBook removes the link row. Books have no cascade from user_books.
func (d *Database) DeleteUserBook(ctx context.Context, linkID string) error {
	result := d.DB.WithContext(ctx).Where("id = ?", linkID).Delete(&entities.UserBook{})
	if result.Error != nil {
		return fmt.Errorf("delete user book %s: %w", linkID, result.Error)
	}
	if result.RowsAffected == 0 {
		return store.ErrNotFound
	}
	return nil
}
