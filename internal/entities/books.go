package entities

import "time"

type SyncStatus string

const (
	SyncStatusPending SyncStatus = "pending" // created, metadata fetch not finished yet
	SyncStatusSynced  SyncStatus = "synced"  // fetched successfully or edited by hand
	SyncStatusFailed  SyncStatus = "failed"  // terminal until a manual edit
)

func (s SyncStatus) Valid() bool {
	switch s {
	case SyncStatusPending, SyncStatusSynced, SyncStatusFailed:
		return true
	}
	return false
}

type ReadingStatus string

const (
	ReadingStatusToRead  ReadingStatus = "to-read"
	ReadingStatusReading ReadingStatus = "reading"
	ReadingStatusRead    ReadingStatus = "read"
)

// ReadingStatuses lists the statuses in display order.
var ReadingStatuses = []ReadingStatus{ReadingStatusToRead, ReadingStatusReading, ReadingStatusRead}

// Placeholder values written on books created from a scan, before the catalog answers.
const (
	PlaceholderTitle  = "Fetching Title..."
	PlaceholderAuthor = "Fetching Author..."
	UnknownValue      = "Unknown"
)

type Book struct {
	ID            string    `gorm:"primaryKey;size:32" json:"id"`
	ISBN          string    `gorm:"uniqueIndex;size:13;not null" json:"isbn"`
	Title         string    `gorm:"size:512;not null" json:"title"`
	Author        string    `gorm:"size:512;not null" json:"author"`
	Genre         string    `gorm:"size:128" json:"genre,omitempty"`
	CoverImageURL string    `gorm:"size:2048" json:"cover_image_url,omitempty"`
	Description   string    `gorm:"type:text" json:"description,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (Book) TableName() string {
	return "books"
}

// HasPlaceholderTitle reports whether the title still holds the scan placeholder.
func (b *Book) HasPlaceholderTitle() bool {
	return b.Title == PlaceholderTitle
}

func (b *Book) HasPlaceholderAuthor() bool {
	return b.Author == PlaceholderAuthor
}

// UserBook links a user to a book and carries the per-user reading state.
type UserBook struct {
	ID         string        `gorm:"primaryKey;size:32" json:"id"`
	UserID     string        `gorm:"size:32;not null;uniqueIndex:idx_user_books_pair;index" json:"user_id"`
	BookID     string        `gorm:"size:32;not null;uniqueIndex:idx_user_books_pair" json:"book_id"`
	Status     ReadingStatus `gorm:"size:16;not null;default:to-read" json:"status"`
	Rating     *int          `json:"rating,omitempty"`
	SyncStatus SyncStatus    `gorm:"size:16;not null;default:pending;index" json:"sync_status"`
	DateAdded  time.Time     `gorm:"index" json:"date_added"`
	UpdatedAt  time.Time     `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Book *Book `gorm:"foreignKey:BookID;constraint:OnDelete:RESTRICT" json:"book,omitempty"`
}

func (UserBook) TableName() string {
	return "user_books"
}
