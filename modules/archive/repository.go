package archive

import (
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultLimit is used when a query asks for no limit.
const DefaultLimit = 50

// Repository provides access to archived messages. Rows are only inserted.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new archive repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Save stores a message. Saving an id twice keeps the first row and reports
// false.
func (r *Repository) Save(msg *ArchivedMessage) (bool, error) {
	result := r.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "message_id"}},
		DoNothing: true,
	}).Create(msg)
	if err := result.Error; err != nil {
		return false, fmt.Errorf("failed to archive message: %w", err)
	}
	return result.RowsAffected > 0, nil
}

// FindRecent returns the newest limit messages across all rooms, oldest first.
func (r *Repository) FindRecent(limit int) ([]*ArchivedMessage, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	var rows []*ArchivedMessage
	if err := r.db.Order("seq DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find recent messages: %w", err)
	}
	reverse(rows)
	return rows, nil
}

// FindByRoom returns the newest limit messages of a room, newest first.
func (r *Repository) FindByRoom(roomID string, limit int) ([]*ArchivedMessage, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	var rows []*ArchivedMessage
	if err := r.db.Where("room_id = ?", roomID).Order("seq DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to find room messages: %w", err)
	}
	return rows, nil
}

// Count returns the number of archived messages.
func (r *Repository) Count() (int64, error) {
	var n int64
	if err := r.db.Model(&ArchivedMessage{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return n, nil
}

func reverse(rows []*ArchivedMessage) {
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
}
