package archive

import (
	"fmt"
	"testing"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(&ArchivedMessage{}); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func newRow(id, room, body string, ts time.Time) *ArchivedMessage {
	return &ArchivedMessage{
		MessageID:  id,
		RoomID:     room,
		SenderID:   "conn-1",
		SenderName: "alice",
		Body:       body,
		Timestamp:  ts,
	}
}

func TestRepository_Save(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	now := time.Now()

	saved, err := repo.Save(newRow("msg_1_1", "general", "hello", now))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !saved {
		t.Error("Save() = false, want true for a new message")
	}

	saved, err = repo.Save(newRow("msg_1_1", "general", "hello again", now))
	if err != nil {
		t.Fatalf("Save() duplicate error = %v", err)
	}
	if saved {
		t.Error("Save() = true, want false for a duplicate id")
	}

	n, err := repo.Count()
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("Count() = %d, want 1", n)
	}
}

func TestRepository_FindRecent(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	base := time.Now()

	for i := 1; i <= 5; i++ {
		room := "general"
		if i%2 == 0 {
			room = "random"
		}
		if _, err := repo.Save(newRow(fmt.Sprintf("msg_%d", i), room, fmt.Sprintf("body %d", i), base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	rows, err := repo.FindRecent(3)
	if err != nil {
		t.Fatalf("FindRecent() error = %v", err)
	}
	want := []string{"msg_3", "msg_4", "msg_5"}
	if len(rows) != len(want) {
		t.Fatalf("FindRecent() returned %d rows, want %d", len(rows), len(want))
	}
	for i, row := range rows {
		if row.MessageID != want[i] {
			t.Errorf("rows[%d] = %s, want %s", i, row.MessageID, want[i])
		}
	}
}

func TestRepository_FindByRoom(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	base := time.Now()

	for i := 1; i <= 4; i++ {
		room := "general"
		if i == 2 {
			room = "random"
		}
		if _, err := repo.Save(newRow(fmt.Sprintf("msg_%d", i), room, "x", base.Add(time.Duration(i)*time.Second))); err != nil {
			t.Fatalf("Save() error = %v", err)
		}
	}

	tests := []struct {
		name  string
		room  string
		limit int
		want  []string
	}{
		{"newest first", "general", 0, []string{"msg_4", "msg_3", "msg_1"}},
		{"limited", "general", 2, []string{"msg_4", "msg_3"}},
		{"other room", "random", 10, []string{"msg_2"}},
		{"unknown room", "nope", 10, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := repo.FindByRoom(tt.room, tt.limit)
			if err != nil {
				t.Fatalf("FindByRoom() error = %v", err)
			}
			if len(rows) != len(tt.want) {
				t.Fatalf("FindByRoom() returned %d rows, want %d", len(rows), len(tt.want))
			}
			for i, row := range rows {
				if row.MessageID != tt.want[i] {
					t.Errorf("rows[%d] = %s, want %s", i, row.MessageID, tt.want[i])
				}
			}
		})
	}
}

func TestArchivedMessage_ToDomain(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	row := newRow("msg_9", "general", "hi", ts)
	row.Delivered = true

	msg := row.ToDomain()
	if msg.ID != "msg_9" || msg.RoomID != "general" || msg.Body != "hi" {
		t.Errorf("ToDomain() = %+v", msg)
	}
	if !msg.Delivered {
		t.Error("ToDomain() lost delivered flag")
	}
	if !msg.Timestamp.Equal(ts) {
		t.Errorf("Timestamp = %v, want %v", msg.Timestamp, ts)
	}
	if msg.Read || len(msg.ReadBy) != 0 {
		t.Error("restored message must start unread")
	}
}
