package digest

import (
	"strings"
	"testing"
	"time"

	"github.com/mizajour/leadline/internal/models"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		t.Fatalf("unwrap sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	if err := gdb.AutoMigrate(&models.Customer{}, &models.Conversation{}, &models.Message{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return gdb
}

func TestNewScheduler_Validation(t *testing.T) {
	gdb := openTestDB(t)

	tests := []struct {
		name string
		opts SchedulerOpts
	}{
		{"nil db", SchedulerOpts{CronExpr: "0 9 * * *"}},
		{"empty cron", SchedulerOpts{DB: gdb}},
		{"bad cron", SchedulerOpts{DB: gdb, CronExpr: "whenever"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewScheduler(tt.opts); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestBuild_CountsLast24Hours(t *testing.T) {
	gdb := openTestDB(t)
	now := time.Now().UTC()

	recent := models.Customer{Name: "Ada", ExternalID: "1", CreatedAt: now.Add(-time.Hour)}
	old := models.Customer{Name: "Babbage", ExternalID: "2", CreatedAt: now.Add(-48 * time.Hour)}
	if err := gdb.Create(&recent).Error; err != nil {
		t.Fatalf("seed recent customer: %v", err)
	}
	if err := gdb.Create(&old).Error; err != nil {
		t.Fatalf("seed old customer: %v", err)
	}
	conv := models.Conversation{CustomerID: recent.ID}
	if err := gdb.Create(&conv).Error; err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	msgs := []models.Message{
		{ConversationID: conv.ID, Sender: models.SenderCustomer, Body: "hi", Timestamp: now, CreatedAt: now.Add(-time.Hour)},
		{ConversationID: conv.ID, Sender: models.SenderCustomer, Body: "old", Timestamp: now, CreatedAt: now.Add(-30 * time.Hour)},
		{ConversationID: conv.ID, Sender: models.SenderAgent, Body: "hello", Timestamp: now, CreatedAt: now.Add(-time.Hour)},
	}
	for i := range msgs {
		if err := gdb.Create(&msgs[i]).Error; err != nil {
			t.Fatalf("seed message: %v", err)
		}
	}

	s, err := NewScheduler(SchedulerOpts{DB: gdb, CronExpr: "0 9 * * *", Logger: zerolog.Nop()})
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	text, err := s.Build(now)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.Contains(text, "1 new customer(s)") {
		t.Errorf("digest = %q, want 1 new customer", text)
	}
	if !strings.Contains(text, "1 inbound message(s)") {
		t.Errorf("digest = %q, want 1 inbound message", text)
	}
}

func TestNextCronDuration_ValidExpression(t *testing.T) {
	// "0 9 * * *" = daily at 09:00. Duration should be positive and < 24h.
	d := nextCronDuration("0 9 * * *")
	if d <= 0 {
		t.Fatalf("expected positive duration, got %v", d)
	}
	if d > 24*time.Hour {
		t.Fatalf("expected duration < 24h, got %v", d)
	}
}

func TestNextCronDuration_InvalidExpression(t *testing.T) {
	if d := nextCronDuration("not a cron expr"); d != 0 {
		t.Fatalf("expected 0 for invalid expression, got %v", d)
	}
}
