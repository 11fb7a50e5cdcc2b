// Package audit persists committed financing events to an SQL database so
// they can be inspected outside the ledger.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"nftfi/core/events"
)

// Record is one persisted event.
type Record struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Seq        uint64    `gorm:"index"`
	Type       string    `gorm:"index;not null"`
	Attributes string    `gorm:"type:text"`
	CreatedAt  time.Time
}

func (Record) TableName() string { return "financing_events" }

// AutoMigrate creates or updates the audit schema.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&Record{})
}

// Open connects to dsn. "sqlite:<path>" selects the pure-Go SQLite driver and
// postgres:// URLs the Postgres driver.
func Open(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		return gorm.Open(sqlite.Open(strings.TrimPrefix(dsn, "sqlite:")), cfg)
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return gorm.Open(postgres.Open(dsn), cfg)
	default:
		return nil, fmt.Errorf("audit: unsupported dsn scheme")
	}
}

// Sink is an events.Emitter writing every event it receives as a Record.
// Write failures are logged and never reach the emitting operation.
type Sink struct {
	db     *gorm.DB
	logger *slog.Logger
	nowFn  func() time.Time
	seq    uint64
}

// NewSink migrates db and returns a sink appending to it.
func NewSink(db *gorm.DB, logger *slog.Logger) (*Sink, error) {
	if db == nil {
		return nil, fmt.Errorf("audit: database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("audit: migrate: %w", err)
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	var last Record
	s := &Sink{db: db, logger: logger, nowFn: time.Now}
	if err := db.Order("seq desc").Limit(1).Find(&last).Error; err != nil {
		return nil, fmt.Errorf("audit: load sequence: %w", err)
	}
	if last.ID != uuid.Nil {
		s.seq = last.Seq + 1
	}
	return s, nil
}

// Emit implements events.Emitter.
func (s *Sink) Emit(evt events.Event) {
	if s == nil || evt == nil {
		return
	}
	attrs := map[string]string{}
	if typed, ok := evt.(events.Typed); ok {
		if rendered := typed.Event(); rendered != nil {
			attrs = rendered.Attributes
		}
	}
	payload, err := json.Marshal(attrs)
	if err != nil {
		s.logger.Error("audit: encode event", "type", evt.EventType(), "error", err)
		return
	}
	record := Record{
		ID:         uuid.New(),
		Seq:        s.seq,
		Type:       evt.EventType(),
		Attributes: string(payload),
		CreatedAt:  s.nowFn().UTC(),
	}
	if err := s.db.Create(&record).Error; err != nil {
		s.logger.Error("audit: persist event", "type", record.Type, "error", err)
		return
	}
	s.seq++
}

// List returns up to limit records in emission order, optionally filtered by
// event type.
func (s *Sink) List(ctx context.Context, eventType string, limit int) ([]Record, error) {
	query := s.db.WithContext(ctx).Order("seq asc")
	if eventType = strings.TrimSpace(eventType); eventType != "" {
		query = query.Where("type = ?", eventType)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	var out []Record
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Decode returns the attribute map of a record.
func (r Record) Decode() (map[string]string, error) {
	attrs := map[string]string{}
	if r.Attributes == "" {
		return attrs, nil
	}
	if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
		return nil, err
	}
	return attrs, nil
}
