// Package subs keeps server-side subscription records so entitlements
// survive client storage resets and power renewal bookkeeping.
package subs

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/filagate03/FIT-AAAAAI/internal/model"
)

// ErrNotFound is returned when no record exists for a key.
var ErrNotFound = errors.New("subs: record not found")

// Record is a server-side view of one user's subscription.
type Record struct {
	Key              string     `gorm:"primaryKey;size:128" json:"key"`
	TelegramID       int64      `gorm:"index" json:"telegramId"`
	Tier             model.Tier `gorm:"size:16" json:"tier"`
	Status           string     `gorm:"size:16" json:"status"`
	PendingPaymentID string     `gorm:"size:64" json:"pendingPaymentId"`
	NextChargeAt     *time.Time `json:"nextChargeAt,omitempty"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

// Store persists subscription records.
type Store interface {
	Upsert(ctx context.Context, rec Record) error
	Get(ctx context.Context, key string) (Record, error)
	ByTelegramID(ctx context.Context, telegramID int64) ([]Record, error)
}

type gormStore struct {
	db *gorm.DB
}

// NewPostgres opens a postgres-backed store and migrates its schema.
func NewPostgres(dsn string) (Store, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&Record{}); err != nil {
		return nil, err
	}
	return &gormStore{db: db}, nil
}

func (s *gormStore) Upsert(ctx context.Context, rec Record) error {
	return s.db.WithContext(ctx).
		Where(Record{Key: rec.Key}).
		Assign(Record{
			TelegramID:       rec.TelegramID,
			Tier:             rec.Tier,
			Status:           rec.Status,
			PendingPaymentID: rec.PendingPaymentID,
			NextChargeAt:     rec.NextChargeAt,
		}).
		FirstOrCreate(&rec).Error
}

func (s *gormStore) Get(ctx context.Context, key string) (Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).First(&rec, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Record{}, ErrNotFound
	}
	return rec, err
}

func (s *gormStore) ByTelegramID(ctx context.Context, telegramID int64) ([]Record, error) {
	var recs []Record
	err := s.db.WithContext(ctx).
		Where("telegram_id = ?", telegramID).
		Order("updated_at desc").
		Find(&recs).Error
	return recs, err
}

type memoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemory builds an in-process store for deployments without a database.
func NewMemory() Store {
	return &memoryStore{records: make(map[string]Record)}
}

func (s *memoryStore) Upsert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if existing, ok := s.records[rec.Key]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	s.records[rec.Key] = rec
	return nil
}

func (s *memoryStore) Get(_ context.Context, key string) (Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[key]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (s *memoryStore) ByTelegramID(_ context.Context, telegramID int64) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var recs []Record
	for _, rec := range s.records {
		if rec.TelegramID == telegramID {
			recs = append(recs, rec)
		}
	}
	return recs, nil
}
