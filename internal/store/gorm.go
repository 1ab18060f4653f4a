package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/ff-marketplace-subgraph/internal/domain"
	"github.com/feral-file/ff-marketplace-subgraph/internal/store/schema"
)

// gormStore persists entities as JSON documents in the entities table.
// Works against PostgreSQL in production and SQLite for local runs.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a store over db
func NewGormStore(db *gorm.DB) TxStore {
	return &gormStore{db: db}
}

// Migrate creates the entities and key_value_store tables when missing
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&schema.Entity{}, &schema.KeyValueStore{}); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (s *gormStore) Load(ctx context.Context, kind domain.Kind, id string, dst domain.Entity) (bool, error) {
	var row schema.Entity
	err := s.db.WithContext(ctx).
		Where("kind = ? AND id = ?", string(kind), id).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load %s %s: %w", kind, id, err)
	}

	if err := json.Unmarshal(row.Data, dst); err != nil {
		return false, fmt.Errorf("failed to decode %s %s: %w", kind, id, err)
	}
	return true, nil
}

func (s *gormStore) Exists(ctx context.Context, kind domain.Kind, id string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&schema.Entity{}).
		Where("kind = ? AND id = ?", string(kind), id).
		Limit(1).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check %s %s: %w", kind, id, err)
	}
	return count > 0, nil
}

func (s *gormStore) Save(ctx context.Context, entity domain.Entity) error {
	data, err := json.Marshal(entity)
	if err != nil {
		return fmt.Errorf("failed to encode %s %s: %w", entity.Kind(), entity.EntityID(), err)
	}

	row := schema.Entity{
		Kind: string(entity.Kind()),
		ID:   entity.EntityID(),
		Data: datatypes.JSON(data),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "kind"}, {Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("failed to save %s %s: %w", entity.Kind(), entity.EntityID(), err)
	}
	return nil
}

func (s *gormStore) Remove(ctx context.Context, kind domain.Kind, id string) error {
	err := s.db.WithContext(ctx).
		Where("kind = ? AND id = ?", string(kind), id).
		Delete(&schema.Entity{}).Error
	if err != nil {
		return fmt.Errorf("failed to remove %s %s: %w", kind, id, err)
	}
	return nil
}

func (s *gormStore) InTx(ctx context.Context, fn func(tx TxStore) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}
