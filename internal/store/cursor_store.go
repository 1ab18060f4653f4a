package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/feral-file/ff-marketplace-subgraph/internal/store/schema"
)

func cursorKey(network string) string {
	return fmt.Sprintf("block_cursor:%s", network)
}

// GetBlockCursor retrieves the last processed block number for a network
func (s *gormStore) GetBlockCursor(ctx context.Context, network string) (uint64, bool, error) {
	var kv schema.KeyValueStore
	err := s.db.WithContext(ctx).Where("key = ?", cursorKey(network)).First(&kv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("failed to get block cursor: %w", err)
	}

	blockNumber, err := strconv.ParseUint(kv.Value, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse block cursor: %w", err)
	}

	return blockNumber, true, nil
}

// SetBlockCursor stores the last processed block number for a network
func (s *gormStore) SetBlockCursor(ctx context.Context, network string, blockNumber uint64) error {
	kv := schema.KeyValueStore{
		Key:   cursorKey(network),
		Value: strconv.FormatUint(blockNumber, 10),
	}

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(&kv).Error
	if err != nil {
		return fmt.Errorf("failed to set block cursor: %w", err)
	}

	return nil
}
