package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"meeting-resource-backend/internal/model"
)

const defaultSequencePadding = 5

// NextCode returns the next code of a named sequence, e.g. "MB00042", creating
// the sequence with the given prefix on first use.
func (s *gormStore) NextCode(ctx context.Context, sequence, prefix string) (string, error) {
	var code string
	err := s.atomic(ctx, func(tx *gorm.DB) error {
		seq := model.Sequence{Name: sequence, Prefix: prefix, Padding: defaultSequencePadding, NextNumber: 1}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&seq).Error; err != nil {
			return fmt.Errorf("failed to initialise sequence %q: %w", sequence, err)
		}

		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("name = ?", sequence).
			Take(&seq).Error; err != nil {
			return fmt.Errorf("failed to lock sequence %q: %w", sequence, err)
		}

		code = fmt.Sprintf("%s%0*d", seq.Prefix, seq.Padding, seq.NextNumber)

		if err := tx.Model(&model.Sequence{}).
			Where("name = ?", sequence).
			Update("next_number", gorm.Expr("next_number + ?", 1)).Error; err != nil {
			return fmt.Errorf("failed to advance sequence %q: %w", sequence, err)
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return code, nil
}
