package store

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"meeting-resource-backend/internal/model"
)

// PutSubscription creates or replaces a push subscription and the rooms it watches.
func (s *gormStore) PutSubscription(ctx context.Context, sub *model.PushSubscription, roomIDs []int64) error {
	return s.atomic(ctx, func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "endpoint"}},
			DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth"}),
		}).Create(sub).Error; err != nil {
			return fmt.Errorf("failed to upsert subscription: %w", err)
		}

		var rooms []*model.Room
		if len(roomIDs) > 0 {
			if err := tx.Where("id IN ?", roomIDs).Find(&rooms).Error; err != nil {
				return fmt.Errorf("failed to load rooms: %w", err)
			}
		}

		assoc := tx.Model(sub).Association("Rooms")
		if len(rooms) == 0 {
			return assoc.Clear()
		}
		return assoc.Replace(rooms)
	})
}

func (s *gormStore) GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).Preload("Rooms").First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return nil, notFound(err, "subscription", endpoint)
	}
	return &sub, nil
}

func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.atomic(ctx, func(tx *gorm.DB) error {
		sub := model.PushSubscription{Endpoint: endpoint}
		if err := tx.Model(&sub).Association("Rooms").Clear(); err != nil {
			return fmt.Errorf("failed to clear rooms of subscription: %w", err)
		}
		if err := tx.Delete(&sub).Error; err != nil {
			return fmt.Errorf("failed to delete subscription: %w", err)
		}
		return nil
	})
}

// SubscriptionsForRoom returns the subscriptions watching a room.
func (s *gormStore) SubscriptionsForRoom(ctx context.Context, roomID int64) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	err := s.db.WithContext(ctx).
		Joins("JOIN subscription_room_mapping srm ON srm.push_subscription_endpoint = push_subscriptions.endpoint").
		Where("srm.room_id = ?", roomID).
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load subscriptions for room %d: %w", roomID, err)
	}
	return subs, nil
}
