package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"meeting-resource-backend/internal/model"
)

func (s *gormStore) CreateRoom(ctx context.Context, room *model.Room) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(room).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("room code %q: %w", room.Code, ErrConflict)
		}
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

func (s *gormStore) GetRoom(ctx context.Context, id int64) (*model.Room, error) {
	var room model.Room
	if err := s.db.WithContext(ctx).Preload("Assets").First(&room, id).Error; err != nil {
		return nil, notFound(err, "room", id)
	}
	return &room, nil
}

// LockRoom loads the room row with FOR UPDATE. Drivers without row locks
// (sqlite) ignore the clause.
func (s *gormStore) LockRoom(ctx context.Context, id int64) (*model.Room, error) {
	var room model.Room
	if err := s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&room, id).Error; err != nil {
		return nil, notFound(err, "room", id)
	}
	return &room, nil
}

func (s *gormStore) ListRooms(ctx context.Context, f RoomFilter) ([]model.Room, error) {
	q := s.db.WithContext(ctx).Model(&model.Room{})
	if len(f.IDs) > 0 {
		q = q.Where("id IN ?", f.IDs)
	}
	if f.Code != "" {
		q = q.Where("code = ?", f.Code)
	}
	if f.ActiveOnly {
		q = q.Where("active = ?", true)
	}
	if f.State != "" {
		q = q.Where("state = ?", f.State)
	}
	if f.MinCapacity > 0 {
		q = q.Where("capacity >= ?", f.MinCapacity)
	}
	if kw := strings.TrimSpace(f.Keyword); kw != "" {
		like := "%" + strings.ToLower(kw) + "%"
		q = q.Where("LOWER(location) LIKE ? OR LOWER(name) LIKE ?", like, like)
	}
	if f.CompanyID > 0 {
		q = q.Where("company_id = ?", f.CompanyID)
	}
	if f.BranchID > 0 {
		q = q.Where("branch_id = ?", f.BranchID)
	}

	var rooms []model.Room
	if err := q.Order("id").Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to list rooms: %w", err)
	}
	return rooms, nil
}

func (s *gormStore) SaveRoom(ctx context.Context, room *model.Room) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(room).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("room code %q: %w", room.Code, ErrConflict)
		}
		return fmt.Errorf("failed to save room %d: %w", room.ID, err)
	}
	return nil
}

func (s *gormStore) SetRoomState(ctx context.Context, id int64, state model.RoomState) error {
	res := s.db.WithContext(ctx).Model(&model.Room{}).Where("id = ?", id).Update("state", state)
	if res.Error != nil {
		return fmt.Errorf("failed to set state of room %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("room %d: %w", id, ErrNotFound)
	}
	return nil
}

// CompareAndSetRoomState moves the room to `to` only when it is currently in
// `from`. It reports whether a row changed.
func (s *gormStore) CompareAndSetRoomState(ctx context.Context, id int64, from, to model.RoomState) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Room{}).
		Where("id = ? AND state = ?", id, from).
		Update("state", to)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update state of room %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (s *gormStore) ReplaceRoomAssets(ctx context.Context, roomID int64, assetIDs []int64) error {
	return s.atomic(ctx, func(tx *gorm.DB) error {
		room := model.Room{ID: roomID}
		if len(assetIDs) == 0 {
			if err := tx.Model(&room).Association("Assets").Clear(); err != nil {
				return fmt.Errorf("failed to clear assets of room %d: %w", roomID, err)
			}
			return nil
		}

		var assets []model.Asset
		if err := tx.Where("id IN ?", assetIDs).Find(&assets).Error; err != nil {
			return fmt.Errorf("failed to load assets: %w", err)
		}
		if len(assets) != len(uniqueIDs(assetIDs)) {
			return fmt.Errorf("some assets of %v: %w", assetIDs, ErrNotFound)
		}
		if err := tx.Model(&room).Association("Assets").Replace(assets); err != nil {
			return fmt.Errorf("failed to attach assets to room %d: %w", roomID, err)
		}
		return nil
	})
}

func (s *gormStore) RoomAssets(ctx context.Context, roomID int64) ([]model.Asset, error) {
	var assets []model.Asset
	err := s.db.WithContext(ctx).
		Joins("JOIN room_assets ra ON ra.asset_id = assets.id").
		Where("ra.room_id = ? AND assets.active = ?", roomID, true).
		Order("assets.id").
		Find(&assets).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load assets of room %d: %w", roomID, err)
	}
	return assets, nil
}

// RoomEquipmentTypes returns the equipment type codes of the active assets
// attached to each room.
func (s *gormStore) RoomEquipmentTypes(ctx context.Context, roomIDs []int64) (map[int64][]string, error) {
	out := make(map[int64][]string, len(roomIDs))
	if len(roomIDs) == 0 {
		return out, nil
	}

	type row struct {
		RoomID int64
		Code   string
	}
	var rows []row
	err := s.db.WithContext(ctx).
		Table("room_assets").
		Select("DISTINCT room_assets.room_id AS room_id, equipment_types.code AS code").
		Joins("JOIN assets ON assets.id = room_assets.asset_id").
		Joins("JOIN equipment_types ON equipment_types.id = assets.equipment_type_id").
		Where("room_assets.room_id IN ? AND assets.active = ?", roomIDs, true).
		Order("room_assets.room_id, equipment_types.code").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load room equipment types: %w", err)
	}
	for _, r := range rows {
		out[r.RoomID] = append(out[r.RoomID], r.Code)
	}
	return out, nil
}

// DeleteRoom removes a room that no booking or maintenance request references.
func (s *gormStore) DeleteRoom(ctx context.Context, id int64) error {
	return s.atomic(ctx, func(tx *gorm.DB) error {
		var room model.Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&room, id).Error; err != nil {
			return notFound(err, "room", id)
		}

		var bookings, requests int64
		if err := tx.Model(&model.Booking{}).Where("room_id = ?", id).Count(&bookings).Error; err != nil {
			return fmt.Errorf("failed to count bookings of room %d: %w", id, err)
		}
		if err := tx.Model(&model.MaintenanceRequest{}).Where("room_id = ?", id).Count(&requests).Error; err != nil {
			return fmt.Errorf("failed to count maintenance requests of room %d: %w", id, err)
		}
		if bookings > 0 || requests > 0 {
			return fmt.Errorf("room %d is referenced by %d bookings and %d maintenance requests: %w", id, bookings, requests, ErrConflict)
		}

		if err := tx.Model(&room).Association("Assets").Clear(); err != nil {
			return fmt.Errorf("failed to detach assets of room %d: %w", id, err)
		}
		if err := tx.Delete(&room).Error; err != nil {
			return fmt.Errorf("failed to delete room %d: %w", id, err)
		}
		return nil
	})
}

func (s *gormStore) CreateAsset(ctx context.Context, asset *model.Asset) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(asset).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("asset code %q: %w", asset.Code, ErrConflict)
		}
		return fmt.Errorf("failed to create asset: %w", err)
	}
	return nil
}

func (s *gormStore) GetAsset(ctx context.Context, id int64) (*model.Asset, error) {
	var asset model.Asset
	if err := s.db.WithContext(ctx).Preload("EquipmentType").First(&asset, id).Error; err != nil {
		return nil, notFound(err, "asset", id)
	}
	return &asset, nil
}

func (s *gormStore) LockAsset(ctx context.Context, id int64) (*model.Asset, error) {
	var asset model.Asset
	if err := s.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&asset, id).Error; err != nil {
		return nil, notFound(err, "asset", id)
	}
	return &asset, nil
}

func (s *gormStore) ListAssets(ctx context.Context, f AssetFilter) ([]model.Asset, error) {
	q := s.db.WithContext(ctx).Model(&model.Asset{}).Preload("EquipmentType")
	if len(f.IDs) > 0 {
		q = q.Where("assets.id IN ?", f.IDs)
	}
	if f.Code != "" {
		q = q.Where("assets.code = ?", f.Code)
	}
	if f.ActiveOnly {
		q = q.Where("assets.active = ?", true)
	}
	if f.State != "" {
		q = q.Where("assets.state = ?", f.State)
	}
	if f.CategoryID > 0 {
		q = q.Where("assets.category_id = ?", f.CategoryID)
	}
	if f.EquipmentTypeID > 0 {
		q = q.Where("assets.equipment_type_id = ?", f.EquipmentTypeID)
	}
	if f.RoomID > 0 {
		q = q.Joins("JOIN room_assets ra ON ra.asset_id = assets.id").Where("ra.room_id = ?", f.RoomID)
	}

	var assets []model.Asset
	if err := q.Order("assets.id").Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return assets, nil
}

func (s *gormStore) AssetsByIDs(ctx context.Context, ids []int64) ([]model.Asset, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var assets []model.Asset
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Order("id").Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("failed to load assets: %w", err)
	}
	if len(assets) != len(uniqueIDs(ids)) {
		return nil, fmt.Errorf("some assets of %v: %w", ids, ErrNotFound)
	}
	return assets, nil
}

func (s *gormStore) SaveAsset(ctx context.Context, asset *model.Asset) error {
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Save(asset).Error; err != nil {
		if isDuplicate(err) {
			return fmt.Errorf("asset code %q: %w", asset.Code, ErrConflict)
		}
		return fmt.Errorf("failed to save asset %d: %w", asset.ID, err)
	}
	return nil
}

// SaveAssetFigures writes only the depreciation-derived columns, so a state or
// assignment change made since the asset was read survives.
func (s *gormStore) SaveAssetFigures(ctx context.Context, asset *model.Asset) error {
	res := s.db.WithContext(ctx).Model(&model.Asset{}).Where("id = ?", asset.ID).Updates(map[string]any{
		"elapsed_periods":           asset.ElapsedPeriods,
		"period_depreciation":       asset.PeriodDepreciation,
		"accumulated_depreciation":  asset.AccumulatedDepreciation,
		"book_value":                asset.BookValue,
		"depreciation_evaluated_at": asset.DepreciationEvaluatedAt,
	})
	if res.Error != nil {
		return fmt.Errorf("failed to save depreciation of asset %d: %w", asset.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("asset %d: %w", asset.ID, ErrNotFound)
	}
	return nil
}

func (s *gormStore) SetAssetState(ctx context.Context, id int64, state model.AssetState) error {
	res := s.db.WithContext(ctx).Model(&model.Asset{}).Where("id = ?", id).Update("state", state)
	if res.Error != nil {
		return fmt.Errorf("failed to set state of asset %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("asset %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *gormStore) CompareAndSetAssetState(ctx context.Context, id int64, from, to model.AssetState) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.Asset{}).
		Where("id = ? AND state = ?", id, from).
		Update("state", to)
	if res.Error != nil {
		return false, fmt.Errorf("failed to update state of asset %d: %w", id, res.Error)
	}
	return res.RowsAffected > 0, nil
}

// MarkOverdueAssets moves active assets whose next maintenance date lies
// before today into maintenance. Assets already in maintenance or broken are
// left alone.
func (s *gormStore) MarkOverdueAssets(ctx context.Context, today time.Time) ([]int64, error) {
	var ids []int64
	err := s.atomic(ctx, func(tx *gorm.DB) error {
		if err := tx.Model(&model.Asset{}).
			Where("active = ? AND next_maintenance_date IS NOT NULL AND next_maintenance_date < ?", true, today).
			Where("state NOT IN ?", []model.AssetState{model.AssetMaintenance, model.AssetBroken}).
			Order("id").
			Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("failed to find overdue assets: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		if err := tx.Model(&model.Asset{}).Where("id IN ?", ids).Update("state", model.AssetMaintenance).Error; err != nil {
			return fmt.Errorf("failed to mark overdue assets: %w", err)
		}
		return nil
	})
	return ids, err
}

// DeleteAsset removes an asset no booking or maintenance request references.
func (s *gormStore) DeleteAsset(ctx context.Context, id int64) error {
	return s.atomic(ctx, func(tx *gorm.DB) error {
		var asset model.Asset
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&asset, id).Error; err != nil {
			return notFound(err, "asset", id)
		}

		var bookings, requests int64
		if err := tx.Table("booking_equipment").Where("asset_id = ?", id).Count(&bookings).Error; err != nil {
			return fmt.Errorf("failed to count bookings of asset %d: %w", id, err)
		}
		if err := tx.Model(&model.MaintenanceRequest{}).Where("asset_id = ?", id).Count(&requests).Error; err != nil {
			return fmt.Errorf("failed to count maintenance requests of asset %d: %w", id, err)
		}
		if bookings > 0 || requests > 0 {
			return fmt.Errorf("asset %d is referenced by %d bookings and %d maintenance requests: %w", id, bookings, requests, ErrConflict)
		}

		if err := tx.Exec("DELETE FROM room_assets WHERE asset_id = ?", id).Error; err != nil {
			return fmt.Errorf("failed to detach asset %d from rooms: %w", id, err)
		}
		if err := tx.Delete(&asset).Error; err != nil {
			return fmt.Errorf("failed to delete asset %d: %w", id, err)
		}
		return nil
	})
}

func uniqueIDs(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
