// Package registry manages rooms, assets and their classification.
package registry

import (
	"context"
	"fmt"
	"strings"
	"time"

	"meeting-resource-backend/internal/logger"
	"meeting-resource-backend/internal/model"
	"meeting-resource-backend/internal/schedule"
	"meeting-resource-backend/internal/store"
)

type Service struct {
	store       store.Store
	log         *logger.Logger
	assetPrefix string
	now         func() time.Time
}

func New(st store.Store, assetPrefix string, log *logger.Logger) *Service {
	if assetPrefix == "" {
		assetPrefix = "AST"
	}
	return &Service{store: st, log: logger.OrNop(log), assetPrefix: assetPrefix, now: time.Now}
}

// RoomInput is the payload for creating or updating a room.
type RoomInput struct {
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	CompanyID int64           `json:"companyId"`
	BranchID  *int64          `json:"branchId"`
	Location  string          `json:"location"`
	Capacity  int             `json:"capacity"`
	State     model.RoomState `json:"state"`
	Active    *bool           `json:"active"`
	Note      string          `json:"note"`
}

func (in *RoomInput) validate() error {
	in.Code = strings.TrimSpace(in.Code)
	in.Name = strings.TrimSpace(in.Name)
	if in.Code == "" {
		return schedule.Invalid(schedule.ConstraintField, "room code is required")
	}
	if in.Name == "" {
		return schedule.Invalid(schedule.ConstraintField, "room name is required")
	}
	if in.Capacity < 0 {
		return schedule.Invalid(schedule.ConstraintField, "capacity must not be negative")
	}
	if in.State == "" {
		in.State = model.RoomAvailable
	}
	if !in.State.Valid() {
		return schedule.Invalid(schedule.ConstraintState, "unknown room state %q", in.State)
	}
	return nil
}

// RoomDetail is a room with its derived read-time fields.
type RoomDetail struct {
	model.Room
	LiveState               schedule.LiveState `json:"liveState"`
	BookingCount            int64              `json:"bookingCount"`
	MaintenanceRequestCount int64              `json:"maintenanceRequestCount"`
	EquipmentTypes          []string           `json:"equipmentTypes"`
}

func (s *Service) CreateRoom(ctx context.Context, in RoomInput) (*model.Room, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	if err := s.ensureRoomCodeFree(ctx, in.Code, 0); err != nil {
		return nil, err
	}

	room := &model.Room{Active: true}
	applyRoom(room, in)
	if err := s.store.CreateRoom(ctx, room); err != nil {
		return nil, err
	}
	s.log.Info("room created", "id", room.ID, "code", room.Code)
	return room, nil
}

func (s *Service) UpdateRoom(ctx context.Context, id int64, in RoomInput) (*model.Room, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	room, err := s.store.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.ensureRoomCodeFree(ctx, in.Code, id); err != nil {
		return nil, err
	}
	applyRoom(room, in)
	if err := s.store.SaveRoom(ctx, room); err != nil {
		return nil, err
	}
	return room, nil
}

func applyRoom(room *model.Room, in RoomInput) {
	room.Code = in.Code
	room.Name = in.Name
	room.CompanyID = in.CompanyID
	room.BranchID = in.BranchID
	room.Location = in.Location
	room.Capacity = in.Capacity
	room.State = in.State
	room.Note = in.Note
	if in.Active != nil {
		room.Active = *in.Active
	}
}

func (s *Service) ensureRoomCodeFree(ctx context.Context, code string, self int64) error {
	rooms, err := s.store.ListRooms(ctx, store.RoomFilter{Code: code})
	if err != nil {
		return err
	}
	for _, r := range rooms {
		if r.ID != self {
			return fmt.Errorf("room code %q: %w", code, store.ErrConflict)
		}
	}
	return nil
}

// SetRoomState is the explicit user action on a room's admin state.
func (s *Service) SetRoomState(ctx context.Context, id int64, state model.RoomState) error {
	if !state.Valid() {
		return schedule.Invalid(schedule.ConstraintState, "unknown room state %q", state)
	}
	return s.store.SetRoomState(ctx, id, state)
}

func (s *Service) ArchiveRoom(ctx context.Context, id int64) error {
	room, err := s.store.GetRoom(ctx, id)
	if err != nil {
		return err
	}
	room.Active = false
	return s.store.SaveRoom(ctx, room)
}

// AttachAssets replaces the set of assets attached to the room.
func (s *Service) AttachAssets(ctx context.Context, roomID int64, assetIDs []int64) error {
	if _, err := s.store.GetRoom(ctx, roomID); err != nil {
		return err
	}
	if err := s.store.ReplaceRoomAssets(ctx, roomID, assetIDs); err != nil {
		return err
	}
	return nil
}

func (s *Service) DeleteRoom(ctx context.Context, id int64) error {
	return s.store.DeleteRoom(ctx, id)
}

func (s *Service) GetRoom(ctx context.Context, id int64) (*model.Room, error) {
	return s.store.GetRoom(ctx, id)
}

func (s *Service) ListRooms(ctx context.Context, f store.RoomFilter) ([]model.Room, error) {
	return s.store.ListRooms(ctx, f)
}

// RoomEquipmentTypes returns the equipment type codes the room offers.
func (s *Service) RoomEquipmentTypes(ctx context.Context, roomID int64) ([]string, error) {
	types, err := s.store.RoomEquipmentTypes(ctx, []int64{roomID})
	if err != nil {
		return nil, err
	}
	return types[roomID], nil
}

// LiveStates resolves the observed state of each room at the given instant.
// The ledgers are read fresh on every call.
func (s *Service) LiveStates(ctx context.Context, rooms []model.Room, at time.Time) (map[int64]schedule.LiveState, error) {
	ids := make([]int64, 0, len(rooms))
	for _, r := range rooms {
		ids = append(ids, r.ID)
	}
	windows, err := s.store.RoomWindowsAt(ctx, ids, at)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]schedule.LiveState, len(rooms))
	for _, r := range rooms {
		out[r.ID] = schedule.Resolve(r.State, at, windows.Downtime[r.ID], windows.Bookings[r.ID])
	}
	return out, nil
}

func (s *Service) RoomDetail(ctx context.Context, id int64, at time.Time) (*RoomDetail, error) {
	room, err := s.store.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	states, err := s.LiveStates(ctx, []model.Room{*room}, at)
	if err != nil {
		return nil, err
	}
	bookings, err := s.store.CountBookings(ctx, id)
	if err != nil {
		return nil, err
	}
	requests, err := s.store.CountMaintenance(ctx, store.RoomTarget(id))
	if err != nil {
		return nil, err
	}
	types, err := s.RoomEquipmentTypes(ctx, id)
	if err != nil {
		return nil, err
	}
	if types == nil {
		types = []string{}
	}
	return &RoomDetail{
		Room:                    *room,
		LiveState:               states[id],
		BookingCount:            bookings,
		MaintenanceRequestCount: requests,
		EquipmentTypes:          types,
	}, nil
}
