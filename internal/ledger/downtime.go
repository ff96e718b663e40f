package ledger

import (
	"context"
	"fmt"
	"strings"
	"time"

	"meeting-resource-backend/internal/events"
	"meeting-resource-backend/internal/model"
	"meeting-resource-backend/internal/schedule"
	"meeting-resource-backend/internal/store"
)

// MaintenanceInput is the payload for creating or updating a maintenance
// request. Exactly one of RoomID and AssetID is used, picked by RequestFor.
type MaintenanceInput struct {
	Code          string                 `json:"code"`
	Title         string                 `json:"title"`
	Description   string                 `json:"description"`
	CompanyID     int64                  `json:"companyId"`
	RequestFor    model.RequestFor       `json:"requestFor"`
	RoomID        int64                  `json:"roomId"`
	AssetID       int64                  `json:"assetId"`
	CategoryID    *int64                 `json:"categoryId"`
	TeamID        *int64                 `json:"teamId"`
	RequestedByID *int64                 `json:"requestedById"`
	Priority      int                    `json:"priority"`
	State         model.MaintenanceState `json:"state"`
	DowntimeStart *time.Time             `json:"downtimeStart"`
	DowntimeEnd   *time.Time             `json:"downtimeEnd"`
	ScheduledDate *time.Time             `json:"scheduledDate"`
	Cost          float64                `json:"cost"`
}

// Validate checks the request shape and returns its target. An empty state
// means draft on create and "unchanged" on update.
func (in *MaintenanceInput) Validate() (store.Target, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return store.Target{}, schedule.Invalid(schedule.ConstraintField, "title is required")
	}
	switch in.State {
	case "", model.MaintenanceDraft, model.MaintenanceSubmitted, model.MaintenanceInProgress,
		model.MaintenanceDone, model.MaintenanceCancelled:
	default:
		return store.Target{}, schedule.Invalid(schedule.ConstraintState, "unknown maintenance state %q", in.State)
	}
	if in.Priority < 0 || in.Priority > 3 {
		return store.Target{}, schedule.Invalid(schedule.ConstraintField, "priority must be between 0 and 3")
	}
	if in.Cost < 0 {
		return store.Target{}, schedule.Invalid(schedule.ConstraintField, "cost must not be negative")
	}
	if in.DowntimeStart != nil && in.DowntimeEnd != nil {
		w, err := schedule.NewWindow(*in.DowntimeStart, *in.DowntimeEnd)
		if err != nil {
			return store.Target{}, err
		}
		in.DowntimeStart, in.DowntimeEnd = &w.Start, &w.End
	}

	switch in.RequestFor {
	case model.RequestForRoom:
		if in.RoomID <= 0 {
			return store.Target{}, schedule.Invalid(schedule.ConstraintTarget, "room is required for a room request")
		}
		in.AssetID = 0
		return store.RoomTarget(in.RoomID), nil
	case model.RequestForAsset:
		if in.AssetID <= 0 {
			return store.Target{}, schedule.Invalid(schedule.ConstraintTarget, "asset is required for an asset request")
		}
		in.RoomID = 0
		return store.AssetTarget(in.AssetID), nil
	default:
		return store.Target{}, schedule.Invalid(schedule.ConstraintTarget, "request_for must be room or asset")
	}
}

func (s *Service) CreateMaintenance(ctx context.Context, in MaintenanceInput) (*model.MaintenanceRequest, error) {
	if in.State == "" {
		in.State = model.MaintenanceDraft
	}
	target, err := in.Validate()
	if err != nil {
		return nil, err
	}

	m := &model.MaintenanceRequest{}
	var fx effect
	err = s.guarded(ctx, []string{target.Key()}, func(tx store.Store) error {
		if err := lockTarget(ctx, tx, target); err != nil {
			return err
		}
		fillMaintenance(m, in)
		if err := s.checkDowntimeWindow(ctx, tx, m, target); err != nil {
			return err
		}
		code, err := s.code(ctx, tx, in.Code, "maintenance", s.seq.Maintenance)
		if err != nil {
			return err
		}
		m.Code = code
		if err := tx.CreateMaintenance(ctx, m); err != nil {
			return err
		}
		fx, err = s.applyEffect(ctx, tx, target, "", m.State)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("maintenance request created", "id", m.ID, "code", m.Code, "target", target.Key(), "state", m.State)
	s.afterMaintenanceTransition(m, target, fx)
	return m, nil
}

func (s *Service) UpdateMaintenance(ctx context.Context, id int64, in MaintenanceInput) (*model.MaintenanceRequest, error) {
	target, err := in.Validate()
	if err != nil {
		return nil, err
	}
	current, err := s.store.GetMaintenance(ctx, id)
	if err != nil {
		return nil, err
	}
	prevTarget := targetOf(current)

	var m *model.MaintenanceRequest
	var fx effect
	err = s.guarded(ctx, []string{prevTarget.Key(), target.Key()}, func(tx store.Store) error {
		var err error
		if m, err = tx.GetMaintenance(ctx, id); err != nil {
			return err
		}
		if targetOf(m) != prevTarget {
			return fmt.Errorf("maintenance request %d retargeted concurrently, retry", id)
		}
		if err := lockTarget(ctx, tx, target); err != nil {
			return err
		}
		prev := m.State
		if in.State == "" {
			in.State = prev
		}
		if prev != in.State && !canMove(prev, in.State) {
			return schedule.Invalid(schedule.ConstraintState, "cannot move maintenance request from %s to %s", prev, in.State)
		}
		fillMaintenance(m, in)
		if m.State == model.MaintenanceDone && prev != m.State {
			now := s.now().UTC()
			m.CloseDate = &now
		}
		if in.Code != "" && in.Code != "New" {
			m.Code = in.Code
		}
		if err := s.checkDowntimeWindow(ctx, tx, m, target); err != nil {
			return err
		}
		if err := tx.SaveMaintenance(ctx, m); err != nil {
			return err
		}
		if prev != m.State {
			fx, err = s.applyEffect(ctx, tx, target, prev, m.State)
		}
		return err
	})
	if err != nil {
		return nil, err
	}

	s.afterMaintenanceTransition(m, target, fx)
	return m, nil
}

func (s *Service) SubmitMaintenance(ctx context.Context, id int64) (*model.MaintenanceRequest, error) {
	return s.transitionMaintenance(ctx, id, model.MaintenanceSubmitted)
}

func (s *Service) StartMaintenance(ctx context.Context, id int64) (*model.MaintenanceRequest, error) {
	return s.transitionMaintenance(ctx, id, model.MaintenanceInProgress)
}

func (s *Service) DoneMaintenance(ctx context.Context, id int64) (*model.MaintenanceRequest, error) {
	return s.transitionMaintenance(ctx, id, model.MaintenanceDone)
}

func (s *Service) CancelMaintenance(ctx context.Context, id int64) (*model.MaintenanceRequest, error) {
	return s.transitionMaintenance(ctx, id, model.MaintenanceCancelled)
}

func (s *Service) SetMaintenanceDraft(ctx context.Context, id int64) (*model.MaintenanceRequest, error) {
	return s.transitionMaintenance(ctx, id, model.MaintenanceDraft)
}

// allowedFrom lists the states each transition may start from.
var allowedFrom = map[model.MaintenanceState][]model.MaintenanceState{
	model.MaintenanceSubmitted:  {model.MaintenanceDraft},
	model.MaintenanceInProgress: {model.MaintenanceDraft, model.MaintenanceSubmitted},
	model.MaintenanceDone:       {model.MaintenanceDraft, model.MaintenanceSubmitted, model.MaintenanceInProgress},
	model.MaintenanceCancelled:  {model.MaintenanceDraft, model.MaintenanceSubmitted, model.MaintenanceInProgress},
	model.MaintenanceDraft:      {model.MaintenanceSubmitted, model.MaintenanceCancelled},
}

func canMove(from, to model.MaintenanceState) bool {
	for _, s := range allowedFrom[to] {
		if s == from {
			return true
		}
	}
	return false
}

func (s *Service) transitionMaintenance(ctx context.Context, id int64, to model.MaintenanceState) (*model.MaintenanceRequest, error) {
	current, err := s.store.GetMaintenance(ctx, id)
	if err != nil {
		return nil, err
	}
	target := targetOf(current)

	var m *model.MaintenanceRequest
	var prev model.MaintenanceState
	var fx effect
	err = s.guarded(ctx, []string{target.Key()}, func(tx store.Store) error {
		var err error
		if m, err = tx.GetMaintenance(ctx, id); err != nil {
			return err
		}
		prev = m.State
		if !canMove(prev, to) {
			return schedule.Invalid(schedule.ConstraintState, "cannot move maintenance request from %s to %s", prev, to)
		}
		if err := lockTarget(ctx, tx, target); err != nil {
			return err
		}

		m.State = to
		if to == model.MaintenanceDone {
			now := s.now().UTC()
			m.CloseDate = &now
		}
		if err := s.checkDowntimeWindow(ctx, tx, m, target); err != nil {
			return err
		}
		if err := tx.SaveMaintenance(ctx, m); err != nil {
			return err
		}
		fx, err = s.applyEffect(ctx, tx, target, prev, to)
		return err
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("maintenance state changed", "id", m.ID, "from", prev, "to", to)
	s.afterMaintenanceTransition(m, target, fx)
	return m, nil
}

// effect records what a transition did to the target's admin state.
type effect struct {
	started  bool
	closed   bool
	restored bool
}

// applyEffect pushes the admin-state side effect of moving a request from
// prev to to. Entering in_progress marks the target as under maintenance;
// reaching done or cancelled puts it back to available only if nothing else
// has changed its state in the meantime.
func (s *Service) applyEffect(ctx context.Context, tx store.Store, target store.Target, prev, to model.MaintenanceState) (effect, error) {
	var fx effect
	switch to {
	case model.MaintenanceInProgress:
		fx.started = prev != to
		var err error
		if target.Kind == model.RequestForRoom {
			err = tx.SetRoomState(ctx, target.ID, model.RoomMaintenance)
		} else {
			err = tx.SetAssetState(ctx, target.ID, model.AssetMaintenance)
		}
		if err != nil {
			return fx, err
		}
	case model.MaintenanceDone, model.MaintenanceCancelled:
		fx.closed = prev != to
		var ok bool
		var err error
		if target.Kind == model.RequestForRoom {
			ok, err = tx.CompareAndSetRoomState(ctx, target.ID, model.RoomMaintenance, model.RoomAvailable)
		} else {
			ok, err = tx.CompareAndSetAssetState(ctx, target.ID, model.AssetMaintenance, model.AssetAvailable)
		}
		if err != nil {
			s.log.Warn("failed to restore target state", "target", target.Key(), "error", err)
			return fx, nil
		}
		fx.restored = ok
	}
	return fx, nil
}

func (s *Service) afterMaintenanceTransition(m *model.MaintenanceRequest, target store.Target, fx effect) {
	data := events.MaintenanceEvent{
		RequestID:  m.ID,
		Code:       m.Code,
		RequestFor: string(target.Kind),
		TargetID:   target.ID,
		State:      string(m.State),
		Restored:   fx.restored,
	}
	if fx.started {
		s.publish(events.MaintenanceStarted, data)
	}
	if fx.closed {
		s.publish(events.MaintenanceClosed, data)
	}
	if fx.restored && target.Kind == model.RequestForRoom {
		s.notifyRoom(target.ID)
	}
}

// checkDowntimeWindow rejects an active request whose window intersects another
// active request on the same target or, for rooms, an active booking.
func (s *Service) checkDowntimeWindow(ctx context.Context, tx store.Store, m *model.MaintenanceRequest, target store.Target) error {
	if !m.State.Active() || !m.HasWindow() {
		return nil
	}
	w := schedule.Window{Start: *m.DowntimeStart, End: *m.DowntimeEnd}

	others, err := tx.OverlappingDowntime(ctx, target, w, m.ID)
	if err != nil {
		return err
	}
	if len(others) > 0 {
		o := others[0]
		return schedule.Conflict(schedule.ClassDowntime, o.ID,
			fmt.Sprintf("%s already has downtime %s from %s to %s", target.Kind, o.Code, fmtTime(*o.DowntimeStart), fmtTime(*o.DowntimeEnd)))
	}

	if target.Kind != model.RequestForRoom {
		return nil
	}
	bookings, err := tx.OverlappingBookings(ctx, target.ID, w, 0)
	if err != nil {
		return err
	}
	if len(bookings) > 0 {
		b := bookings[0]
		return schedule.Conflict(schedule.ClassBooking, b.ID,
			fmt.Sprintf("room is booked by %s from %s to %s", b.Code, fmtTime(b.StartAt), fmtTime(b.EndAt)))
	}
	return nil
}

func lockTarget(ctx context.Context, tx store.Store, t store.Target) error {
	var err error
	if t.Kind == model.RequestForRoom {
		_, err = tx.LockRoom(ctx, t.ID)
	} else {
		_, err = tx.LockAsset(ctx, t.ID)
	}
	return missing(err, schedule.ConstraintTarget, "%s %d does not exist", t.Kind, t.ID)
}

func targetOf(m *model.MaintenanceRequest) store.Target {
	if m.RequestFor == model.RequestForRoom && m.RoomID != nil {
		return store.RoomTarget(*m.RoomID)
	}
	if m.AssetID != nil {
		return store.AssetTarget(*m.AssetID)
	}
	return store.Target{Kind: m.RequestFor}
}

func fillMaintenance(m *model.MaintenanceRequest, in MaintenanceInput) {
	m.Title = in.Title
	m.Description = in.Description
	m.CompanyID = in.CompanyID
	m.RequestFor = in.RequestFor
	m.RoomID, m.AssetID = nil, nil
	if in.RequestFor == model.RequestForRoom {
		id := in.RoomID
		m.RoomID = &id
	} else {
		id := in.AssetID
		m.AssetID = &id
	}
	m.CategoryID = in.CategoryID
	m.TeamID = in.TeamID
	m.RequestedByID = in.RequestedByID
	m.Priority = in.Priority
	m.State = in.State
	m.DowntimeStart = in.DowntimeStart
	m.DowntimeEnd = in.DowntimeEnd
	m.ScheduledDate = in.ScheduledDate
	m.Cost = in.Cost
}
