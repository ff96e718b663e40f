package store

import (
	"context"
	"database/sql/driver"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"meeting-resource-backend/internal/dbtest"
	"meeting-resource-backend/internal/model"
	"meeting-resource-backend/internal/schedule"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormStore_CompareAndSetRoomState(t *testing.T) {
	testCases := []struct {
		name     string
		affected int64
		expected bool
	}{
		{name: "Room still in maintenance, should restore", affected: 1, expected: true},
		{name: "Room state changed meanwhile, should skip", affected: 0, expected: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			store := NewGormStore(gormDB)

			mock.ExpectBegin()
			mock.ExpectExec(regexp.QuoteMeta(`UPDATE "rooms" SET "state"=$1,"updated_at"=$2 WHERE id = $3 AND state = $4`)).
				WithArgs(model.RoomAvailable, Any{}, 7, model.RoomMaintenance).
				WillReturnResult(sqlmock.NewResult(0, tc.affected))
			mock.ExpectCommit()

			changed, err := store.CompareAndSetRoomState(context.Background(), 7, model.RoomMaintenance, model.RoomAvailable)
			assert.NoError(t, err)
			assert.Equal(t, tc.expected, changed)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_DeleteRoomReferenced(t *testing.T) {
	gormDB, mock := newTestDB(t)
	store := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT \* FROM "rooms" WHERE "rooms"."id" = \$1 .*FOR UPDATE`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "name", "state", "active"}).
			AddRow(3, "R-3", "Orchid", "available", true))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "bookings" WHERE room_id = $1`)).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "maintenance_requests" WHERE room_id = $1`)).
		WithArgs(3).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectRollback()

	err := store.DeleteRoom(context.Background(), 3)
	assert.ErrorIs(t, err, ErrConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}

func day(hhmm string) time.Time {
	t, err := time.Parse("2006-01-02 15:04", "2026-03-02 "+hhmm)
	if err != nil {
		panic(err)
	}
	return t
}

type fixture struct {
	store Store
	host  model.Employee
	room  model.Room
	asset model.Asset
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	s := NewGormStore(dbtest.Open(t))

	f := &fixture{store: s}
	f.host = model.Employee{Name: "Linh", Active: true}
	require.NoError(t, s.CreateEmployee(ctx, &f.host))

	tv := model.EquipmentType{Code: "TV", Name: "Television"}
	require.NoError(t, s.CreateEquipmentType(ctx, &tv))
	cat := model.AssetCategory{Name: "AV", DepreciationMethod: model.DepreciationNone, PeriodUnit: model.PeriodYear, PeriodCount: 3}
	require.NoError(t, s.CreateAssetCategory(ctx, &cat))

	f.asset = model.Asset{Code: "AST00001", Name: "Wall TV", CategoryID: cat.ID, EquipmentTypeID: &tv.ID, State: model.AssetAvailable, Active: true}
	require.NoError(t, s.CreateAsset(ctx, &f.asset))

	f.room = model.Room{Code: "R-1", Name: "Lotus", Location: "Floor 3", Capacity: 10, State: model.RoomAvailable, Active: true}
	require.NoError(t, s.CreateRoom(ctx, &f.room))
	require.NoError(t, s.ReplaceRoomAssets(ctx, f.room.ID, []int64{f.asset.ID}))
	return f
}

func (f *fixture) book(t *testing.T, code, from, to string, state model.BookingState) model.Booking {
	t.Helper()
	b := model.Booking{
		Code:         code,
		Title:        "Sync",
		RoomID:       f.room.ID,
		HostID:       f.host.ID,
		StartAt:      day(from),
		EndAt:        day(to),
		State:        state,
		Participants: []model.Employee{f.host},
	}
	require.NoError(t, f.store.CreateBooking(context.Background(), &b))
	return b
}

func TestGormStore_OverlappingBookings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	existing := f.book(t, "MB00001", "09:00", "10:00", model.BookingConfirmed)
	f.book(t, "MB00002", "09:15", "09:45", model.BookingCancelled)

	testCases := []struct {
		name      string
		from, to  string
		excludeID int64
		expected  []string
	}{
		{name: "Intersecting window", from: "09:30", to: "10:30", expected: []string{"MB00001"}},
		{name: "Touching end is free", from: "10:00", to: "11:00", expected: nil},
		{name: "Touching start is free", from: "08:00", to: "09:00", expected: nil},
		{name: "Own record excluded", from: "09:30", to: "10:30", excludeID: existing.ID, expected: nil},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w, err := schedule.NewWindow(day(tc.from), day(tc.to))
			require.NoError(t, err)

			found, err := f.store.OverlappingBookings(ctx, f.room.ID, w, tc.excludeID)
			require.NoError(t, err)

			var codes []string
			for _, b := range found {
				codes = append(codes, b.Code)
			}
			assert.Equal(t, tc.expected, codes)
		})
	}
}

func TestGormStore_BookingLinks(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.book(t, "MB00001", "09:00", "10:00", model.BookingDraft)
	b.Equipment = []model.Asset{f.asset}
	require.NoError(t, f.store.SaveBooking(ctx, &b))

	got, err := f.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, got.Participants, 1)
	assert.Len(t, got.Equipment, 1)

	got.Equipment = nil
	require.NoError(t, f.store.SaveBooking(ctx, got))
	got, err = f.store.GetBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Equipment)

	_, err = f.store.GetBooking(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_OverlappingDowntime(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	start, end := day("08:00"), day("12:00")
	roomID, assetID := f.room.ID, f.asset.ID
	requests := []model.MaintenanceRequest{
		{Code: "MR00001", Title: "Asset fix", RequestFor: model.RequestForAsset, AssetID: &assetID, State: model.MaintenanceInProgress, DowntimeStart: &start, DowntimeEnd: &end},
		{Code: "MR00002", Title: "No window", RequestFor: model.RequestForRoom, RoomID: &roomID, State: model.MaintenanceSubmitted},
		{Code: "MR00003", Title: "Draft", RequestFor: model.RequestForRoom, RoomID: &roomID, State: model.MaintenanceDraft, DowntimeStart: &start, DowntimeEnd: &end},
	}
	for i := range requests {
		require.NoError(t, f.store.CreateMaintenance(ctx, &requests[i]))
	}

	w, err := schedule.NewWindow(day("09:00"), day("10:00"))
	require.NoError(t, err)

	onAsset, err := f.store.OverlappingDowntime(ctx, AssetTarget(assetID), w, 0)
	require.NoError(t, err)
	require.Len(t, onAsset, 1)
	assert.Equal(t, "MR00001", onAsset[0].Code)

	onRoom, err := f.store.OverlappingDowntime(ctx, RoomTarget(roomID), w, 0)
	require.NoError(t, err)
	assert.Empty(t, onRoom, "draft and window-less requests never conflict")

	n, err := f.store.CountMaintenance(ctx, RoomTarget(roomID))
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestGormStore_BusyRoomIDsAndWindows(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := model.Room{Code: "R-2", Name: "Daisy", Capacity: 4, State: model.RoomAvailable, Active: true}
	require.NoError(t, f.store.CreateRoom(ctx, &other))

	f.book(t, "MB00001", "09:00", "10:00", model.BookingConfirmed)
	start, end := day("13:00"), day("15:00")
	otherID := other.ID
	mr := model.MaintenanceRequest{Code: "MR00001", Title: "Paint", RequestFor: model.RequestForRoom, RoomID: &otherID, State: model.MaintenanceSubmitted, DowntimeStart: &start, DowntimeEnd: &end}
	require.NoError(t, f.store.CreateMaintenance(ctx, &mr))

	morning, _ := schedule.NewWindow(day("09:30"), day("10:30"))
	busy, err := f.store.BusyRoomIDs(ctx, morning)
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{f.room.ID: true}, busy)

	afternoon, _ := schedule.NewWindow(day("14:00"), day("14:30"))
	busy, err = f.store.BusyRoomIDs(ctx, afternoon)
	require.NoError(t, err)
	assert.Equal(t, map[int64]bool{other.ID: true}, busy)

	windows, err := f.store.RoomWindowsAt(ctx, []int64{f.room.ID, other.ID}, day("09:00"))
	require.NoError(t, err)
	assert.Len(t, windows.Bookings[f.room.ID], 1)
	assert.Empty(t, windows.Downtime[other.ID])

	windows, err = f.store.RoomWindowsAt(ctx, []int64{f.room.ID, other.ID}, day("10:00"))
	require.NoError(t, err)
	assert.Empty(t, windows.Bookings[f.room.ID], "end instant is not covered")
}

func TestGormStore_RoomEquipmentTypes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	types, err := f.store.RoomEquipmentTypes(ctx, []int64{f.room.ID})
	require.NoError(t, err)
	assert.Equal(t, []string{"TV"}, types[f.room.ID])

	f.asset.Active = false
	require.NoError(t, f.store.SaveAsset(ctx, &f.asset))
	types, err = f.store.RoomEquipmentTypes(ctx, []int64{f.room.ID})
	require.NoError(t, err)
	assert.Empty(t, types[f.room.ID])
}

func TestGormStore_DeleteAssetReferenced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.book(t, "MB00001", "09:00", "10:00", model.BookingDraft)
	b.Equipment = []model.Asset{f.asset}
	require.NoError(t, f.store.SaveBooking(ctx, &b))

	assert.ErrorIs(t, f.store.DeleteAsset(ctx, f.asset.ID), ErrConflict)
	assert.ErrorIs(t, f.store.DeleteRoom(ctx, f.room.ID), ErrConflict)
}

func TestGormStore_NextCode(t *testing.T) {
	s := NewGormStore(dbtest.Open(t))
	ctx := context.Background()

	first, err := s.NextCode(ctx, "booking", "MB")
	require.NoError(t, err)
	second, err := s.NextCode(ctx, "booking", "MB")
	require.NoError(t, err)
	other, err := s.NextCode(ctx, "asset", "AST")
	require.NoError(t, err)

	assert.Equal(t, "MB00001", first)
	assert.Equal(t, "MB00002", second)
	assert.Equal(t, "AST00001", other)
}

func TestGormStore_MarkOverdueAssets(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	due := day("00:00").AddDate(0, 0, -1)
	f.asset.NextMaintenanceDate = &due
	require.NoError(t, f.store.SaveAsset(ctx, &f.asset))

	ids, err := f.store.MarkOverdueAssets(ctx, day("00:00"))
	require.NoError(t, err)
	assert.Equal(t, []int64{f.asset.ID}, ids)

	got, err := f.store.GetAsset(ctx, f.asset.ID)
	require.NoError(t, err)
	assert.Equal(t, model.AssetMaintenance, got.State)

	ids, err = f.store.MarkOverdueAssets(ctx, day("00:00"))
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestGormStore_Subscriptions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub := model.PushSubscription{Endpoint: "https://push.example/abc", P256DH: "key", Auth: "auth"}
	require.NoError(t, f.store.PutSubscription(ctx, &sub, []int64{f.room.ID}))

	subs, err := f.store.SubscriptionsForRoom(ctx, f.room.ID)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, sub.Endpoint, subs[0].Endpoint)

	require.NoError(t, f.store.DeleteSubscription(ctx, sub.Endpoint))
	subs, err = f.store.SubscriptionsForRoom(ctx, f.room.ID)
	require.NoError(t, err)
	assert.Empty(t, subs)
}
