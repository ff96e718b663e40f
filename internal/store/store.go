package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"meeting-resource-backend/internal/model"
	"meeting-resource-backend/internal/schedule"
)

var (
	// ErrNotFound is returned when a referenced record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a delete is refused because ledger entries
	// still reference the record, or when a unique code is taken.
	ErrConflict = errors.New("conflict")
)

// Store defines the interface for all database operations.
type Store interface {
	DB() *gorm.DB
	// InTx runs fn against a Store bound to a single transaction. Calls on
	// an already transactional store join the running transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error

	// Rooms
	CreateRoom(ctx context.Context, room *model.Room) error
	GetRoom(ctx context.Context, id int64) (*model.Room, error)
	LockRoom(ctx context.Context, id int64) (*model.Room, error)
	ListRooms(ctx context.Context, f RoomFilter) ([]model.Room, error)
	SaveRoom(ctx context.Context, room *model.Room) error
	SetRoomState(ctx context.Context, id int64, state model.RoomState) error
	CompareAndSetRoomState(ctx context.Context, id int64, from, to model.RoomState) (bool, error)
	ReplaceRoomAssets(ctx context.Context, roomID int64, assetIDs []int64) error
	RoomAssets(ctx context.Context, roomID int64) ([]model.Asset, error)
	RoomEquipmentTypes(ctx context.Context, roomIDs []int64) (map[int64][]string, error)
	DeleteRoom(ctx context.Context, id int64) error

	// Assets
	CreateAsset(ctx context.Context, asset *model.Asset) error
	GetAsset(ctx context.Context, id int64) (*model.Asset, error)
	LockAsset(ctx context.Context, id int64) (*model.Asset, error)
	ListAssets(ctx context.Context, f AssetFilter) ([]model.Asset, error)
	SaveAsset(ctx context.Context, asset *model.Asset) error
	SaveAssetFigures(ctx context.Context, asset *model.Asset) error
	SetAssetState(ctx context.Context, id int64, state model.AssetState) error
	CompareAndSetAssetState(ctx context.Context, id int64, from, to model.AssetState) (bool, error)
	MarkOverdueAssets(ctx context.Context, today time.Time) ([]int64, error)
	DeleteAsset(ctx context.Context, id int64) error

	// Catalog
	CreateEquipmentType(ctx context.Context, et *model.EquipmentType) error
	ListEquipmentTypes(ctx context.Context) ([]model.EquipmentType, error)
	EquipmentTypesByCodes(ctx context.Context, codes []string) ([]model.EquipmentType, error)
	CreateAssetCategory(ctx context.Context, c *model.AssetCategory) error
	GetAssetCategory(ctx context.Context, id int64) (*model.AssetCategory, error)
	ListAssetCategories(ctx context.Context) ([]model.AssetCategory, error)
	CreateBranch(ctx context.Context, b *model.Branch) error
	ListBranches(ctx context.Context, companyID int64) ([]model.Branch, error)
	CreateEmployee(ctx context.Context, e *model.Employee) error
	EmployeesByIDs(ctx context.Context, ids []int64) ([]model.Employee, error)
	CreateDepartment(ctx context.Context, d *model.Department) error
	GetDepartment(ctx context.Context, id int64) (*model.Department, error)
	CreateMaintenanceCategory(ctx context.Context, c *model.MaintenanceCategory) error
	CreateMaintenanceTeam(ctx context.Context, t *model.MaintenanceTeam) error
	AssetsByIDs(ctx context.Context, ids []int64) ([]model.Asset, error)

	// Bookings
	CreateBooking(ctx context.Context, b *model.Booking) error
	GetBooking(ctx context.Context, id int64) (*model.Booking, error)
	SaveBooking(ctx context.Context, b *model.Booking) error
	ListBookings(ctx context.Context, f BookingFilter) ([]model.Booking, error)
	OverlappingBookings(ctx context.Context, roomID int64, w schedule.Window, excludeID int64) ([]model.Booking, error)
	CountBookings(ctx context.Context, roomID int64) (int64, error)

	// Maintenance requests
	CreateMaintenance(ctx context.Context, m *model.MaintenanceRequest) error
	GetMaintenance(ctx context.Context, id int64) (*model.MaintenanceRequest, error)
	SaveMaintenance(ctx context.Context, m *model.MaintenanceRequest) error
	ListMaintenance(ctx context.Context, f MaintenanceFilter) ([]model.MaintenanceRequest, error)
	OverlappingDowntime(ctx context.Context, target Target, w schedule.Window, excludeID int64) ([]model.MaintenanceRequest, error)
	CountMaintenance(ctx context.Context, target Target) (int64, error)

	// Availability
	BusyRoomIDs(ctx context.Context, w schedule.Window) (map[int64]bool, error)
	RoomWindowsAt(ctx context.Context, roomIDs []int64, at time.Time) (RoomWindows, error)

	NextCode(ctx context.Context, sequence, prefix string) (string, error)

	// Push subscriptions
	PutSubscription(ctx context.Context, sub *model.PushSubscription, roomIDs []int64) error
	GetSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeleteSubscription(ctx context.Context, endpoint string) error
	SubscriptionsForRoom(ctx context.Context, roomID int64) ([]model.PushSubscription, error)

	RecordAssistantCall(ctx context.Context, call *model.AssistantCall) error
}

// Target identifies the resource a maintenance request points at.
type Target struct {
	Kind model.RequestFor
	ID   int64
}

// Key returns the lock key of the target, e.g. "room:3".
func (t Target) Key() string {
	return fmt.Sprintf("%s:%d", t.Kind, t.ID)
}

// RoomTarget and AssetTarget are shorthands for building targets.
func RoomTarget(id int64) Target  { return Target{Kind: model.RequestForRoom, ID: id} }
func AssetTarget(id int64) Target { return Target{Kind: model.RequestForAsset, ID: id} }

// RoomWindows holds the active windows covering an instant, per room.
type RoomWindows struct {
	Downtime map[int64][]schedule.Window
	Bookings map[int64][]schedule.Window
}

// RoomFilter selects rooms. Zero values disable a condition; ActiveOnly must be
// set explicitly to hide archived rooms.
type RoomFilter struct {
	IDs         []int64
	Code        string
	ActiveOnly  bool
	State       model.RoomState
	MinCapacity int
	Keyword     string
	CompanyID   int64
	BranchID    int64
}

// AssetFilter selects assets.
type AssetFilter struct {
	IDs             []int64
	Code            string
	ActiveOnly      bool
	State           model.AssetState
	CategoryID      int64
	EquipmentTypeID int64
	RoomID          int64
}

// BookingFilter selects bookings. From/To select bookings overlapping the window.
type BookingFilter struct {
	RoomID int64
	HostID int64
	States []model.BookingState
	From   *time.Time
	To     *time.Time
	Limit  int
}

// MaintenanceFilter selects maintenance requests.
type MaintenanceFilter struct {
	RoomID  int64
	AssetID int64
	States  []model.MaintenanceState
	Limit   int
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db   *gorm.DB
	inTx bool
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

func (s *gormStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx, inTx: true})
	})
}

// atomic runs fn in a transaction, joining the current one if there is one.
func (s *gormStore) atomic(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if s.inTx {
		return fn(s.db.WithContext(ctx))
	}
	return s.db.WithContext(ctx).Transaction(fn)
}

func notFound(err error, what string, id any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s %v: %w", what, id, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s %v: %w", what, id, err)
}

func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}
