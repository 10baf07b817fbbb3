package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"gopkg.in/guregu/null.v4"

	"parking_system_go/internal/domain"
	"parking_system_go/internal/repository"
)

// --- Fakes in-memory dùng chung cho các test service ---

type fakeStore struct {
	mu       sync.Mutex
	lots     map[int]*domain.ParkingLot
	sessions map[int]*domain.ParkingSession
	vehicles map[string]*domain.Vehicle
	users    map[int]*domain.User
	nextID   int

	failRefresh bool
	failStats   bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		lots:     make(map[int]*domain.ParkingLot),
		sessions: make(map[int]*domain.ParkingSession),
		vehicles: make(map[string]*domain.Vehicle),
		users:    make(map[int]*domain.User),
		nextID:   1,
	}
}

type fakeLotRepo struct{ store *fakeStore }

func (r *fakeLotRepo) Create(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	lot.ID = r.store.nextID
	r.store.nextID++
	lot.AvailableSpaces = lot.TotalSpaces
	lot.IsActive = true
	r.store.lots[lot.ID] = lot
	return lot, nil
}

func (r *fakeLotRepo) FindByID(ctx context.Context, id int) (*domain.ParkingLot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	lot, ok := r.store.lots[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *lot
	return &copied, nil
}

func (r *fakeLotRepo) FindAll(ctx context.Context) ([]domain.ParkingLot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var lots []domain.ParkingLot
	for _, lot := range r.store.lots {
		lots = append(lots, *lot)
	}
	return lots, nil
}

func (r *fakeLotRepo) Update(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.lots[lot.ID]; !ok {
		return nil, repository.ErrNotFound
	}
	copied := *lot
	r.store.lots[lot.ID] = &copied
	return lot, nil
}

func (r *fakeLotRepo) RefreshAvailableSpaces(ctx context.Context, lotID int) (int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.failRefresh {
		return 0, errors.New("lỗi giả lập refresh")
	}
	lot, ok := r.store.lots[lotID]
	if !ok {
		return 0, repository.ErrNotFound
	}
	active := 0
	for _, s := range r.store.sessions {
		if s.LotID == lotID && s.Status == domain.SessionActive {
			active++
		}
	}
	lot.AvailableSpaces = lot.TotalSpaces - active
	if lot.AvailableSpaces < 0 {
		lot.AvailableSpaces = 0
	}
	return lot.AvailableSpaces, nil
}

func (r *fakeLotRepo) UpdateBarrierStatus(ctx context.Context, lotID int, barrierID string, status domain.BarrierStatus) (*domain.ParkingLot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	lot, ok := r.store.lots[lotID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for i := range lot.Barriers {
		if lot.Barriers[i].ID == barrierID {
			lot.Barriers[i].Status = status
			copied := *lot
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeLotRepo) UpdateCameraStatus(ctx context.Context, lotID int, cameraID string, isActive bool, lastMaintenance *string) (*domain.ParkingLot, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	lot, ok := r.store.lots[lotID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	for i := range lot.Cameras {
		if lot.Cameras[i].ID == cameraID {
			lot.Cameras[i].IsActive = isActive
			copied := *lot
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakeSessionRepo struct{ store *fakeStore }

func (r *fakeSessionRepo) Create(ctx context.Context, session *domain.ParkingSession) (*domain.ParkingSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, s := range r.store.sessions {
		if s.DetectedLicensePlate == session.DetectedLicensePlate && s.Status == domain.SessionActive {
			return nil, repository.ErrDuplicateActiveSession
		}
	}
	session.ID = r.store.nextID
	r.store.nextID++
	session.CreatedAt = time.Now().UTC()
	session.UpdatedAt = session.CreatedAt
	copied := *session
	r.store.sessions[session.ID] = &copied
	return session, nil
}

func (r *fakeSessionRepo) FindBySessionID(ctx context.Context, sessionID string) (*domain.ParkingSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, s := range r.store.sessions {
		if s.SessionID == sessionID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeSessionRepo) FindActiveByPlate(ctx context.Context, licensePlate string) (*domain.ParkingSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, s := range r.store.sessions {
		if s.DetectedLicensePlate == licensePlate && s.Status == domain.SessionActive {
			copied := *s
			return &copied, nil
		}
	}
	return nil, repository.ErrNoActiveSession
}

func (r *fakeSessionRepo) Close(ctx context.Context, session *domain.ParkingSession) (*domain.ParkingSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	stored, ok := r.store.sessions[session.ID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if stored.Status != domain.SessionActive {
		return nil, repository.ErrSessionAlreadyClosed
	}
	session.Status = domain.SessionCompleted
	session.UpdatedAt = time.Now().UTC()
	copied := *session
	r.store.sessions[session.ID] = &copied
	return session, nil
}

func (r *fakeSessionRepo) ListActive(ctx context.Context, lotID int) ([]domain.ParkingSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var sessions []domain.ParkingSession
	for _, s := range r.store.sessions {
		if s.Status == domain.SessionActive && (lotID == 0 || s.LotID == lotID) {
			sessions = append(sessions, *s)
		}
	}
	return sessions, nil
}

func (r *fakeSessionRepo) Find(ctx context.Context, filter domain.ParkingSessionFilterDTO) ([]domain.ParkingSession, int, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var sessions []domain.ParkingSession
	for _, s := range r.store.sessions {
		if filter.LotID != nil && s.LotID != *filter.LotID {
			continue
		}
		if filter.Status != nil && string(s.Status) != *filter.Status {
			continue
		}
		sessions = append(sessions, *s)
	}
	return sessions, len(sessions), nil
}

type fakeVehicleRepo struct{ store *fakeStore }

func (r *fakeVehicleRepo) FindByPlate(ctx context.Context, licensePlate string) (*domain.Vehicle, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	vehicle, ok := r.store.vehicles[licensePlate]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *vehicle
	return &copied, nil
}

func (r *fakeVehicleRepo) UpdateUsageStats(ctx context.Context, vehicleID int, durationMinutes int64, fee float64, lastSessionID int) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.failStats {
		return errors.New("lỗi giả lập cập nhật thống kê")
	}
	for _, v := range r.store.vehicles {
		if v.ID == vehicleID {
			v.TotalParkingTime += durationMinutes
			v.TotalFees += fee
			v.LastSessionID = null.IntFrom(int64(lastSessionID))
			return nil
		}
	}
	return repository.ErrNotFound
}

type fakeUserRepo struct{ store *fakeStore }

func (r *fakeUserRepo) FindByUsername(ctx context.Context, username string) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, u := range r.store.users {
		if u.Username == username {
			copied := *u
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id int) (*domain.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	user, ok := r.store.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copied := *user
	return &copied, nil
}

type broadcastRecord struct {
	LotID int
	Event string
	Data  interface{}
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []broadcastRecord
}

func (b *fakeBroadcaster) Broadcast(event string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastRecord{Event: event, Data: data})
}

func (b *fakeBroadcaster) BroadcastToLot(lotID int, event string, data interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, broadcastRecord{LotID: lotID, Event: event, Data: data})
}

func (b *fakeBroadcaster) has(event string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.events {
		if e.Event == event {
			return true
		}
	}
	return false
}

type barrierCommand struct {
	LotID     int
	BarrierID string
	Action    string
}

type fakeActuator struct {
	mu       sync.Mutex
	commands []barrierCommand
	fail     bool
}

func (a *fakeActuator) SendBarrierControlCommand(ctx context.Context, lotID int, barrierID string, action string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.fail {
		return errors.New("lỗi giả lập gửi lệnh MQTT")
	}
	a.commands = append(a.commands, barrierCommand{LotID: lotID, BarrierID: barrierID, Action: action})
	return nil
}

// --- Fixture ---

type parkingFixture struct {
	store       *fakeStore
	service     *ParkingService
	sessionRepo *fakeSessionRepo
	broadcaster *fakeBroadcaster
	actuator    *fakeActuator
}

func newParkingFixture() *parkingFixture {
	store := newFakeStore()
	store.lots[1] = &domain.ParkingLot{
		ID:              1,
		Name:            "Bãi xe Trung Tâm",
		TotalSpaces:     100,
		AvailableSpaces: 100,
		HourlyRate:      10000,
		DailyRate:       200000,
		IsActive:        true,
		Barriers: []domain.BarrierInfo{
			{ID: "barrier-1", Name: "Cổng vào 1", Type: "entry", IsActive: true, Status: domain.BarrierClosed},
			{ID: "barrier-2", Name: "Cổng ra 1", Type: "exit", IsActive: true, Status: domain.BarrierClosed},
		},
		Cameras: []domain.CameraInfo{
			{ID: "cam-1", Name: "Camera cổng vào", Location: "entry", IsActive: true},
		},
	}
	store.nextID = 2

	broadcaster := &fakeBroadcaster{}
	actuator := &fakeActuator{}
	sessionRepo := &fakeSessionRepo{store: store}
	svc := NewParkingService(
		&fakeLotRepo{store: store},
		sessionRepo,
		&fakeVehicleRepo{store: store},
		&fakeUserRepo{store: store},
		broadcaster,
		actuator,
	)
	return &parkingFixture{store: store, service: svc, sessionRepo: sessionRepo, broadcaster: broadcaster, actuator: actuator}
}

func (f *parkingFixture) registerVehicle(plate string, vehicleType string, ownerID int) {
	f.store.mu.Lock()
	defer f.store.mu.Unlock()
	f.store.vehicles[plate] = &domain.Vehicle{
		ID:           f.store.nextID,
		LicensePlate: plate,
		VehicleType:  vehicleType,
		OwnerID:      ownerID,
		IsActive:     true,
	}
	f.store.nextID++
}

func entryDTO(plate string) domain.VehicleEntryDTO {
	return domain.VehicleEntryDTO{
		LicensePlate: plate,
		ParkingLotID: 1,
		EntryImage:   "entry.jpg",
		BarrierID:    "barrier-1",
	}
}

func exitDTO(plate string) domain.VehicleExitDTO {
	return domain.VehicleExitDTO{
		LicensePlate: plate,
		ParkingLotID: 1,
		ExitImage:    "exit.jpg",
		BarrierID:    "barrier-2",
	}
}

// --- Tests ---

func TestVehicleEntryRegisteredVehicle(t *testing.T) {
	f := newParkingFixture()
	f.registerVehicle("51A12345", domain.VehicleTypeCar, 10)

	session, shouldOpen, err := f.service.VehicleEntry(context.Background(), entryDTO("51a-123.45"))
	if err != nil {
		t.Fatalf("VehicleEntry: %v", err)
	}
	if !shouldOpen {
		t.Error("shouldOpen = false, muốn true cho xe đã đăng ký")
	}
	if !session.IsRegisteredVehicle {
		t.Error("IsRegisteredVehicle = false, muốn true")
	}
	if session.DetectedLicensePlate != "51A12345" {
		t.Errorf("DetectedLicensePlate = %s, muốn 51A12345 (đã chuẩn hoá)", session.DetectedLicensePlate)
	}
	if !strings.HasPrefix(session.SessionID, "PS") {
		t.Errorf("SessionID = %s, muốn tiền tố PS", session.SessionID)
	}
	if session.TempTicketNumber.Valid {
		t.Error("xe đăng ký không được cấp vé tạm")
	}
	if len(f.actuator.commands) != 1 || f.actuator.commands[0].Action != "open" {
		t.Errorf("actuator commands = %v, muốn một lệnh open", f.actuator.commands)
	}
	if !f.broadcaster.has(domain.EventVehicleEntered) {
		t.Error("thiếu sự kiện vehicle-entered")
	}
}

func TestVehicleEntryUnregisteredVehicle(t *testing.T) {
	f := newParkingFixture()

	session, shouldOpen, err := f.service.VehicleEntry(context.Background(), entryDTO("30E99999"))
	if err != nil {
		t.Fatalf("VehicleEntry: %v", err)
	}
	if shouldOpen {
		t.Error("shouldOpen = true, muốn false cho khách vãng lai")
	}
	if session.IsRegisteredVehicle {
		t.Error("IsRegisteredVehicle = true, muốn false")
	}
	if !session.TempTicketNumber.Valid || !strings.HasPrefix(session.TempTicketNumber.String, "TEMP") {
		t.Errorf("TempTicketNumber = %v, muốn tiền tố TEMP", session.TempTicketNumber)
	}
	if len(f.actuator.commands) != 0 {
		t.Errorf("actuator commands = %v, muốn rỗng khi không mở rào tự động", f.actuator.commands)
	}
}

func TestVehicleEntryDuplicateActiveSession(t *testing.T) {
	f := newParkingFixture()

	if _, _, err := f.service.VehicleEntry(context.Background(), entryDTO("51A12345")); err != nil {
		t.Fatalf("lần vào đầu tiên: %v", err)
	}
	_, _, err := f.service.VehicleEntry(context.Background(), entryDTO("51A12345"))
	if !errors.Is(err, repository.ErrDuplicateActiveSession) {
		t.Errorf("err = %v, muốn ErrDuplicateActiveSession", err)
	}
}

func TestVehicleEntryLotFull(t *testing.T) {
	f := newParkingFixture()
	f.store.lots[1].AvailableSpaces = 0

	_, _, err := f.service.VehicleEntry(context.Background(), entryDTO("51A12345"))
	if !errors.Is(err, ErrLotFull) {
		t.Errorf("err = %v, muốn ErrLotFull", err)
	}
}

func TestVehicleEntryLotNotFound(t *testing.T) {
	f := newParkingFixture()

	dto := entryDTO("51A12345")
	dto.ParkingLotID = 99
	_, _, err := f.service.VehicleEntry(context.Background(), dto)
	if !errors.Is(err, ErrLotNotFound) {
		t.Errorf("err = %v, muốn ErrLotNotFound", err)
	}
}

func TestVehicleEntryLotInactive(t *testing.T) {
	f := newParkingFixture()
	f.store.lots[1].IsActive = false

	_, _, err := f.service.VehicleEntry(context.Background(), entryDTO("51A12345"))
	if !errors.Is(err, ErrLotInactive) {
		t.Errorf("err = %v, muốn ErrLotInactive", err)
	}
}

func TestVehicleEntryConcurrentSamePlate(t *testing.T) {
	f := newParkingFixture()

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	success, duplicate := 0, 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.service.VehicleEntry(context.Background(), entryDTO("51A12345"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				success++
			case errors.Is(err, repository.ErrDuplicateActiveSession):
				duplicate++
			default:
				t.Errorf("lỗi không mong muốn: %v", err)
			}
		}()
	}
	wg.Wait()

	if success != 1 || duplicate != workers-1 {
		t.Errorf("success=%d duplicate=%d, muốn 1/%d", success, duplicate, workers-1)
	}
}

func TestVehicleExitComputesFee(t *testing.T) {
	f := newParkingFixture()
	f.registerVehicle("51A12345", domain.VehicleTypeCar, 10)
	f.store.users[10] = &domain.User{ID: 10, Username: "chuxe", Role: "user"}

	session, _, err := f.service.VehicleEntry(context.Background(), entryDTO("51A12345"))
	if err != nil {
		t.Fatalf("VehicleEntry: %v", err)
	}
	// Lùi entry_time về 90 phút trước (cộng 1 giây để ceil ra đúng 90).
	f.store.mu.Lock()
	f.store.sessions[session.ID].EntryTime = time.Now().UTC().Add(-90*time.Minute + time.Second)
	f.store.mu.Unlock()

	closed, breakdown, err := f.service.VehicleExit(context.Background(), exitDTO("51A12345"))
	if err != nil {
		t.Fatalf("VehicleExit: %v", err)
	}
	if closed.Status != domain.SessionCompleted {
		t.Errorf("Status = %s, muốn completed", closed.Status)
	}
	if breakdown.TotalAmount != 20000 {
		t.Errorf("TotalAmount = %.0f, muốn 20000 (2 giờ × 10000)", breakdown.TotalAmount)
	}
	if !closed.DurationMinutes.Valid || closed.DurationMinutes.Int64 != 90 {
		t.Errorf("DurationMinutes = %v, muốn 90", closed.DurationMinutes)
	}
	if !f.broadcaster.has(domain.EventVehicleExited) {
		t.Error("thiếu sự kiện vehicle-exited")
	}

	// Thống kê xe được cộng dồn
	f.store.mu.Lock()
	vehicle := f.store.vehicles["51A12345"]
	f.store.mu.Unlock()
	if vehicle.TotalFees != 20000 || vehicle.TotalParkingTime != 90 {
		t.Errorf("thống kê xe: fees=%.0f time=%d, muốn 20000/90", vehicle.TotalFees, vehicle.TotalParkingTime)
	}
}

func TestVehicleExitNoActiveSession(t *testing.T) {
	f := newParkingFixture()

	_, _, err := f.service.VehicleExit(context.Background(), exitDTO("51A12345"))
	if !errors.Is(err, repository.ErrNoActiveSession) {
		t.Errorf("err = %v, muốn ErrNoActiveSession", err)
	}
}

// raceClosedSessionRepo mô phỏng request exit thứ hai thua race: lúc
// đọc thì phiên còn active, lúc Close thì đã bị request kia đóng.
type raceClosedSessionRepo struct{ *fakeSessionRepo }

func (r *raceClosedSessionRepo) FindActiveByPlate(ctx context.Context, plate string) (*domain.ParkingSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, s := range r.store.sessions {
		if s.DetectedLicensePlate == plate {
			copied := *s
			copied.Status = domain.SessionActive
			return &copied, nil
		}
	}
	return nil, repository.ErrNoActiveSession
}

func (r *raceClosedSessionRepo) Close(ctx context.Context, session *domain.ParkingSession) (*domain.ParkingSession, error) {
	return nil, repository.ErrSessionAlreadyClosed
}

func TestVehicleExitIdempotentRetry(t *testing.T) {
	f := newParkingFixture()

	if _, _, err := f.service.VehicleEntry(context.Background(), entryDTO("51A12345")); err != nil {
		t.Fatalf("VehicleEntry: %v", err)
	}
	first, firstBreakdown, err := f.service.VehicleExit(context.Background(), exitDTO("51A12345"))
	if err != nil {
		t.Fatalf("VehicleExit lần 1: %v", err)
	}

	raceService := NewParkingService(
		&fakeLotRepo{store: f.store},
		&raceClosedSessionRepo{f.sessionRepo},
		&fakeVehicleRepo{store: f.store},
		&fakeUserRepo{store: f.store},
		f.broadcaster,
		f.actuator,
	)

	// Retry từ cùng rào ra: trả lại kết quả đã lưu thay vì lỗi.
	second, secondBreakdown, err := raceService.VehicleExit(context.Background(), exitDTO("51A12345"))
	if err != nil {
		t.Fatalf("retry cùng rào: %v", err)
	}
	if second.SessionID != first.SessionID || second.Status != domain.SessionCompleted {
		t.Errorf("retry trả về phiên %s/%s, muốn %s/completed", second.SessionID, second.Status, first.SessionID)
	}
	if secondBreakdown.TotalAmount != firstBreakdown.TotalAmount {
		t.Errorf("retry TotalAmount = %.0f, muốn %.0f", secondBreakdown.TotalAmount, firstBreakdown.TotalAmount)
	}

	// Rào khác thì không coi là retry, báo lỗi thật.
	otherBarrier := exitDTO("51A12345")
	otherBarrier.BarrierID = "barrier-9"
	if _, _, err := raceService.VehicleExit(context.Background(), otherBarrier); !errors.Is(err, repository.ErrSessionAlreadyClosed) {
		t.Errorf("err = %v, muốn ErrSessionAlreadyClosed cho rào khác", err)
	}
}

func TestVehicleExitStatsFailureIsNonFatal(t *testing.T) {
	f := newParkingFixture()
	f.registerVehicle("51A12345", domain.VehicleTypeCar, 10)
	f.store.failStats = true

	if _, _, err := f.service.VehicleEntry(context.Background(), entryDTO("51A12345")); err != nil {
		t.Fatalf("VehicleEntry: %v", err)
	}
	_, _, err := f.service.VehicleExit(context.Background(), exitDTO("51A12345"))
	if err != nil {
		t.Errorf("VehicleExit = %v, lỗi thống kê không được làm hỏng giao dịch ra", err)
	}
}

func TestVehicleExitCapacityFailureIsNonFatal(t *testing.T) {
	f := newParkingFixture()

	if _, _, err := f.service.VehicleEntry(context.Background(), entryDTO("51A12345")); err != nil {
		t.Fatalf("VehicleEntry: %v", err)
	}
	f.store.failRefresh = true

	_, _, err := f.service.VehicleExit(context.Background(), exitDTO("51A12345"))
	if err != nil {
		t.Errorf("VehicleExit = %v, lỗi tính lại chỗ trống không được làm hỏng giao dịch ra", err)
	}
}

func TestBarrierControl(t *testing.T) {
	f := newParkingFixture()

	lot, err := f.service.BarrierControl(context.Background(), domain.BarrierControlDTO{
		ParkingLotID: 1,
		BarrierID:    "barrier-1",
		Action:       "open",
	})
	if err != nil {
		t.Fatalf("BarrierControl: %v", err)
	}
	if lot.Barriers[0].Status != domain.BarrierOpen {
		t.Errorf("barrier status = %s, muốn open", lot.Barriers[0].Status)
	}
	if len(f.actuator.commands) != 1 || f.actuator.commands[0].Action != "open" {
		t.Errorf("actuator commands = %v, muốn một lệnh open", f.actuator.commands)
	}
	if !f.broadcaster.has(domain.EventBarrierUpdated) {
		t.Error("thiếu sự kiện barrier-updated")
	}
}

func TestHandleDeviceBarrierStateBroadcastsAction(t *testing.T) {
	f := newParkingFixture()

	err := f.service.HandleDeviceBarrierState(context.Background(), domain.DeviceBarrierStateEvent{
		ParkingLotID: 1,
		BarrierID:    "barrier-1",
		State:        "open",
	})
	if err != nil {
		t.Fatalf("HandleDeviceBarrierState: %v", err)
	}
	var found bool
	for _, e := range f.broadcaster.events {
		payload, ok := e.Data.(domain.BarrierUpdatedEvent)
		if e.Event != domain.EventBarrierUpdated || !ok {
			continue
		}
		found = true
		if payload.Action != "open" {
			t.Errorf("Action = %q, muốn open suy ra từ trạng thái thiết bị", payload.Action)
		}
		if payload.Status != "open" {
			t.Errorf("Status = %q, muốn open", payload.Status)
		}
	}
	if !found {
		t.Fatal("thiếu sự kiện barrier-updated từ trạng thái thiết bị báo về")
	}
}

func TestHandleDeviceBarrierStateRejectsUnknownState(t *testing.T) {
	f := newParkingFixture()

	err := f.service.HandleDeviceBarrierState(context.Background(), domain.DeviceBarrierStateEvent{
		ParkingLotID: 1,
		BarrierID:    "barrier-1",
		State:        "ajar",
	})
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("err = %v, muốn ErrInvalidInput", err)
	}
}

func TestGetLotStatus(t *testing.T) {
	f := newParkingFixture()

	if _, _, err := f.service.VehicleEntry(context.Background(), entryDTO("51A12345")); err != nil {
		t.Fatalf("VehicleEntry: %v", err)
	}
	status, err := f.service.GetLotStatus(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetLotStatus: %v", err)
	}
	if status.ActiveSessions != 1 {
		t.Errorf("ActiveSessions = %d, muốn 1", status.ActiveSessions)
	}
	if status.ParkingLot.AvailableSpaces != 99 {
		t.Errorf("AvailableSpaces = %d, muốn 99", status.ParkingLot.AvailableSpaces)
	}
	if status.OccupancyRate != 1 {
		t.Errorf("OccupancyRate = %.2f, muốn 1", status.OccupancyRate)
	}
}
