package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"parking_system_go/internal/domain"
	"parking_system_go/internal/repository"
	"parking_system_go/internal/service"

	"github.com/gin-gonic/gin"
)

// Repo stub rỗng: mọi truy vấn đều trả ErrNotFound.
type emptyLotRepo struct{}

func (emptyLotRepo) Create(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error) {
	return nil, repository.ErrNotFound
}

func (emptyLotRepo) FindByID(ctx context.Context, id int) (*domain.ParkingLot, error) {
	return nil, repository.ErrNotFound
}

func (emptyLotRepo) FindAll(ctx context.Context) ([]domain.ParkingLot, error) {
	return nil, nil
}

func (emptyLotRepo) Update(ctx context.Context, lot *domain.ParkingLot) (*domain.ParkingLot, error) {
	return nil, repository.ErrNotFound
}

func (emptyLotRepo) RefreshAvailableSpaces(ctx context.Context, lotID int) (int, error) {
	return 0, repository.ErrNotFound
}

func (emptyLotRepo) UpdateBarrierStatus(ctx context.Context, lotID int, barrierID string, status domain.BarrierStatus) (*domain.ParkingLot, error) {
	return nil, repository.ErrNotFound
}

func (emptyLotRepo) UpdateCameraStatus(ctx context.Context, lotID int, cameraID string, isActive bool, lastMaintenance *string) (*domain.ParkingLot, error) {
	return nil, repository.ErrNotFound
}

type emptySessionRepo struct{}

func (emptySessionRepo) Create(ctx context.Context, session *domain.ParkingSession) (*domain.ParkingSession, error) {
	return nil, repository.ErrNotFound
}

func (emptySessionRepo) FindBySessionID(ctx context.Context, sessionID string) (*domain.ParkingSession, error) {
	return nil, repository.ErrNotFound
}

func (emptySessionRepo) FindActiveByPlate(ctx context.Context, licensePlate string) (*domain.ParkingSession, error) {
	return nil, repository.ErrNoActiveSession
}

func (emptySessionRepo) Close(ctx context.Context, session *domain.ParkingSession) (*domain.ParkingSession, error) {
	return nil, repository.ErrNotFound
}

func (emptySessionRepo) ListActive(ctx context.Context, lotID int) ([]domain.ParkingSession, error) {
	return nil, nil
}

func (emptySessionRepo) Find(ctx context.Context, filter domain.ParkingSessionFilterDTO) ([]domain.ParkingSession, int, error) {
	return nil, 0, nil
}

type emptyVehicleRepo struct{}

func (emptyVehicleRepo) FindByPlate(ctx context.Context, licensePlate string) (*domain.Vehicle, error) {
	return nil, repository.ErrNotFound
}

func (emptyVehicleRepo) UpdateUsageStats(ctx context.Context, vehicleID int, durationMinutes int64, fee float64, lastSessionID int) error {
	return nil
}

func newEntryTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	ps := service.NewParkingService(emptyLotRepo{}, emptySessionRepo{}, emptyVehicleRepo{}, nil, nil, nil)
	h := NewParkingHandler(ps)
	r := gin.New()
	r.POST("/api/parking/entry", h.VehicleEntry)
	return r
}

func TestVehicleEntryUnknownLotReturns400(t *testing.T) {
	r := newEntryTestRouter()

	body := `{"licensePlate":"51A12345","parkingLotId":99,"entryImage":"aGluaA==","barrierId":"barrier-1"}`
	req := httptest.NewRequest(http.MethodPost, "/api/parking/entry", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, muốn 400 khi bãi đỗ không tồn tại (body: %s)", w.Code, w.Body.String())
	}
	var resp struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body không parse được: %v", err)
	}
	if resp.Success {
		t.Error("success = true, muốn false")
	}
	if resp.Message == "" {
		t.Error("message rỗng, muốn lý do bãi đỗ không tồn tại")
	}
}
