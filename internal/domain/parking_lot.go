package domain

import "time"

type BarrierStatus string

const (
	BarrierOpen        BarrierStatus = "open"
	BarrierClosed      BarrierStatus = "closed"
	BarrierMaintenance BarrierStatus = "maintenance"
)

// BarrierInfo mô tả một rào chắn vật lý thuộc bãi đỗ. Thiết bị thật là
// external collaborator; ở đây chỉ lưu trạng thái đã biết gần nhất.
type BarrierInfo struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Type     string        `json:"type"` // "entry" hoặc "exit"
	IsActive bool          `json:"isActive"`
	Status   BarrierStatus `json:"status"`
}

type CameraInfo struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Location        string     `json:"location"`
	IsActive        bool       `json:"isActive"`
	LastMaintenance *time.Time `json:"lastMaintenance,omitempty"`
}

// ParkingLot là một bãi đỗ vật lý. AvailableSpaces là giá trị dẫn xuất,
// luôn được tính lại từ số phiên active chứ không tăng/giảm thủ công.
type ParkingLot struct {
	ID              int           `json:"id"`
	Name            string        `json:"name"`
	Address         string        `json:"address"`
	TotalSpaces     int           `json:"totalSpaces"`
	AvailableSpaces int           `json:"availableSpaces"`
	HourlyRate      float64       `json:"hourlyRate"`
	DailyRate       float64       `json:"dailyRate"`
	MonthlyRate     float64       `json:"monthlyRate"`
	IsActive        bool          `json:"isActive"`
	Barriers        []BarrierInfo `json:"barriers"`
	Cameras         []CameraInfo  `json:"cameras"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// OccupancyRate trả về tỷ lệ lấp đầy (%) tính trên số liệu hiện có.
func (l *ParkingLot) OccupancyRate() float64 {
	if l.TotalSpaces <= 0 {
		return 0
	}
	return float64(l.TotalSpaces-l.AvailableSpaces) / float64(l.TotalSpaces) * 100
}

// DTO cho API điều khiển rào chắn thủ công (vận hành viên hoặc thiết bị)
type BarrierControlDTO struct {
	ParkingLotID int    `json:"parking_lot_id" binding:"required"`
	BarrierID    string `json:"barrier_id" binding:"required"`
	Action       string `json:"action" binding:"required,oneof=open close"`
}

// DTO cho API cập nhật trạng thái camera
type CameraStatusDTO struct {
	ParkingLotID    int     `json:"parking_lot_id" binding:"required"`
	CameraID        string  `json:"camera_id" binding:"required"`
	IsActive        *bool   `json:"is_active" binding:"required"`
	LastMaintenance *string `json:"last_maintenance"` // RFC3339, tùy chọn
}

type ParkingLotDTO struct {
	Name        string        `json:"name" binding:"required"`
	Address     string        `json:"address" binding:"required"`
	TotalSpaces int           `json:"totalSpaces" binding:"required,min=1"`
	HourlyRate  float64       `json:"hourlyRate" binding:"required,min=0"`
	DailyRate   float64       `json:"dailyRate" binding:"required,min=0"`
	MonthlyRate float64       `json:"monthlyRate"`
	Barriers    []BarrierInfo `json:"barriers"`
	Cameras     []CameraInfo  `json:"cameras"`
}
