package domain

import (
	"gopkg.in/guregu/null.v4"
	"time"
)

// RFIDData là bản ghi audit cho mỗi lần quẹt thẻ từ ESP32. Append-only:
// luôn được lưu TRƯỚC khi gọi dịch vụ nhận dạng, để không mất dữ liệu
// quẹt thẻ kể cả khi pipeline phía sau thất bại.
type RFIDData struct {
	ID           int64     `json:"id"`
	ReaderID     int       `json:"reader_id"` // 1 (cổng vào) hoặc 2 (cổng ra)
	CardID       string    `json:"card_id"`
	Timestamp    int64     `json:"timestamp"` // millis() từ thiết bị
	DeviceID     string    `json:"device_id"`
	ParkingLotID null.Int  `json:"parking_lot_id"`
	CreatedAt    time.Time `json:"created_at"`
}

type RFIDDataDTO struct {
	ReaderID     int    `json:"reader_id" binding:"required,min=1,max=2"`
	CardID       string `json:"card_id" binding:"required"`
	Timestamp    int64  `json:"timestamp" binding:"required"`
	DeviceID     string `json:"device_id" binding:"required"`
	ParkingLotID int    `json:"parking_lot_id"`
}

// DTO cho pipeline tích hợp RFID + ALPR (ESP32 gửi kèm ảnh cổng vào)
type RFIDALPRIntegrationDTO struct {
	ReaderID     int    `json:"reader_id" binding:"required,min=1,max=2"`
	CardID       string `json:"card_id" binding:"required"`
	DeviceID     string `json:"device_id" binding:"required"`
	ParkingLotID int    `json:"parking_lot_id" binding:"required"`
	EntryImage   string `json:"entry_image" binding:"required"` // base64
	BarrierID    string `json:"barrier_id" binding:"required"`
}

type RFIDFilterDTO struct {
	ReaderID     *int `form:"reader_id"`
	ParkingLotID *int `form:"parking_lot_id"`
	Page         int  `form:"page,default=1"`
	Limit        int  `form:"limit,default=100"`
}

// Thống kê quẹt thẻ theo ngày và theo đầu đọc
type RFIDReaderDayStats struct {
	Date        string `json:"date"`
	ReaderID    int    `json:"reader_id"`
	Count       int    `json:"count"`
	UniqueCards int    `json:"unique_cards"`
}
