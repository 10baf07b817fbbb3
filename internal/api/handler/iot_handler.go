package handler

import (
	"errors"
	"net/http"
	"strconv"

	"parking_system_go/internal/alpr"
	"parking_system_go/internal/domain"
	"parking_system_go/internal/repository"
	"parking_system_go/internal/service"

	"github.com/gin-gonic/gin"
)

type IoTHandler struct {
	iotService     *service.IoTService
	parkingService *service.ParkingService
}

func NewIoTHandler(is *service.IoTService, ps *service.ParkingService) *IoTHandler {
	return &IoTHandler{iotService: is, parkingService: ps}
}

// POST /api/iot/rfid-data
func (h *IoTHandler) ReceiveRFIDData(c *gin.Context) {
	var dto domain.RFIDDataDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Dữ liệu RFID không hợp lệ: " + err.Error()})
		return
	}

	saved, err := h.iotService.SaveRFIDData(c.Request.Context(), dto)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Không thể lưu dữ liệu RFID", "details": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"success": true, "message": "Đã lưu dữ liệu RFID", "data": saved})
}

// POST /api/iot/rfid-alpr-integration
// Pipeline cổng vào: lưu RFID trước, nhận dạng biển số, tạo phiên đỗ xe.
// RFID đã lưu thì response luôn kèm rfid_saved=true kể cả khi các bước
// sau thất bại.
func (h *IoTHandler) RFIDALPRIntegration(c *gin.Context) {
	var dto domain.RFIDALPRIntegrationDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Dữ liệu không hợp lệ: " + err.Error()})
		return
	}

	result, err := h.iotService.ProcessRFIDEntry(c.Request.Context(), dto)
	if err != nil {
		// Lưu RFID thất bại nghĩa là mất audit trail, đây là lỗi thật.
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Không thể lưu dữ liệu RFID", "details": err.Error()})
		return
	}

	if result.Failure != nil {
		status := http.StatusBadRequest
		if errors.Is(result.Failure, alpr.ErrRecognitionUnavailable) {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{
			"success":    false,
			"message":    result.Message,
			"rfid_saved": true,
			"data":       result,
		})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success":    true,
		"message":    result.Message,
		"rfid_saved": true,
		"data":       result,
	})
}

// POST /api/iot/barrier-control
func (h *IoTHandler) BarrierControl(c *gin.Context) {
	var dto domain.BarrierControlDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Dữ liệu không hợp lệ: " + err.Error()})
		return
	}

	lot, err := h.parkingService.BarrierControl(c.Request.Context(), dto)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Không thể điều khiển rào chắn", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Đã gửi lệnh điều khiển rào chắn", "data": lot})
}

// POST /api/iot/camera-status
func (h *IoTHandler) UpdateCameraStatus(c *gin.Context) {
	var dto domain.CameraStatusDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Dữ liệu không hợp lệ: " + err.Error()})
		return
	}

	lot, err := h.parkingService.UpdateCameraStatus(c.Request.Context(), dto)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Không thể cập nhật trạng thái camera", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Đã cập nhật trạng thái camera", "data": lot})
}

// GET /api/iot/parking-lot/:id/status
func (h *IoTHandler) GetParkingLotStatus(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "ID bãi đỗ không hợp lệ"})
		return
	}

	status, err := h.parkingService.GetLotStatus(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Không tìm thấy bãi đỗ xe"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Lỗi khi lấy trạng thái bãi đỗ xe", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": status})
}

// GET /api/iot/rfid-data
func (h *IoTHandler) GetRFIDData(c *gin.Context) {
	var filter domain.RFIDFilterDTO
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Tham số filter không hợp lệ: " + err.Error()})
		return
	}

	records, total, err := h.iotService.GetRFIDData(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Lỗi khi lấy dữ liệu RFID", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    records,
		"pagination": gin.H{
			"page":  filter.Page,
			"limit": filter.Limit,
			"total": total,
		},
	})
}

// GET /api/iot/rfid-stats?days=
func (h *IoTHandler) GetRFIDStats(c *gin.Context) {
	days := 7
	if daysStr := c.Query("days"); daysStr != "" {
		d, err := strconv.Atoi(daysStr)
		if err != nil || d <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Tham số days không hợp lệ"})
			return
		}
		days = d
	}

	stats, err := h.iotService.GetRFIDStats(c.Request.Context(), days)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Lỗi khi lấy thống kê RFID", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": stats, "days": days})
}

// GET /api/iot/rfid-health
func (h *IoTHandler) GetRFIDHealth(c *gin.Context) {
	health, err := h.iotService.GetRFIDHealth(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Lỗi khi kiểm tra tình trạng đầu đọc RFID", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": health})
}
