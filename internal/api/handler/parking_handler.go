package handler

import (
	"errors"
	"net/http"
	"strconv"

	"parking_system_go/internal/domain"
	"parking_system_go/internal/repository"
	"parking_system_go/internal/service"

	"github.com/gin-gonic/gin"
)

type ParkingHandler struct {
	parkingService *service.ParkingService
}

func NewParkingHandler(ps *service.ParkingService) *ParkingHandler {
	return &ParkingHandler{parkingService: ps}
}

// POST /api/parking/entry
func (h *ParkingHandler) VehicleEntry(c *gin.Context) {
	var dto domain.VehicleEntryDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Dữ liệu không hợp lệ: " + err.Error()})
		return
	}

	session, shouldOpen, err := h.parkingService.VehicleEntry(c.Request.Context(), dto)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDuplicateActiveSession),
			errors.Is(err, service.ErrLotNotFound),
			errors.Is(err, service.ErrLotFull),
			errors.Is(err, service.ErrLotInactive),
			errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
			return
		case errors.Is(err, repository.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Không thể ghi nhận xe vào", "details": err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"message": "Đã ghi nhận xe vào bãi",
		"data": gin.H{
			"session":           session,
			"shouldOpenBarrier": shouldOpen,
		},
	})
}

// POST /api/parking/exit
func (h *ParkingHandler) VehicleExit(c *gin.Context) {
	var dto domain.VehicleExitDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Dữ liệu không hợp lệ: " + err.Error()})
		return
	}

	session, breakdown, err := h.parkingService.VehicleExit(c.Request.Context(), dto)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNoActiveSession):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
			return
		case errors.Is(err, repository.ErrSessionAlreadyClosed):
			c.JSON(http.StatusConflict, gin.H{"success": false, "message": err.Error()})
			return
		case errors.Is(err, service.ErrInvalidInput):
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Không thể ghi nhận xe ra", "details": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Đã ghi nhận xe ra bãi",
		"data": gin.H{
			"session":      session,
			"feeBreakdown": breakdown,
		},
	})
}

// GET /api/parking/active?parkingLotId=
func (h *ParkingHandler) GetActiveSessions(c *gin.Context) {
	lotID := 0
	if lotIDStr := c.Query("parkingLotId"); lotIDStr != "" {
		id, err := strconv.Atoi(lotIDStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "parkingLotId không hợp lệ"})
			return
		}
		lotID = id
	}

	sessions, err := h.parkingService.GetActiveSessions(c.Request.Context(), lotID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Lỗi khi lấy danh sách phiên đang hoạt động", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": sessions, "count": len(sessions)})
}

// GET /api/parking/sessions
func (h *ParkingHandler) FindParkingSessions(c *gin.Context) {
	var filter domain.ParkingSessionFilterDTO
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Tham số filter không hợp lệ: " + err.Error()})
		return
	}

	sessions, total, err := h.parkingService.FindParkingSessions(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Lỗi khi tìm kiếm phiên đỗ xe", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    sessions,
		"pagination": gin.H{
			"page":  filter.Page,
			"limit": filter.Limit,
			"total": total,
		},
	})
}

// GET /api/parking/sessions/:id
func (h *ParkingHandler) GetSessionBySessionID(c *gin.Context) {
	sessionID := c.Param("id")
	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": "Thiếu session ID"})
		return
	}

	session, err := h.parkingService.GetSessionBySessionID(c.Request.Context(), sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"success": false, "message": "Không tìm thấy phiên đỗ xe"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Lỗi khi lấy thông tin phiên đỗ xe", "details": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "data": session})
}
