package api

import (
	"parking_system_go/internal/api/handler"
	"parking_system_go/internal/api/middleware"
	"parking_system_go/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRouter(as *service.AuthService, ps *service.ParkingService, is *service.IoTService,
	authMw *middleware.AuthMiddleware, wsHub *handler.WebSocketHub) *gin.Engine {
	r := gin.Default()
	r.Use(gin.Logger())
	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// WebSocket endpoint (không cần auth cho real-time connection)
	wsHandler := handler.NewWebSocketHandler(wsHub)
	r.GET("/ws", wsHandler.HandleWebSocket)

	authHandler := handler.NewAuthHandler(as)
	authRoutes := r.Group("/api/auth")
	{
		authRoutes.POST("/login", authHandler.Login)
	}

	parkingH := handler.NewParkingHandler(ps)
	iotH := handler.NewIoTHandler(is, ps)

	// Route cho thiết bị tại cổng (ESP32, camera node). Thiết bị không
	// mang JWT nên các route này public, bảo vệ ở tầng hạ tầng mạng.
	deviceParking := r.Group("/api/parking")
	{
		deviceParking.POST("/entry", parkingH.VehicleEntry)
		deviceParking.POST("/exit", parkingH.VehicleExit)
	}

	deviceIoT := r.Group("/api/iot")
	{
		deviceIoT.POST("/rfid-data", iotH.ReceiveRFIDData)
		deviceIoT.POST("/rfid-alpr-integration", iotH.RFIDALPRIntegration)
		deviceIoT.POST("/barrier-control", iotH.BarrierControl)
		deviceIoT.POST("/camera-status", iotH.UpdateCameraStatus)
		deviceIoT.GET("/parking-lot/:id/status", iotH.GetParkingLotStatus)
		deviceIoT.GET("/rfid-health", iotH.GetRFIDHealth)
	}

	// Route đọc cho dashboard vận hành, yêu cầu JWT
	dashboardParking := r.Group("/api/parking")
	dashboardParking.Use(authMw.Authenticate())
	{
		dashboardParking.GET("/active", parkingH.GetActiveSessions)
		dashboardParking.GET("/sessions", parkingH.FindParkingSessions)
		dashboardParking.GET("/sessions/:id", parkingH.GetSessionBySessionID)
	}

	dashboardIoT := r.Group("/api/iot")
	dashboardIoT.Use(authMw.Authenticate())
	{
		dashboardIoT.GET("/rfid-data", iotH.GetRFIDData)
		dashboardIoT.GET("/rfid-stats", iotH.GetRFIDStats)
	}

	// Route quản trị bãi đỗ, chỉ admin được ghi
	v1 := r.Group("/api/v1")
	v1.Use(authMw.Authenticate())
	{
		lotH := handler.NewParkingLotHandler(ps)
		lotRoutes := v1.Group("/parking-lots")
		{
			lotRoutes.POST("", authMw.AuthorizeRole("admin"), lotH.CreateParkingLot)
			lotRoutes.GET("", lotH.GetAllParkingLots)
			lotRoutes.GET("/:id", lotH.GetParkingLotByID)
			lotRoutes.PUT("/:id", authMw.AuthorizeRole("admin"), lotH.UpdateParkingLot)
		}
	}

	return r
}
