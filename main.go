package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsgo_config "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"parking_system_go/internal/alpr"
	"parking_system_go/internal/api"
	"parking_system_go/internal/api/handler"
	"parking_system_go/internal/api/middleware"
	"parking_system_go/internal/config"
	"parking_system_go/internal/iot"
	"parking_system_go/internal/repository/postgresql"
	"parking_system_go/internal/service"
)

func main() {
	// 1. Load Configuration
	cfg := config.Load()
	log.Println("Cấu hình đã được tải.")

	// 2. Setup Database Connection
	db, err := postgresql.NewDB(cfg)
	if err != nil {
		log.Fatalf("Không thể kết nối database: %v", err)
	}
	defer db.Close()
	log.Println("Đã kết nối database thành công!")

	// 3. Khởi tạo AWS SDK Config
	awsSDKCfg, err := awsgo_config.LoadDefaultConfig(context.TODO(), awsgo_config.WithRegion(cfg.AWSRegion))
	if err != nil {
		log.Fatalf("Không thể tải AWS SDK config: %v", err)
	}
	log.Println("Đã tải AWS SDK config thành công cho region:", cfg.AWSRegion)

	// 4. Khởi tạo AWS Clients
	sqsClient := sqs.NewFromConfig(awsSDKCfg)
	iotDataPlaneClient := iotdataplane.NewFromConfig(awsSDKCfg, func(o *iotdataplane.Options) {
		if cfg.IoTMQTTEndpoint != "" {
			endpointWithSchema := cfg.IoTMQTTEndpoint
			if !strings.HasPrefix(endpointWithSchema, "https://") && !strings.HasPrefix(endpointWithSchema, "http://") {
				endpointWithSchema = "https://" + endpointWithSchema
			}
			o.BaseEndpoint = aws.String(endpointWithSchema)
		}
	})
	log.Println("Đã khởi tạo SQS client và IoT Data Plane client.")

	// 5. Initialize Repositories
	userRepo := postgresql.NewPgUserRepository(db)
	parkingLotRepo := postgresql.NewPgParkingLotRepository(db)
	sessionRepo := postgresql.NewPgParkingSessionRepository(db)
	vehicleRepo := postgresql.NewPgVehicleRepository(db)
	rfidRepo := postgresql.NewPgRFIDRepository(db)

	// 6. WebSocket hub cho dashboard realtime
	wsHub := handler.NewWebSocketHub()
	go wsHub.Run()
	log.Println("WebSocket hub đã được khởi động.")

	// 7. Initialize Services
	alprClient := alpr.NewClient(cfg.ALPRServiceURL, cfg.ALPRTimeout)
	barrierCommander := iot.NewBarrierCommander(iotDataPlaneClient)

	authService := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpirationHours)
	parkingService := service.NewParkingService(parkingLotRepo, sessionRepo, vehicleRepo, userRepo, wsHub, barrierCommander)
	iotService := service.NewIoTService(parkingService, rfidRepo, alprClient, wsHub, cfg)

	// 8. Initialize Auth Middleware
	authMiddleware := middleware.NewAuthMiddleware(authService)

	// 9. Khởi tạo và Chạy SQS Consumer
	var wg sync.WaitGroup
	consumerCtx, cancelConsumer := context.WithCancel(context.Background())

	if cfg.SQSEventQueueURL == "" {
		log.Println("CẢNH BÁO: SQS_EVENT_QUEUE_URL chưa được cấu hình. SQS Consumer sẽ không chạy.")
	} else {
		sqsConsumer := iot.NewSQSConsumer(sqsClient, cfg, iotService)
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Println("SQS Consumer đang bắt đầu lắng nghe queue:", cfg.SQSEventQueueURL)
			sqsConsumer.Start(consumerCtx)
			log.Println("SQS Consumer đã dừng.")
		}()
	}

	// 10. Background job tính lại chỗ trống các bãi theo chu kỳ
	go startCapacityRefreshJob(consumerCtx, parkingService, cfg.CapacityRefreshInterval)

	// 11. Setup HTTP Router
	router := api.SetupRouter(authService, parkingService, iotService, authMiddleware, wsHub)

	// 12. Start HTTP Server
	srv := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	go func() {
		log.Printf("Server đang chạy trên port %s", cfg.ServerPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Lỗi ListenAndServe(): %v", err)
		}
	}()

	// Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Đang tắt server...")

	cancelConsumer()

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server buộc phải tắt: %v", err)
	}

	if cfg.SQSEventQueueURL != "" {
		log.Println("Đang chờ SQS consumer dừng (tối đa 5 giây)...")
		c := make(chan struct{})
		go func() {
			defer close(c)
			wg.Wait()
		}()
		select {
		case <-c:
			log.Println("SQS consumer đã dừng hoàn toàn.")
		case <-time.After(5 * time.Second):
			log.Println("SQS consumer không dừng trong thời gian chờ.")
		}
	}

	log.Println("Server đã tắt.")
}

// startCapacityRefreshJob định kỳ tính lại available_spaces từ số phiên
// đang hoạt động, sửa drift do các cập nhật best-effort bị lỡ.
func startCapacityRefreshJob(ctx context.Context, ps *service.ParkingService, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			jobCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			ps.RefreshAllLots(jobCtx)
			cancel()
		}
	}
}
