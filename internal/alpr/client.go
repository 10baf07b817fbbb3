package alpr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"time"

	"parking_system_go/internal/pricing"
)

// Dịch vụ nhận dạng không phản hồi được (lỗi mạng, 5xx, timeout).
var ErrRecognitionUnavailable = errors.New("dịch vụ nhận dạng biển số không khả dụng")

// Dịch vụ phản hồi bình thường nhưng không tìm thấy biển số trong ảnh.
var ErrNoPlateFound = errors.New("không phát hiện được biển số trong ảnh")

// Result là kết quả trả về từ dịch vụ ALPR bên ngoài. Degraded = true khi
// dịch vụ báo success=false nhưng vẫn đọc được biển số, kết quả vẫn dùng
// được nhưng cần đánh dấu để vận hành kiểm tra lại.
type Result struct {
	Success      bool    `json:"success"`
	LicensePlate string  `json:"license_plate"`
	Confidence   float64 `json:"confidence"`
	Error        string  `json:"error,omitempty"`
	Degraded     bool    `json:"-"`
}

// Client gọi dịch vụ nhận dạng biển số qua HTTP. Bản thân việc nhận dạng
// là một external collaborator, module này chỉ tiêu thụ kết quả.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// DetectPlate gửi ảnh cổng vào lên dịch vụ ALPR và trả về biển số đã
// chuẩn hoá. Phân loại lỗi:
//   - ErrRecognitionUnavailable: lỗi vận chuyển, dịch vụ lỗi hoàn toàn
//   - ErrNoPlateFound: dịch vụ chạy tốt nhưng ảnh không có biển số
//   - Degraded: success=false nhưng có biển số, vẫn trả Result kèm cờ
func (c *Client) DetectPlate(ctx context.Context, imageData []byte, parkingLotID int, barrierID string) (*Result, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("image", "entry.jpg")
	if err != nil {
		return nil, fmt.Errorf("ALPRClient.DetectPlate (form file): %w", err)
	}
	if _, err := part.Write(imageData); err != nil {
		return nil, fmt.Errorf("ALPRClient.DetectPlate (write image): %w", err)
	}
	_ = writer.WriteField("parkingLotId", fmt.Sprintf("%d", parkingLotID))
	_ = writer.WriteField("barrierId", barrierID)
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("ALPRClient.DetectPlate (close writer): %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/detect", body)
	if err != nil {
		return nil, fmt.Errorf("ALPRClient.DetectPlate (new request): %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Printf("ALPRClient: lỗi gọi dịch vụ nhận dạng: %v", err)
		return nil, ErrRecognitionUnavailable
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrRecognitionUnavailable
	}

	var result Result
	if err := json.Unmarshal(respBody, &result); err != nil {
		log.Printf("ALPRClient: phản hồi không parse được (status %d): %v", resp.StatusCode, err)
		return nil, ErrRecognitionUnavailable
	}

	result.LicensePlate = pricing.NormalizePlate(result.LicensePlate)

	if resp.StatusCode >= 500 && result.LicensePlate == "" {
		return nil, ErrRecognitionUnavailable
	}
	if result.LicensePlate == "" {
		return nil, ErrNoPlateFound
	}
	if !result.Success {
		// Dịch vụ tự báo lỗi nhưng vẫn đọc được biển số. Dùng kết quả,
		// đánh dấu degraded để phiên tạo ra được gắn cờ kiểm tra.
		log.Printf("ALPRClient: kết quả degraded, plate=%s confidence=%.2f error=%q", result.LicensePlate, result.Confidence, result.Error)
		result.Degraded = true
	}
	return &result, nil
}
