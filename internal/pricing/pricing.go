package pricing

import (
	"math"
	"time"

	"parking_system_go/internal/domain"
)

// Hệ số nhân giá theo loại xe, áp cho cả giá giờ và giá ngày.
var vehicleRateMultiplier = map[string]float64{
	domain.VehicleTypeMotorcycle: 0.5,
	domain.VehicleTypeCar:        1.0,
	domain.VehicleTypeTruck:      1.5,
	domain.VehicleTypeBus:        2.0,
}

type Breakdown struct {
	BasicFee float64 `json:"basicFee"`
	LateFee  float64 `json:"lateFee"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
}

// FeeBreakdown là kết quả tính phí đầy đủ cho một phiên đỗ xe.
// Mọi giá trị tiền đều đã làm tròn về đơn vị đồng.
type FeeBreakdown struct {
	Fee               float64   `json:"fee"`
	HourlyRate        float64   `json:"hourlyRate"`
	DailyRate         float64   `json:"dailyRate"`
	CalculationMethod string    `json:"calculationMethod"` // "hourly" hoặc "daily"
	DurationHours     int64     `json:"durationHours"`
	DurationDays      int64     `json:"durationDays"`
	VehicleType       string    `json:"vehicleType"`
	Multiplier        float64   `json:"multiplier"`
	LateFee           float64   `json:"lateFee"`
	DiscountAmount    float64   `json:"discountAmount"`
	DiscountReason    string    `json:"discountReason"`
	TotalAmount       float64   `json:"totalAmount"`
	Breakdown         Breakdown `json:"breakdown"`
}

// ceilDiv trả về ceil(a/b) cho a, b dương.
func ceilDiv(a, b int64) int64 {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}

// CalculateParkingFee tính phí cơ bản từ thời gian gửi và loại xe.
// Quy tắc chọn bậc: nếu số ngày (ceil(hours/24)) > 1 thì tính theo ngày,
// ngược lại tính theo giờ. Đúng 24 giờ => days = 1 => vẫn tính theo giờ.
func CalculateParkingFee(durationMinutes int64, lot *domain.ParkingLot, vehicleType string) FeeBreakdown {
	hours := ceilDiv(durationMinutes, 60)
	days := ceilDiv(hours, 24)

	multiplier, ok := vehicleRateMultiplier[vehicleType]
	if !ok {
		multiplier = 1.0
		vehicleType = domain.VehicleTypeCar
	}
	hourlyRate := lot.HourlyRate * multiplier
	dailyRate := lot.DailyRate * multiplier

	var fee float64
	var method string
	if days > 1 {
		fee = float64(days) * dailyRate
		method = "daily"
	} else {
		fee = float64(hours) * hourlyRate
		method = "hourly"
	}

	return FeeBreakdown{
		Fee:               math.Round(fee),
		HourlyRate:        math.Round(hourlyRate),
		DailyRate:         math.Round(dailyRate),
		CalculationMethod: method,
		DurationHours:     hours,
		DurationDays:      days,
		VehicleType:       vehicleType,
		Multiplier:        multiplier,
	}
}

// CalculateLateFee tính phí trễ so với thời gian ra dự kiến:
// ceil(phút trễ / 60) × giá giờ × 1.5. Không trễ => 0.
func CalculateLateFee(exitTime, expectedExitTime time.Time, hourlyRate float64) float64 {
	if exitTime.IsZero() || expectedExitTime.IsZero() {
		return 0
	}
	lateMinutes := int64(math.Ceil(exitTime.Sub(expectedExitTime).Minutes()))
	if lateMinutes <= 0 {
		return 0
	}
	lateHours := ceilDiv(lateMinutes, 60)
	return float64(lateHours) * hourlyRate * 1.5
}

// CalculateDiscount tính giảm giá theo hạng khách và thời gian gửi dài.
// Cả hai mức giảm đều là phần trăm phẳng trên cùng originalFee (phí cơ
// bản cộng phí trễ, trước giảm giá), cộng dồn chứ không nhân kép theo
// biểu phí đang vận hành.
func CalculateDiscount(originalFee float64, user *domain.User, durationHours int64) (float64, string) {
	var discountAmount float64
	var discountReason string

	if user != nil && (user.Role == "vip" || user.Balance > 1000000) {
		discountAmount = originalFee * 0.1
		discountReason = "Khách hàng VIP"
	}

	if durationHours >= 24 {
		discountAmount += originalFee * 0.05
		if discountReason != "" {
			discountReason += " + Gửi xe dài hạn"
		} else {
			discountReason = "Gửi xe dài hạn"
		}
	}

	// Không bao giờ để tổng tiền âm
	if discountAmount > originalFee {
		discountAmount = originalFee
	}
	return math.Round(discountAmount), discountReason
}

// CalculateTotalFee gộp phí cơ bản, phí trễ và giảm giá thành kết quả
// cuối cùng. Hàm thuần túy, không side effect.
func CalculateTotalFee(session *domain.ParkingSession, lot *domain.ParkingLot, vehicleType string, user *domain.User) FeeBreakdown {
	var durationMinutes int64
	if session.DurationMinutes.Valid {
		durationMinutes = session.DurationMinutes.Int64
	}

	result := CalculateParkingFee(durationMinutes, lot, vehicleType)

	var lateFee float64
	if session.ExitTime.Valid && session.ExpectedExitTime.Valid {
		lateFee = CalculateLateFee(session.ExitTime.Time, session.ExpectedExitTime.Time, result.HourlyRate)
	}
	result.LateFee = math.Round(lateFee)

	discountAmount, discountReason := CalculateDiscount(result.Fee+result.LateFee, user, result.DurationHours)
	result.DiscountAmount = discountAmount
	result.DiscountReason = discountReason
	result.TotalAmount = math.Round(result.Fee + result.LateFee - discountAmount)

	result.Breakdown = Breakdown{
		BasicFee: result.Fee,
		LateFee:  result.LateFee,
		Discount: result.DiscountAmount,
		Total:    result.TotalAmount,
	}
	return result
}
