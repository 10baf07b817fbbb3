package pricing

import (
	"regexp"
	"strings"
)

// Biển số Việt Nam sau khi chuẩn hoá (bỏ khoảng trắng, gạch nối, dấu chấm).
var platePattern = regexp.MustCompile(`^[0-9]{2}[A-Z]{1,2}[0-9]{0,1}[0-9]{3,5}$`)

// NormalizePlate đưa biển số về dạng so khớp: viết hoa, bỏ khoảng
// trắng, gạch nối và dấu chấm. Dùng nhất quán cho cả lúc lưu và lúc
// truy vấn để một xe chỉ có một phiên active.
func NormalizePlate(plate string) string {
	p := strings.ToUpper(strings.TrimSpace(plate))
	p = strings.ReplaceAll(p, " ", "")
	p = strings.ReplaceAll(p, "-", "")
	p = strings.ReplaceAll(p, ".", "")
	return p
}

// ValidateLicensePlate kiểm tra biển số đã chuẩn hoá có đúng định dạng
// biển Việt Nam hay không.
func ValidateLicensePlate(plate string) bool {
	return platePattern.MatchString(NormalizePlate(plate))
}

var (
	plateDisplayPattern       = regexp.MustCompile(`^[0-9]{2}[A-Z][0-9]{4,5}$`)
	plateDisplaySuffixPattern = regexp.MustCompile(`^[0-9]{2}[A-Z][0-9]{3,4}[A-Z]$`)
)

// FormatLicensePlate trả về dạng hiển thị có gạch nối cho vé và
// dashboard. Biển không khớp pattern quen thuộc thì giữ nguyên dạng
// đã chuẩn hoá.
func FormatLicensePlate(plate string) string {
	clean := NormalizePlate(plate)
	if clean == "" {
		return ""
	}
	if plateDisplayPattern.MatchString(clean) {
		return clean[:2] + "-" + clean[2:3] + "-" + clean[3:]
	}
	if plateDisplaySuffixPattern.MatchString(clean) {
		return clean[:2] + "-" + clean[2:3] + "-" + clean[3:len(clean)-1] + "-" + clean[len(clean)-1:]
	}
	return clean
}
