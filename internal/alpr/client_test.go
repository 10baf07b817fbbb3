package alpr

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	server := httptest.NewServer(handler)
	return NewClient(server.URL, 5*time.Second), server
}

func TestDetectPlateSuccess(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/detect" {
			t.Errorf("path = %s, muốn /api/detect", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if r.FormValue("parkingLotId") != "1" {
			t.Errorf("parkingLotId = %s, muốn 1", r.FormValue("parkingLotId"))
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": true, "license_plate": "51a-123.45", "confidence": 0.97}`))
	})
	defer server.Close()

	result, err := client.DetectPlate(context.Background(), []byte("anh-gia"), 1, "barrier-1")
	if err != nil {
		t.Fatalf("DetectPlate: %v", err)
	}
	if result.LicensePlate != "51A12345" {
		t.Errorf("LicensePlate = %s, muốn 51A12345 (đã chuẩn hoá)", result.LicensePlate)
	}
	if result.Degraded {
		t.Error("Degraded = true, muốn false khi success")
	}
}

func TestDetectPlateDegraded(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": false, "license_plate": "51A12345", "confidence": 0.42, "error": "low quality image"}`))
	})
	defer server.Close()

	result, err := client.DetectPlate(context.Background(), []byte("anh-gia"), 1, "barrier-1")
	if err != nil {
		t.Fatalf("DetectPlate: %v", err)
	}
	if !result.Degraded {
		t.Error("Degraded = false, muốn true khi success=false nhưng có biển số")
	}
	if result.LicensePlate != "51A12345" {
		t.Errorf("LicensePlate = %s, muốn 51A12345", result.LicensePlate)
	}
}

func TestDetectPlateNoPlateFound(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success": false, "license_plate": "", "error": "no plate detected"}`))
	})
	defer server.Close()

	_, err := client.DetectPlate(context.Background(), []byte("anh-gia"), 1, "barrier-1")
	if !errors.Is(err, ErrNoPlateFound) {
		t.Errorf("err = %v, muốn ErrNoPlateFound", err)
	}
}

func TestDetectPlateServiceError(t *testing.T) {
	client, server := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"success": false, "license_plate": "", "error": "internal"}`))
	})
	defer server.Close()

	_, err := client.DetectPlate(context.Background(), []byte("anh-gia"), 1, "barrier-1")
	if !errors.Is(err, ErrRecognitionUnavailable) {
		t.Errorf("err = %v, muốn ErrRecognitionUnavailable", err)
	}
}

func TestDetectPlateTransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := NewClient(server.URL, 5*time.Second)
	server.Close() // đóng trước khi gọi để giả lập lỗi mạng

	_, err := client.DetectPlate(context.Background(), []byte("anh-gia"), 1, "barrier-1")
	if !errors.Is(err, ErrRecognitionUnavailable) {
		t.Errorf("err = %v, muốn ErrRecognitionUnavailable", err)
	}
}
