package iot

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/iotdataplane"
	"github.com/google/uuid"
)

// BarrierCommandPayload là lệnh publish xuống ESP32 điều khiển rào chắn.
type BarrierCommandPayload struct {
	Command   string `json:"command"` // "open" hoặc "close"
	BarrierID string `json:"barrier_id"`
	RequestID string `json:"request_id"`
}

// BarrierCommander gửi lệnh đóng/mở rào qua AWS IoT Core (MQTT).
// Implement service.BarrierActuator.
type BarrierCommander struct {
	iotDataClient *iotdataplane.Client
}

func NewBarrierCommander(client *iotdataplane.Client) *BarrierCommander {
	return &BarrierCommander{iotDataClient: client}
}

func (c *BarrierCommander) SendBarrierControlCommand(ctx context.Context, lotID int, barrierID string, action string) error {
	topic := fmt.Sprintf("parking_system/command/barriers/%d/%s", lotID, barrierID)
	requestID := uuid.NewString()

	payload := BarrierCommandPayload{
		Command:   action,
		BarrierID: barrierID,
		RequestID: requestID,
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("lỗi marshal payload lệnh rào chắn: %w", err)
	}

	log.Printf("BarrierCommander: Đang publish lệnh '%s' (ReqID: %s) tới topic %s", action, requestID, topic)
	_, err = c.iotDataClient.Publish(ctx, &iotdataplane.PublishInput{
		Topic:   aws.String(topic),
		Qos:     1,
		Payload: payloadBytes,
	})
	if err != nil {
		return fmt.Errorf("lỗi publish lệnh MQTT: %w", err)
	}

	log.Printf("Đã gửi lệnh '%s' (ReqID: %s) thành công tới rào chắn '%s' của bãi %d", action, requestID, barrierID, lotID)
	return nil
}
