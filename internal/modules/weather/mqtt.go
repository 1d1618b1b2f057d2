package weather

import (
	"context"
	"time"

	"sensorhub-server/internal/modules/weather/service"
	"sensorhub-server/internal/mqtt"
)

const mqttInsertTimeout = 5 * time.Second

// registerMQTTHandler feeds MQTT payloads through the same parse, validate and insert path as HTTP submissions.
func registerMQTTHandler(subscriber mqtt.MQTTSubscriber, svc *service.Service) {
	subscriber.SetMessageHandler(func(topic string, payload []byte) error {
		ctx, cancel := context.WithTimeout(context.Background(), mqttInsertTimeout)
		defer cancel()
		_, err := svc.SubmitPayload(ctx, service.SourceMQTT, payload)
		return err
	})
}
