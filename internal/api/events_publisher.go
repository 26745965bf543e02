package api

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// EventsPublisher рассылает события заказов: в Kafka для внешних
// потребителей и в WebSocket хаб для экранов кухни.
// Вся доставка fire-and-forget, сбой не влияет на основную операцию.
type EventsPublisher struct {
	writer *kafka.Writer
	hub    *Hub
}

// NewEventsPublisher создает издателя событий.
// Если brokers пуст, Kafka отключается и остается только WebSocket.
func NewEventsPublisher(brokers, topic string, hub *Hub) *EventsPublisher {
	p := &EventsPublisher{hub: hub}

	brokerList := ParseKafkaBrokers(brokers)
	if len(brokerList) > 0 {
		p.writer = &kafka.Writer{
			Addr:         kafka.TCP(brokerList...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			Async:        true, // Не блокируем обработку заказа на отправке
			BatchTimeout: 50 * time.Millisecond,
			Completion: func(messages []kafka.Message, err error) {
				if err != nil {
					log.Printf("⚠️ Kafka: не удалось отправить %d событий: %v", len(messages), err)
				}
			},
		}
		log.Printf("📡 Kafka издатель событий подключен (topic: %s, brokers: %v)", topic, brokerList)
	} else {
		log.Println("⚠️ Kafka брокеры не заданы, события идут только в WebSocket")
	}

	return p
}

// PublishOrderEvent отправляет событие заказа в канал доставки.
// С Kafka событие идет только в топик, локальным экранам его доставит
// зеркальный потребитель. Без Kafka хаб получает событие напрямую.
func (p *EventsPublisher) PublishOrderEvent(payload map[string]interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("⚠️ Не удалось сериализовать событие: %v", err)
		return
	}

	if p.writer == nil {
		if p.hub != nil {
			p.hub.BroadcastMessage(data)
		}
		return
	}

	key := ""
	if orderID, ok := payload["order_id"].(string); ok {
		key = orderID
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
	}); err != nil {
		log.Printf("⚠️ Kafka: ошибка отправки события: %v", err)
	}
}

// Close закрывает Kafka writer
func (p *EventsPublisher) Close() error {
	if p.writer != nil {
		return p.writer.Close()
	}
	return nil
}

// ParseKafkaBrokers парсит строку с брокерами (может быть через запятую)
func ParseKafkaBrokers(brokers string) []string {
	if brokers == "" {
		return []string{}
	}
	brokerList := strings.Split(strings.ReplaceAll(brokers, " ", ""), ",")
	var result []string
	for _, broker := range brokerList {
		if broker != "" {
			result = append(result, broker)
		}
	}
	return result
}
