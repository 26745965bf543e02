package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sync/atomic"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaMirrorConsumer читает события заказов из Kafka и ретранслирует
// их в локальный WebSocket хаб. Нужен в многоэкземплярном развертывании:
// реплика, обработавшая запрос, публикует событие в общий топик, и каждая
// реплика доставляет его своим экранам кухни. Группа у каждой реплики
// своя, поэтому каждая читает весь поток.
type KafkaMirrorConsumer struct {
	topic     string
	groupID   string
	reader    *kafka.Reader
	hub       *Hub
	ctx       context.Context
	cancel    context.CancelFunc
	processed int64
	lastLog   int64
}

// NewKafkaMirrorConsumer создает потребителя событий для зеркалирования.
// Возвращает nil, если брокеры не заданы.
func NewKafkaMirrorConsumer(brokers, topic string, hub *Hub) *KafkaMirrorConsumer {
	brokerList := ParseKafkaBrokers(brokers)
	if len(brokerList) == 0 {
		return nil
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = fmt.Sprintf("pid-%d", os.Getpid())
	}
	groupID := "queue-screens-" + hostname

	ctx, cancel := context.WithCancel(context.Background())

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     brokerList,
		Topic:       topic,
		GroupID:     groupID,
		StartOffset: kafka.LastOffset, // Экранам нужны только свежие события
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     1 * time.Second,
	})

	return &KafkaMirrorConsumer{
		topic:   topic,
		groupID: groupID,
		reader:  reader,
		hub:     hub,
		ctx:     ctx,
		cancel:  cancel,
		lastLog: time.Now().Unix(),
	}
}

// Start запускает чтение из Kafka и ретрансляцию в WebSocket
func (kc *KafkaMirrorConsumer) Start() {
	log.Printf("📡 Kafka зеркало событий запущено: topic=%s, groupID=%s", kc.topic, kc.groupID)

	go func() {
		for {
			select {
			case <-kc.ctx.Done():
				return
			default:
				msg, err := kc.reader.ReadMessage(kc.ctx)
				if err != nil {
					if err == context.Canceled {
						return
					}
					log.Printf("⚠️ Kafka зеркало: ошибка чтения: %v", err)
					time.Sleep(1 * time.Second)
					continue
				}

				// Битые сообщения в топике не должны ронять экраны
				if !json.Valid(msg.Value) {
					continue
				}
				kc.hub.BroadcastMessage(msg.Value)

				processed := atomic.AddInt64(&kc.processed, 1)
				now := time.Now().Unix()
				if now-atomic.LoadInt64(&kc.lastLog) >= 5 {
					atomic.StoreInt64(&kc.lastLog, now)
					log.Printf("📊 Kafka зеркало: ретранслировано %d событий", processed)
				}
			}
		}
	}()
}

// Stop останавливает потребителя
func (kc *KafkaMirrorConsumer) Stop() {
	kc.cancel()
	if kc.reader != nil {
		kc.reader.Close()
	}
	log.Println("🛑 Kafka зеркало событий остановлено")
}
