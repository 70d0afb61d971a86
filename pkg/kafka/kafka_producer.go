package kafka

import (
	"context"
	"log"

	gojson "github.com/goccy/go-json"
	"github.com/segmentio/kafka-go"
)

// Kafka 告警事件生产者
// 定义接口，方便测试和替换
type ProducerService interface {
	Produce(ctx context.Context, key string, payload interface{}) error
	Close()
}

type kafkaProducer struct {
	alertWriter *kafka.Writer
}

func NewKafkaProducer(brokerURL, topic string) ProducerService {
	alertWriter := &kafka.Writer{
		Addr:     kafka.TCP(brokerURL),
		Topic:    topic,
		Balancer: &kafka.LeastBytes{}, // 保证写入负载均衡
	}

	return &kafkaProducer{
		alertWriter: alertWriter,
	}
}

// Produce 序列化告警事件并写入 Kafka
// key 使用 symbol，确保同一币种的告警进入同一个 Partition（有序性/关联性）
func (p *kafkaProducer) Produce(ctx context.Context, key string, payload interface{}) error {
	data, err := gojson.Marshal(payload)
	if err != nil {
		return err
	}

	return p.alertWriter.WriteMessages(ctx, kafka.Message{
		Key:   []byte(key),
		Value: data,
	})
}

func (p *kafkaProducer) Close() {
	if err := p.alertWriter.Close(); err != nil {
		log.Printf("Error closing alert writer: %v", err)
	}
}
