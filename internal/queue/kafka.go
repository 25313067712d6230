package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"sync"

	"github.com/IBM/sarama"
)

// KafkaQueue publishes JSON messages to Kafka topics and consumes them with
// one consumer group per subscribed topic. Failed messages are re-produced
// with an incremented x-retry-count header until MaxRetries is reached.
type KafkaQueue struct {
	producer sarama.SyncProducer
	newGroup func(topic string) (sarama.ConsumerGroup, error)

	ctx    context.Context
	cancel context.CancelFunc
	mu     sync.Mutex
	groups []sarama.ConsumerGroup
	wg     sync.WaitGroup

	MaxRetries int
}

func kafkaConfig() *sarama.Config {
	cfg := sarama.NewConfig()
	cfg.Producer.Return.Successes = true
	cfg.Producer.Idempotent = true
	cfg.Net.MaxOpenRequests = 1
	cfg.Producer.RequiredAcks = sarama.WaitForAll
	cfg.Producer.Retry.Max = 5
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	return cfg
}

// DialKafka connects a producer to brokers. Consumer groups are named
// {groupID}-{topic} and created on Subscribe.
func DialKafka(brokers []string, groupID string) (*KafkaQueue, error) {
	cfg := kafkaConfig()
	producer, err := sarama.NewSyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Kafka: %w", err)
	}
	return newKafkaQueue(producer, func(topic string) (sarama.ConsumerGroup, error) {
		return sarama.NewConsumerGroup(brokers, groupID+"-"+topic, cfg)
	}), nil
}

func newKafkaQueue(producer sarama.SyncProducer, newGroup func(topic string) (sarama.ConsumerGroup, error)) *KafkaQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &KafkaQueue{
		producer:   producer,
		newGroup:   newGroup,
		ctx:        ctx,
		cancel:     cancel,
		MaxRetries: 3,
	}
}

func (q *KafkaQueue) Publish(topic string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s message: %w", topic, err)
	}
	return q.publish(topic, body, 0)
}

func (q *KafkaQueue) publish(topic string, body []byte, retries int) error {
	_, _, err := q.producer.SendMessage(&sarama.ProducerMessage{
		Topic: topic,
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte(retryHeader), Value: []byte(strconv.Itoa(retries))},
		},
	})
	if err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}

// Subscribe joins the topic's consumer group in the background. The
// handler receives the message value as json.RawMessage.
func (q *KafkaQueue) Subscribe(topic string, handler func(payload any) error) error {
	group, err := q.newGroup(topic)
	if err != nil {
		return fmt.Errorf("failed to register consumer on %s: %w", topic, err)
	}
	q.mu.Lock()
	q.groups = append(q.groups, group)
	q.mu.Unlock()

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		h := &kafkaHandler{queue: q, handler: handler}
		for {
			// Consume returns on every rebalance; loop until closed.
			err := group.Consume(q.ctx, []string{topic}, h)
			if errors.Is(err, sarama.ErrClosedConsumerGroup) || q.ctx.Err() != nil {
				return
			}
			if err != nil {
				log.Printf("⚠️ Kafka consumer on %s: %v", topic, err)
			}
		}
	}()
	return nil
}

func (q *KafkaQueue) handle(msg *sarama.ConsumerMessage, handler func(payload any) error) {
	err := handler(json.RawMessage(msg.Value))
	if err == nil {
		return
	}

	retries := kafkaRetryCount(msg.Headers)
	if retries >= q.MaxRetries {
		log.Printf("Job on %s permanently failed after %d attempts: %v", msg.Topic, q.MaxRetries, err)
		return
	}
	log.Printf("Job on %s failed (attempt %d/%d): %v", msg.Topic, retries+1, q.MaxRetries, err)
	if perr := q.publish(msg.Topic, msg.Value, retries+1); perr != nil {
		log.Printf("⚠️ Failed to requeue %s message: %v", msg.Topic, perr)
	}
}

func kafkaRetryCount(headers []*sarama.RecordHeader) int {
	for _, h := range headers {
		if h != nil && string(h.Key) == retryHeader {
			n, _ := strconv.Atoi(string(h.Value))
			return n
		}
	}
	return 0
}

func (q *KafkaQueue) Close() error {
	q.cancel()

	q.mu.Lock()
	groups := q.groups
	q.groups = nil
	q.mu.Unlock()

	var errs []error
	for _, g := range groups {
		errs = append(errs, g.Close())
	}
	q.wg.Wait()
	errs = append(errs, q.producer.Close())
	return errors.Join(errs...)
}

type kafkaHandler struct {
	queue   *KafkaQueue
	handler func(payload any) error
}

func (h *kafkaHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *kafkaHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *kafkaHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			h.queue.handle(msg, h.handler)
			sess.MarkMessage(msg, "")
		case <-sess.Context().Done():
			return nil
		}
	}
}
