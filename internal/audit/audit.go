// Package audit publishes download-registration events to Kafka so the
// reporting side can count exports without touching the serving path.
package audit

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
)

type Event struct {
	Format   string    `json:"format"`
	DateFrom string    `json:"date_from"`
	DateTo   string    `json:"date_to"`
	Session  string    `json:"session,omitempty"`
	TS       time.Time `json:"ts"`
}

// Publisher hands export events to the reporting topic. The serving
// path never blocks on Kafka: events queue into a buffered channel and
// are dropped if the queue is full.
type Publisher interface {
	Publish(ev Event)
	Close() error
}

type kafkaPublisher struct {
	topic   string
	events  chan Event
	prod    sarama.AsyncProducer
	stopped chan struct{}
}

func NewPublisher(brokers []string, topic string, queueSize int) (Publisher, error) {
	if queueSize <= 0 {
		queueSize = 1024
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_5_0_0
	cfg.Producer.Return.Errors = true
	cfg.Producer.Return.Successes = false

	prod, err := sarama.NewAsyncProducer(brokers, cfg)
	if err != nil {
		return nil, fmt.Errorf("audit: create async producer: %w", err)
	}

	p := &kafkaPublisher{
		topic:   topic,
		events:  make(chan Event, queueSize),
		prod:    prod,
		stopped: make(chan struct{}),
	}

	go func() {
		defer close(p.stopped)
		for ev := range p.events {
			b, err := json.Marshal(ev)
			if err != nil {
				log.Printf("audit: marshal error: %v", err)
				continue
			}
			p.prod.Input() <- &sarama.ProducerMessage{
				Topic: p.topic,
				Value: sarama.ByteEncoder(b),
			}
		}
	}()

	go func() {
		for err := range p.prod.Errors() {
			if err != nil {
				log.Printf("audit: producer error: %v", err)
			}
		}
	}()

	return p, nil
}

func (p *kafkaPublisher) Publish(ev Event) {
	select {
	case p.events <- ev:
	default:
		// queue full, drop rather than stall the download
	}
}

func (p *kafkaPublisher) Close() error {
	close(p.events)
	<-p.stopped
	if err := p.prod.Close(); err != nil {
		return fmt.Errorf("audit: close producer: %w", err)
	}
	return nil
}

// Nop discards events. Used when auditing is disabled.
type Nop struct{}

func (Nop) Publish(Event) {}
func (Nop) Close() error  { return nil }
