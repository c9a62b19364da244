package kafka

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Handler must return nil only when processing succeeded and the offset may
// be committed; a non-nil error leaves the message for redelivery.
type Handler func(ctx context.Context, m kafka.Message) error

type Consumer struct {
	r       *kafka.Reader
	log     *zap.Logger
	workers int
	backoff time.Duration

	// commit defaults to the reader's CommitMessages; tests swap it out.
	commit func(ctx context.Context, msgs ...kafka.Message) error
}

func NewConsumer(brokers []string, group, topic string, workers int, log *zap.Logger) *Consumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		GroupID:        group,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // manual commit
	})
	if workers <= 0 {
		workers = 1
	}
	return &Consumer{r: r, log: log, workers: workers, backoff: 200 * time.Millisecond}
}

// Start reads until the context is cancelled. Messages are dispatched to a
// worker by partition, so offsets within a partition are processed and
// committed in order: a failing message is retried in place and nothing
// behind it on the same partition can commit past it.
func (c *Consumer) Start(ctx context.Context, h Handler) error {
	defer c.r.Close()
	if c.commit == nil {
		c.commit = c.r.CommitMessages
	}

	jobs := make([]chan kafka.Message, c.workers)
	for i := range jobs {
		jobs[i] = make(chan kafka.Message, 256)
		go c.work(ctx, jobs[i], h)
	}

	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			for _, ch := range jobs {
				close(ch)
			}
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		select {
		case jobs[m.Partition%c.workers] <- m:
		case <-ctx.Done():
			for _, ch := range jobs {
				close(ch)
			}
			return nil
		}
	}
}

// work processes its partition slice serially, retrying each message with a
// fixed backoff until the handler accepts it or the context ends.
func (c *Consumer) work(ctx context.Context, jobs <-chan kafka.Message, h Handler) {
	for m := range jobs {
		for {
			err := h(ctx, m)
			if err == nil {
				err = c.commit(ctx, m)
			}
			if err == nil {
				break
			}
			c.log.Warn("message processing failed, retrying",
				zap.String("topic", m.Topic),
				zap.Int("partition", m.Partition),
				zap.Int64("offset", m.Offset),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
		}
	}
}
