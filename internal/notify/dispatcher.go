package notify

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"time"
)

var _ Notifier = (*Dispatcher)(nil)

// Dispatcher queues notifications and sends them from a fixed pool of workers.
type Dispatcher struct {
	log     *slog.Logger
	sender  Sender
	queue   chan Notification
	workers int
	timeout time.Duration
}

type Config struct {
	logger    *slog.Logger
	workers   int
	queueSize int
	timeout   time.Duration
}

type Option func(c *Config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}

func WithWorkers(workers int) Option {
	return func(c *Config) {
		if workers > 0 {
			c.workers = workers
		}
	}
}

func WithQueueSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.queueSize = size
		}
	}
}

// WithTimeout bounds a single Send call.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

func NewDispatcher(sender Sender, opts ...Option) *Dispatcher {
	cfg := &Config{
		logger:    slog.New(slog.NewJSONHandler(os.Stdout, nil)),
		workers:   2,
		queueSize: 128,
		timeout:   10 * time.Second,
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &Dispatcher{
		log:     cfg.logger.With(slog.String("module", "notify")),
		sender:  sender,
		queue:   make(chan Notification, cfg.queueSize),
		workers: cfg.workers,
		timeout: cfg.timeout,
	}
}

// Notify enqueues n. When the queue is full the notification is dropped and logged.
func (d *Dispatcher) Notify(n Notification) {
	select {
	case d.queue <- n:
	default:
		d.log.Warn("Notification queue is full, dropping notification",
			slog.String("kind", string(n.Kind)),
			slog.String("user_id", n.Recipient.UserID),
		)
	}
}

// Run starts the workers and blocks until ctx is done. Queued notifications are
// flushed before the sender is closed.
func (d *Dispatcher) Run(ctx context.Context) error {
	d.log.Info("Start notification dispatcher", slog.Int("workers", d.workers))

	wg := &sync.WaitGroup{}

	for w := 1; w <= d.workers; w++ {
		wg.Add(1)

		go d.worker(ctx, wg)
	}

	wg.Wait()

	d.drain()

	if err := d.sender.Close(); err != nil {
		d.log.Error("sender.Close()", slog.Any("error", err))
	}

	d.log.Info("Notification dispatcher stopped")

	return nil
}

func (d *Dispatcher) worker(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return

		case n := <-d.queue:
			d.send(context.WithoutCancel(ctx), n)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case n := <-d.queue:
			d.send(context.Background(), n)
		default:
			return
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, n Notification) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.sender.Send(ctx, n); err != nil {
		d.log.Error("sender.Send()",
			slog.Any("error", err),
			slog.String("kind", string(n.Kind)),
			slog.String("user_id", n.Recipient.UserID),
		)

		return
	}

	d.log.Debug("Notification sent",
		slog.String("kind", string(n.Kind)),
		slog.String("user_id", n.Recipient.UserID),
	)
}
