package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Handler processes a claimed notification. A returned error is logged by the
// poller; the notification is removed either way, because refresh correctness
// is restored by the next triggering event rather than by redelivery.
type Handler func(ctx context.Context, n Notification) error

// Poller drains due notifications from the queue and fans them out to a pool
// of worker goroutines.
type Poller struct {
	queue      Queue
	handler    Handler
	interval   time.Duration
	batchSize  int
	maxWorkers int
	now        func() time.Time
	logger     *slog.Logger

	claimed chan Notification
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewPoller creates a poller claiming up to batchSize notifications every
// interval and handling them on maxWorkers goroutines. If maxWorkers is 0 or
// negative, it defaults to 1.
func NewPoller(queue Queue, handler Handler, interval time.Duration, batchSize, maxWorkers int, logger *slog.Logger) *Poller {
	if maxWorkers <= 0 {
		maxWorkers = 1
	}
	return &Poller{
		queue:      queue,
		handler:    handler,
		interval:   interval,
		batchSize:  batchSize,
		maxWorkers: maxWorkers,
		now:        time.Now,
		logger:     logger,
		claimed:    make(chan Notification, batchSize),
		done:       make(chan struct{}),
	}
}

// Start launches the claim loop and the worker pool.
func (p *Poller) Start(ctx context.Context) {
	for i := 0; i < p.maxWorkers; i++ {
		p.wg.Add(1)
		go p.startWorker(ctx, i)
	}

	p.wg.Add(1)
	go p.claimLoop(ctx)
}

// Stop halts claiming, lets in-flight notifications finish, and waits for all
// workers to exit.
func (p *Poller) Stop() {
	p.logger.Info("stopping notification poller and waiting for in-flight jobs")
	close(p.done)
	p.wg.Wait()
	p.logger.Info("notification poller stopped")
}

func (p *Poller) claimLoop(ctx context.Context) {
	defer p.wg.Done()
	defer close(p.claimed)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.claimOnce(ctx)
		}
	}
}

func (p *Poller) claimOnce(ctx context.Context) {
	ready, err := p.queue.ClaimReady(ctx, p.now(), p.batchSize)
	if err != nil {
		p.logger.Error("failed to claim ready notifications", "error", err)
		return
	}

	for _, n := range ready {
		select {
		case p.claimed <- n:
		case <-p.done:
			return
		}
	}
}

func (p *Poller) startWorker(ctx context.Context, workerID int) {
	defer p.wg.Done()
	p.logger.Info("starting notification worker", "id", workerID)

	for n := range p.claimed {
		p.process(ctx, workerID, n)
	}

	p.logger.Info("shutting down notification worker", "id", workerID)
}

func (p *Poller) process(ctx context.Context, workerID int, n Notification) {
	p.logger.Debug("worker handling notification",
		"worker_id", workerID,
		"record_id", n.RecordID,
		"account_id", n.Job.AccountID,
	)

	if err := p.handler(ctx, n); err != nil {
		p.logger.Error("notification handler failed",
			"record_id", n.RecordID,
			"account_id", n.Job.AccountID,
			"error", err,
		)
	}

	if err := p.queue.Done(ctx, n.RecordID); err != nil {
		p.logger.Error("failed to remove handled notification",
			"record_id", n.RecordID,
			"error", err,
		)
	}
}
