package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/expenseflow/approval-engine/internal/domain/workflow"
)

// Transition is one workflow state change handed to notifiers.
type Transition struct {
	WorkflowID string
	From       workflow.State
	To         workflow.State
	Trigger    workflow.Trigger
}

// Notifier receives workflow transitions. Implementations are best-effort:
// errors are logged and dropped, never propagated back into the engine.
type Notifier interface {
	OnTransition(ctx context.Context, t Transition) error
	Name() string
}

// Publisher is the engine-facing side of the dispatcher.
type Publisher interface {
	Publish(t Transition)
}

// LogNotifier writes transitions to the structured log. It is the default
// notifier when no external channel is configured.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a logging notifier
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Name() string { return "log" }

func (n *LogNotifier) OnTransition(_ context.Context, t Transition) error {
	n.logger.Info("Workflow transition",
		zap.String("workflow_id", t.WorkflowID),
		zap.String("from", t.From.String()),
		zap.String("to", t.To.String()),
		zap.String("trigger", t.Trigger.String()))
	return nil
}

// Dispatcher fans workflow transitions out to registered notifiers from a
// background goroutine. Publish never blocks the engine: when the buffer is
// full the transition is dropped and counted, which is acceptable for a
// fire-and-forget hook.
type Dispatcher struct {
	notifiers []Notifier
	queue     chan Transition
	timeout   time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	dropped int64
	stop    chan struct{}
	done    chan struct{}
	started bool
}

// NewDispatcher creates a dispatcher with the given queue depth.
func NewDispatcher(buffer int, timeout time.Duration, logger *zap.Logger, notifiers ...Notifier) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		notifiers: notifiers,
		queue:     make(chan Transition, buffer),
		timeout:   timeout,
		logger:    logger,
	}
}

// Name implements the worker contract
func (d *Dispatcher) Name() string { return "notification-dispatcher" }

// Start launches the dispatch loop. The control channels are recreated on
// every call, so a stopped dispatcher can be started again.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return nil
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	d.started = true
	stop, done := d.stop, d.done
	d.mu.Unlock()

	go d.loop(ctx, stop, done)
	return nil
}

// Stop drains nothing and terminates the loop; pending transitions are lost,
// consistent with best-effort delivery.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	stop, done := d.stop, d.done
	d.mu.Unlock()

	close(stop)
	<-done
}

// Publish enqueues a transition without blocking.
func (d *Dispatcher) Publish(t Transition) {
	select {
	case d.queue <- t:
	default:
		d.mu.Lock()
		d.dropped++
		dropped := d.dropped
		d.mu.Unlock()
		d.logger.Warn("Notification queue full, transition dropped",
			zap.String("workflow_id", t.WorkflowID),
			zap.Int64("dropped_total", dropped))
	}
}

// Dropped returns how many transitions were discarded due to backpressure.
func (d *Dispatcher) Dropped() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

func (d *Dispatcher) loop(ctx context.Context, stop, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case t := <-d.queue:
			d.deliver(t)
		}
	}
}

func (d *Dispatcher) deliver(t Transition) {
	for _, n := range d.notifiers {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		if err := n.OnTransition(ctx, t); err != nil {
			d.logger.Warn("Notifier failed",
				zap.String("notifier", n.Name()),
				zap.String("workflow_id", t.WorkflowID),
				zap.Error(err))
		}
		cancel()
	}
}
