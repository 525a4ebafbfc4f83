package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/expenseflow/approval-engine/internal/domain/workflow"
)

// recordingNotifier captures delivered transitions.
type recordingNotifier struct {
	mu       sync.Mutex
	received []Transition
	fail     bool
}

func (n *recordingNotifier) Name() string { return "recording" }

func (n *recordingNotifier) OnTransition(_ context.Context, t Transition) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return errors.New("delivery refused")
	}
	n.received = append(n.received, t)
	return nil
}

func (n *recordingNotifier) all() []Transition {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Transition, len(n.received))
	copy(out, n.received)
	return out
}

func approvedTransition(workflowID string) Transition {
	return Transition{
		WorkflowID: workflowID,
		From:       workflow.StatePending,
		To:         workflow.StateApproved,
		Trigger:    workflow.TriggerComplete,
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestDispatcher_DeliversToAllNotifiers(t *testing.T) {
	first := &recordingNotifier{}
	second := &recordingNotifier{}
	d := NewDispatcher(8, time.Second, zap.NewNop(), first, second)

	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	d.Publish(approvedTransition("wf-1"))
	d.Publish(approvedTransition("wf-2"))

	waitFor(t, func() bool { return len(first.all()) == 2 && len(second.all()) == 2 })

	got := first.all()
	assert.Equal(t, "wf-1", got[0].WorkflowID)
	assert.Equal(t, workflow.StateApproved, got[0].To)
}

func TestDispatcher_FailingNotifierDoesNotBlockOthers(t *testing.T) {
	failing := &recordingNotifier{fail: true}
	healthy := &recordingNotifier{}
	d := NewDispatcher(8, time.Second, zap.NewNop(), failing, healthy)

	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	d.Publish(approvedTransition("wf-1"))

	waitFor(t, func() bool { return len(healthy.all()) == 1 })
}

func TestDispatcher_DropsWhenQueueFull(t *testing.T) {
	// Never started, so the queue only drains into the buffer
	d := NewDispatcher(2, time.Second, zap.NewNop(), &recordingNotifier{})

	for i := 0; i < 5; i++ {
		d.Publish(approvedTransition("wf-1"))
	}

	assert.Equal(t, int64(3), d.Dropped())
}

func TestDispatcher_StopTerminatesLoop(t *testing.T) {
	n := &recordingNotifier{}
	d := NewDispatcher(8, time.Second, zap.NewNop(), n)

	require.NoError(t, d.Start(context.Background()))
	d.Publish(approvedTransition("wf-1"))
	waitFor(t, func() bool { return len(n.all()) == 1 })

	d.Stop()

	// Publishing after stop only fills the buffer; nothing more is delivered
	d.Publish(approvedTransition("wf-2"))
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, n.all(), 1)
}

func TestDispatcher_RestartDeliversAgain(t *testing.T) {
	n := &recordingNotifier{}
	d := NewDispatcher(8, time.Second, zap.NewNop(), n)

	require.NoError(t, d.Start(context.Background()))
	d.Publish(approvedTransition("wf-1"))
	waitFor(t, func() bool { return len(n.all()) == 1 })
	d.Stop()

	require.NoError(t, d.Start(context.Background()))
	defer d.Stop()

	d.Publish(approvedTransition("wf-2"))
	waitFor(t, func() bool { return len(n.all()) == 2 })
	assert.Equal(t, "wf-2", n.all()[1].WorkflowID)
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(zap.NewNop())
	assert.Equal(t, "log", n.Name())
	assert.NoError(t, n.OnTransition(context.Background(), approvedTransition("wf-1")))
}
