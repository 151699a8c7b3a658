package coordinator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jcmexdev/gamestore-orders/internal/coordinator/sagalog"
)

type memLog struct {
	mu      sync.Mutex
	entries []*sagalog.SagaLog
	err     error
}

func (m *memLog) Save(_ context.Context, e *sagalog.SagaLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.entries = append(m.entries, e)
	return nil
}

func (m *memLog) statuses() []sagalog.Status {
	var out []sagalog.Status
	for _, e := range m.entries {
		out = append(out, e.Status)
	}
	return out
}

type fakeStep struct {
	name   string
	policy Policy
	err    error
	ran    *[]string
}

func (f fakeStep) Name() string   { return f.name }
func (f fakeStep) Policy() Policy { return f.policy }
func (f fakeStep) Execute(context.Context) error {
	*f.ran = append(*f.ran, f.name)
	return f.err
}

func TestOrchestrator_AllStepsSucceed(t *testing.T) {
	var ran []string
	log := &memLog{}
	steps := []Step{
		fakeStep{name: "a", ran: &ran},
		fakeStep{name: "b", policy: BestEffort, ran: &ran},
	}

	require.NoError(t, NewOrchestrator("o-1", `{"x":1}`, steps, log).Start(context.Background()))

	assert.Equal(t, []string{"a", "b"}, ran)
	assert.Equal(t, []sagalog.Status{
		sagalog.StatusStarted, sagalog.StatusStepDone, sagalog.StatusStepDone, sagalog.StatusCompleted,
	}, log.statuses())
	assert.Equal(t, `{"x":1}`, log.entries[0].Payload)
	assert.Equal(t, "o-1", log.entries[3].SagaID)
}

func TestOrchestrator_FatalStopsForward(t *testing.T) {
	var ran []string
	log := &memLog{}
	boom := errors.New("boom")
	steps := []Step{
		fakeStep{name: "persist", ran: &ran},
		fakeStep{name: "stock", err: boom, ran: &ran},
		fakeStep{name: "license", policy: BestEffort, ran: &ran},
	}

	err := NewOrchestrator("o-1", "", steps, log).Start(context.Background())

	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "stock", stepErr.Step)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"persist", "stock"}, ran, "nothing runs after a fatal failure and nothing is undone")
	assert.Equal(t, []sagalog.Status{
		sagalog.StatusStarted, sagalog.StatusStepDone, sagalog.StatusFailed,
	}, log.statuses())
	assert.Contains(t, log.entries[2].ErrorMessages, "boom")
}

func TestOrchestrator_BestEffortFailureIsSkipped(t *testing.T) {
	var ran []string
	log := &memLog{}
	steps := []Step{
		fakeStep{name: "license", policy: BestEffort, err: errors.New("no keys service"), ran: &ran},
		fakeStep{name: "library", policy: BestEffort, ran: &ran},
	}

	require.NoError(t, NewOrchestrator("o-1", "", steps, log).Start(context.Background()))

	assert.Equal(t, []string{"license", "library"}, ran)
	assert.Equal(t, []sagalog.Status{
		sagalog.StatusStarted, sagalog.StatusStepSkipped, sagalog.StatusStepDone, sagalog.StatusCompleted,
	}, log.statuses())
	assert.Contains(t, log.entries[3].ErrorMessages, "no keys service")
}

func TestOrchestrator_LogFailuresAreIgnored(t *testing.T) {
	var ran []string
	steps := []Step{fakeStep{name: "a", ran: &ran}}

	assert.NoError(t, NewOrchestrator("o-1", "", steps, &memLog{err: errors.New("disk full")}).Start(context.Background()))
	assert.NoError(t, NewOrchestrator("o-2", "", steps, nil).Start(context.Background()))
	assert.Equal(t, []string{"a", "a"}, ran)
}
