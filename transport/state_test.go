package transport_test

import (
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kodiakio/realtime-go/errors"
	. "github.com/kodiakio/realtime-go/transport"
)

type recordObserver struct {
	mu     sync.Mutex
	states []State
}

func (o *recordObserver) Closed(s State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states = append(o.states, s)
}

func (o *recordObserver) got() []State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]State(nil), o.states...)
}

func TestStateMachine_Open(t *testing.T) {
	m := NewStateMachine(StateOpening, nil)
	assert.False(t, m.TakeUpdated())
	assert.True(t, m.Open())
	assert.Equal(t, StateOpen, m.Current())
	assert.True(t, m.TakeUpdated())
	assert.False(t, m.TakeUpdated())

	assert.False(t, m.Open())
	assert.False(t, m.TakeUpdated())
}

func TestStateMachine_Finalize(t *testing.T) {
	tests := []struct {
		name    string
		initial State
		target  State
	}{
		{name: "opening to error", initial: StateOpening, target: StateError},
		{name: "opening to closed", initial: StateOpening, target: StateClosed},
		{name: "open to dropped", initial: StateOpen, target: StateDropped},
		{name: "open to closed", initial: StateOpen, target: StateClosed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &recordObserver{}
			m := NewStateMachine(tt.initial, o)

			require.True(t, m.Finalize(tt.target))
			assert.Equal(t, tt.target, m.Current())
			assert.True(t, m.TakeUpdated())

			for _, s := range []State{StateError, StateClosed, StateDropped} {
				assert.False(t, m.Finalize(s))
			}
			assert.False(t, m.Open())
			assert.Equal(t, tt.target, m.Current())
			assert.False(t, m.TakeUpdated())
			assert.Equal(t, []State{tt.target}, o.got())
		})
	}
}

func TestStateMachine_FinalizeIdempotentRandomSequences(t *testing.T) {
	terminal := []State{StateError, StateClosed, StateDropped}
	rnd := rand.New(rand.NewSource(1))
	for i := 0; i < 200; i++ {
		o := &recordObserver{}
		m := NewStateMachine(StateOpening, o)
		var first State
		for j := 0; j < 1+rnd.Intn(8); j++ {
			s := terminal[rnd.Intn(len(terminal))]
			if j == 0 {
				first = s
			}
			m.Finalize(s)
		}
		assert.Equal(t, first, m.Current())
		assert.Equal(t, []State{first}, o.got())
	}
}

func TestStateMachine_FinalizeConcurrent(t *testing.T) {
	o := &recordObserver{}
	m := NewStateMachine(StateOpen, o)

	var wg sync.WaitGroup
	var won sync.Map
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := []State{StateError, StateClosed, StateDropped}[i%3]
			if m.Finalize(s) {
				won.Store(i, s)
			}
		}(i)
	}
	wg.Wait()

	got := o.got()
	require.Len(t, got, 1)
	assert.Equal(t, got[0], m.Current())
	count := 0
	won.Range(func(_, _ any) bool { count++; return true })
	assert.Equal(t, 1, count)
}

func TestStateMachine_ObserverMayReadState(t *testing.T) {
	var m *StateMachine
	var seen State
	m = NewStateMachine(StateOpen, ObserverFunc(func(State) {
		seen = m.Current()
	}))
	m.Finalize(StateClosed)
	assert.Equal(t, StateClosed, seen)
}

func TestStateMachine_Panics(t *testing.T) {
	assert.Panics(t, func() { NewStateMachine(StateClosed, nil) })
	assert.Panics(t, func() { NewStateMachine(StateOpen, nil).Finalize(StateOpen) })
}

func TestStateForError(t *testing.T) {
	assert.Equal(t, StateClosed, StateForError(errors.Errorf("inflate: %w", errors.ErrDecodeFailure)))
	assert.Equal(t, StateError, StateForError(errors.ErrUnresponsive))
	assert.Equal(t, StateError, StateForError(errors.ErrProtocolViolation))
	assert.Equal(t, StateError, StateForError(errors.ErrUnexpectedClosure))
	assert.Equal(t, StateError, StateForError(errors.ErrTransportInternal))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "opening", StateOpening.String())
	assert.Equal(t, "dropped", StateDropped.String())
	assert.Equal(t, "State(9)", State(9).String())
	assert.False(t, StateOpen.IsTerminal())
	assert.True(t, StateError.IsTerminal())
}
