package transport

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kodiakio/realtime-go/errors"
)

// State は、コネクションの状態です。
type State uint8

const (
	// StateOpening は、接続処理中の状態です。
	StateOpening State = iota
	// StateOpen は、送受信が可能な状態です。
	StateOpen
	// StateError は、異常終了した状態です。
	StateError
	// StateClosed は、正常終了した状態です。
	StateClosed
	// StateDropped は、所有者によって破棄された状態です。
	StateDropped
)

func (s State) String() string {
	switch s {
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateError:
		return "error"
	case StateClosed:
		return "closed"
	case StateDropped:
		return "dropped"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// IsTerminal は、終端状態かどうかを返します。
func (s State) IsTerminal() bool {
	return s == StateError || s == StateClosed || s == StateDropped
}

// Observer は、コネクションの終端通知を受け取るインターフェースです。
type Observer interface {
	// Closed は、コネクションが終端状態に遷移した時に 1 度だけ呼び出されます。
	Closed(State)
}

// ObserverFunc は、関数を Observer として扱うためのアダプタです。
type ObserverFunc func(State)

// Closed は f(s) を呼び出します。
func (f ObserverFunc) Closed(s State) {
	f(s)
}

// StateMachine は、コネクションの状態を管理します。
//
// StateMachine は並行に使用できます。
type StateMachine struct {
	mu       sync.Mutex
	current  State
	observer Observer
	updated  atomic.Bool
}

// NewStateMachine は、 StateMachine を生成します。
//
// initial には StateOpening か StateOpen を指定します。observer は nil でも構いません。
func NewStateMachine(initial State, observer Observer) *StateMachine {
	if initial != StateOpening && initial != StateOpen {
		panic(fmt.Sprintf("invalid initial state %v", initial))
	}
	return &StateMachine{
		current:  initial,
		observer: observer,
	}
}

// Current は、現在の状態を返します。
func (m *StateMachine) Current() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Open は、 StateOpening から StateOpen に遷移します。
//
// 遷移した場合は `true` を返します。
func (m *StateMachine) Open() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.current != StateOpening {
		return false
	}
	m.current = StateOpen
	m.updated.Store(true)
	return true
}

// Finalize は、終端状態へ遷移します。
//
// 既に終端状態の場合は何もせず `false` を返します。
// 遷移した場合は Observer へ通知した後に `true` を返します。
// target に終端状態以外を指定した場合は panic します。
func (m *StateMachine) Finalize(target State) bool {
	if !target.IsTerminal() {
		panic(fmt.Sprintf("finalize to non-terminal state %v", target))
	}
	m.mu.Lock()
	if m.current.IsTerminal() {
		m.mu.Unlock()
		return false
	}
	m.current = target
	m.updated.Store(true)
	observer := m.observer
	m.mu.Unlock()

	if observer != nil {
		observer.Closed(target)
	}
	return true
}

// TakeUpdated は、前回の呼び出し以降に状態が遷移したかどうかを返し、フラグをクリアします。
func (m *StateMachine) TakeUpdated() bool {
	return m.updated.Swap(false)
}

// StateForError は、エラーによって終了する場合の終端状態を返します。
//
// 伸長に失敗した場合のみ StateClosed 、それ以外は StateError です。
func StateForError(err error) State {
	if errors.Is(err, errors.ErrDecodeFailure) {
		return StateClosed
	}
	return StateError
}
