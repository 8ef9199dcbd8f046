package xfyun

import "fmt"

// State 评测会话状态
type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateAwaitingResult
	StateCompleted
	StateFailed
	StateCancelled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateAwaitingResult:
		return "awaiting_result"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	case StateCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal 是否为终止状态
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

var validTransitions = map[State][]State{
	StateIdle:           {StateConnecting, StateCancelled},
	StateConnecting:     {StateStreaming, StateFailed, StateCancelled},
	StateStreaming:      {StateAwaitingResult, StateCompleted, StateFailed, StateCancelled},
	StateAwaitingResult: {StateCompleted, StateFailed, StateCancelled},
}

func transitionValid(from, to State) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// StateChange 状态变化
type StateChange struct {
	From State
	To   State
}
