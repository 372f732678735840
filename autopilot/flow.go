package autopilot

import "sync"

// FlowState 答题流程状态
type FlowState int

const (
	StateIdle FlowState = iota
	StateAwaitingQuestion
	StateDetecting
	StateExecuting
	StateAwaitingValidation
	StateAwaitingContinue
)

func (s FlowState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingQuestion:
		return "awaiting_question"
	case StateDetecting:
		return "detecting"
	case StateExecuting:
		return "executing"
	case StateAwaitingValidation:
		return "awaiting_validation"
	case StateAwaitingContinue:
		return "awaiting_continue"
	default:
		return "unknown"
	}
}

// flow 状态机本身即是处理锁：inFlight 为 true 时只有持锁者可以推进状态，
// 其它触发（数据推送、页面变化、定时器）一律放弃
type flow struct {
	mu       sync.Mutex
	state    FlowState
	inFlight bool
}

// acquire 未被占用时占用并进入 next
func (f *flow) acquire(next FlowState) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight {
		return false
	}
	f.inFlight = true
	f.state = next
	return true
}

// advance 持锁期间推进状态
func (f *flow) advance(next FlowState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight {
		f.state = next
	}
}

func (f *flow) release(next FlowState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight = false
	f.state = next
}

// settle 空闲时切换状态，占用中返回 false
func (f *flow) settle(next FlowState) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight {
		return false
	}
	f.state = next
	return true
}

// settleFrom 空闲且处于 from 之一时切换到 next
func (f *flow) settleFrom(next FlowState, from ...FlowState) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight {
		return false
	}
	for _, s := range from {
		if f.state == s {
			f.state = next
			return true
		}
	}
	return false
}

func (f *flow) snapshot() (FlowState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state, f.inFlight
}
