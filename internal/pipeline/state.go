package pipeline

// State 是单个批次在驱动器中的状态，一次执行后终止。
type State int

const (
	StateIdle State = iota
	StateBalanceLoaded
	StateValidated
	StateRiskGated
	StateDispatched
	StateReported
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBalanceLoaded:
		return "balance_loaded"
	case StateValidated:
		return "validated"
	case StateRiskGated:
		return "risk_gated"
	case StateDispatched:
		return "dispatched"
	case StateReported:
		return "reported"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal 报告状态是否终止。
func (s State) Terminal() bool {
	return s == StateReported || s == StateFailed
}

var transitions = map[State][]State{
	StateIdle:          {StateBalanceLoaded, StateFailed},
	StateBalanceLoaded: {StateValidated, StateFailed},
	StateValidated:     {StateRiskGated, StateReported, StateFailed},
	StateRiskGated:     {StateDispatched, StateReported, StateFailed},
	StateDispatched:    {StateReported, StateFailed},
}

func canTransition(from, to State) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StageError 记录失败发生时所处的状态。
type StageError struct {
	Stage State
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Stage.String()
	}
	return e.Stage.String() + ": " + e.Err.Error()
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
