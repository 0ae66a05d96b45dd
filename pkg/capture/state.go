package capture

// State is a step of the capture state machine.
type State int

const (
	Idle State = iota
	InvokeRender
	InitRender
	PreRender
	PostRender
	CompleteRender
	CancelRender
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case InvokeRender:
		return "INVOKE_RENDER"
	case InitRender:
		return "INIT_RENDER"
	case PreRender:
		return "PRE_RENDER"
	case PostRender:
		return "POST_RENDER"
	case CompleteRender:
		return "COMPLETE_RENDER"
	case CancelRender:
		return "CANCEL_RENDER"
	}
	return "UNKNOWN"
}

// Status is the outcome of a session.
type Status int

const (
	Running Status = iota
	Finished
	Cancelled
	Failed
)

func (s Status) String() string {
	switch s {
	case Running:
		return "running"
	case Finished:
		return "finished"
	case Cancelled:
		return "cancelled"
	case Failed:
		return "failed"
	}
	return "unknown"
}
