package domain

// SignalType restricts how a policy may act on a signal.
type SignalType string

// Signal type constants.
const (
	SignalTypeEntry SignalType = "ENTRY"
	SignalTypeExit  SignalType = "EXIT"
	SignalTypeBoth  SignalType = "BOTH"
)

// Signal is a strategy's directional opinion on an asset for the current
// event. Signals live for one event only.
type Signal struct {
	Asset Asset

	// Rating is the direction and magnitude of the opinion in [-1, 1].
	// Positive is a buy, negative a sell, zero a hold.
	Rating float64

	Type SignalType
}

// NewSignal creates an ENTRY+EXIT capable signal.
func NewSignal(asset Asset, rating float64) Signal {
	return Signal{Asset: asset, Rating: rating, Type: SignalTypeBoth}
}

// Direction returns 1 for buy, -1 for sell and 0 for hold.
func (s Signal) Direction() int {
	switch {
	case s.Rating > 0:
		return 1
	case s.Rating < 0:
		return -1
	default:
		return 0
	}
}

// Entry reports whether the signal may open a new position.
func (s Signal) Entry() bool {
	return s.Type == SignalTypeEntry || s.Type == SignalTypeBoth
}

// Exit reports whether the signal may close an existing position.
func (s Signal) Exit() bool {
	return s.Type == SignalTypeExit || s.Type == SignalTypeBoth
}
