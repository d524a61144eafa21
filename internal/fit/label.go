package fit

import "fmt"

// Phase identifies the fitting step that issued a render request
type Phase int

const (
	PhaseNone Phase = iota
	PhaseInit
	PhaseStartIteration
	PhaseCenter
	PhaseRightDerivative
	PhaseLeftDerivative
	PhaseCandidate
	PhaseIterationEnd
)

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseInit:
		return "init"
	case PhaseStartIteration:
		return "start-iteration"
	case PhaseCenter:
		return "center"
	case PhaseRightDerivative:
		return "right-derivative"
	case PhaseLeftDerivative:
		return "left-derivative"
	case PhaseCandidate:
		return "candidate"
	case PhaseIterationEnd:
		return "iteration-end"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Label correlates a render reply with the request that caused it.
// Index is only meaningful for PhaseCandidate.
type Label struct {
	Phase Phase
	Index int
}

// At returns a label for the given phase
func At(p Phase) Label {
	return Label{Phase: p}
}

// CandidateLabel returns the label of grid candidate k
func CandidateLabel(k int) Label {
	return Label{Phase: PhaseCandidate, Index: k}
}

func (l Label) String() string {
	if l.Phase == PhaseCandidate {
		return fmt.Sprintf("candidate[%d]", l.Index)
	}
	return l.Phase.String()
}
