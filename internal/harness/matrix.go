package harness

import "github.com/roach88/longpoll/internal/subscribe"

// Cell is the outcome of one event applied to one representative state.
type Cell struct {
	Accepted    bool     `json:"accepted"`
	To          string   `json:"to,omitempty"`
	Invocations []string `json:"invocations,omitempty"`
}

// Matrix is the acceptance table of a transition: Cells[i][j] is
// Events[j] applied to States[i].
type Matrix struct {
	States []string `json:"states"`
	Events []string `json:"events"`
	Cells  [][]Cell `json:"cells"`
}

// Representative states use one channel and, where a cursor is held,
// cursor 100/1. Effect events are built to match the state's origin, so
// a rejection in the matrix means the event never applies to that state.
var (
	matrixChannels = []string{"ch"}
	matrixCursor   = "100/1"
	matrixNext     = "200/1"
)

// AcceptanceMatrix applies every event to a representative of every state.
func (h *Harness) AcceptanceMatrix() (*Matrix, error) {
	table := h.table
	m := &Matrix{
		States: subscribe.StateNames,
		Events: subscribe.EventNames,
		Cells:  make([][]Cell, len(subscribe.StateNames)),
	}
	for i, stateName := range subscribe.StateNames {
		spec := &StateSpec{State: stateName, Channels: matrixChannels, Cursor: matrixCursor, Reason: string(subscribe.ReasonTimeout)}
		if stateName == "Unsubscribed" {
			spec = nil
		} else if !holdsCursor(stateName) {
			spec.Cursor = ""
		}
		state, err := buildState(spec)
		if err != nil {
			return nil, err
		}

		row := make([]Cell, len(subscribe.EventNames))
		for j, eventName := range subscribe.EventNames {
			event, err := buildEvent(EventStep{Event: eventName, Channels: matrixChannels, Cursor: matrixNext}, state)
			if err != nil {
				return nil, err
			}
			if !table.CanTransition(state, event) {
				continue
			}
			next, effects := table.Transition(state, event)
			row[j] = Cell{Accepted: true, To: next.Name(), Invocations: subscribe.DescribeAll(effects)}
		}
		m.Cells[i] = row
	}
	return m, nil
}

func holdsCursor(state string) bool {
	switch state {
	case "Receiving", "ReceiveStopped", "ReceiveFailed", "ReceiveReconnecting":
		return true
	}
	return false
}
