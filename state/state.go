// state/state.go
package state

import (
	"errors"
	"sync"

	"github.com/wfunc/cardroom/models"
)

// ErrTransitionNotAllowed is returned when a status transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// 房间状态机的转移表:
//   WaitingForPlayers -> InProgress | Cancelled | Closed
//   InProgress        -> Completed | Paused | Cancelled
//   Paused            -> InProgress | Cancelled
//   Completed         -> Closed
//   Cancelled         -> Closed
// Closed 为终态。
var transitions = map[models.RoomStatus][]models.RoomStatus{
	models.StatusWaitingForPlayers: {models.StatusInProgress, models.StatusCancelled, models.StatusClosed},
	models.StatusInProgress:        {models.StatusCompleted, models.StatusPaused, models.StatusCancelled},
	models.StatusPaused:            {models.StatusInProgress, models.StatusCancelled},
	models.StatusCompleted:         {models.StatusClosed},
	models.StatusCancelled:         {models.StatusClosed},
}

// Allowed reports whether from -> to is a legal lifecycle transition.
func Allowed(from, to models.RoomStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Machine tracks one room's lifecycle status and validates every change
// against the transition table.
type Machine struct {
	mu      sync.Mutex
	current models.RoomStatus
}

func NewMachine(initial models.RoomStatus) *Machine {
	return &Machine{current: initial}
}

func (m *Machine) Current() models.RoomStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Transition moves to the target status or fails with
// ErrTransitionNotAllowed, leaving the current status untouched.
func (m *Machine) Transition(to models.RoomStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !Allowed(m.current, to) {
		return ErrTransitionNotAllowed
	}
	m.current = to
	return nil
}

// Force sets the status without validation, used when rehydrating a room
// loaded from the store.
func (m *Machine) Force(status models.RoomStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = status
}
