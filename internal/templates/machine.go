package templates

import (
	"fmt"

	"github.com/meridian-interiors/meridian-quotes/internal/shared"
)

// State is a step in the template application flow.
type State string

const (
	StatePreview    State = "preview"
	StateCustomize  State = "customize"
	StateModeSelect State = "mode_select"
	StateApplying   State = "applying"
	StateDone       State = "done"
)

// ApplyMode decides how a template lands on a quotation that already has
// items.
type ApplyMode string

const (
	// ModeMerge materializes only rooms absent from the quotation.
	ModeMerge ApplyMode = "merge"
	// ModeReplace deletes every existing item first. Irreversible, so it
	// demands explicit confirmation.
	ModeReplace ApplyMode = "replace"
)

// Valid reports whether the apply mode is a known value.
func (m ApplyMode) Valid() bool {
	return m == ModeMerge || m == ModeReplace
}

// Machine is the pure state machine behind the apply flow. Transitions return
// a new value; no step has side effects. The service performs the actual
// materialization only once the machine reaches StateApplying.
type Machine struct {
	State            State
	HasExistingItems bool
	SelectedOptional []string
	Mode             ApplyMode
	Confirmed        bool
}

// Start enters the preview step.
func Start(hasExistingItems bool) Machine {
	return Machine{State: StatePreview, HasExistingItems: hasExistingItems}
}

// Proceed moves from preview to the room-selection step.
func (m Machine) Proceed() (Machine, error) {
	if m.State != StatePreview {
		return m, fmt.Errorf("%w: cannot proceed from %s", shared.ErrValidation, m.State)
	}
	m.State = StateCustomize
	return m, nil
}

// SelectRooms records the optional rooms chosen by the caller. A quotation
// with existing items must pick a mode next; an empty quotation goes straight
// to applying in merge mode, which from empty materializes the full template.
func (m Machine) SelectRooms(optional []string) (Machine, error) {
	if m.State != StateCustomize {
		return m, fmt.Errorf("%w: cannot select rooms from %s", shared.ErrValidation, m.State)
	}
	m.SelectedOptional = optional
	if m.HasExistingItems {
		m.State = StateModeSelect
		return m, nil
	}
	m.Mode = ModeMerge
	m.State = StateApplying
	return m, nil
}

// ChooseMode picks merge or replace. Replace without explicit confirmation is
// rejected before anything is deleted.
func (m Machine) ChooseMode(mode ApplyMode, confirmed bool) (Machine, error) {
	if m.State != StateModeSelect {
		return m, fmt.Errorf("%w: cannot choose mode from %s", shared.ErrValidation, m.State)
	}
	if !mode.Valid() {
		return m, fmt.Errorf("%w: unknown apply mode %q", shared.ErrValidation, mode)
	}
	if mode == ModeReplace && !confirmed {
		return m, shared.ErrConfirmationRequired
	}
	m.Mode = mode
	m.Confirmed = confirmed
	m.State = StateApplying
	return m, nil
}

// Finish marks the flow complete.
func (m Machine) Finish() (Machine, error) {
	if m.State != StateApplying {
		return m, fmt.Errorf("%w: cannot finish from %s", shared.ErrValidation, m.State)
	}
	m.State = StateDone
	return m, nil
}
