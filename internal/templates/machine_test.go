package templates

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-interiors/meridian-quotes/internal/shared"
)

func TestMachineEmptyQuotationSkipsModeSelect(t *testing.T) {
	m := Start(false)
	require.Equal(t, StatePreview, m.State)

	m, err := m.Proceed()
	require.NoError(t, err)
	require.Equal(t, StateCustomize, m.State)

	m, err = m.SelectRooms([]string{"Pooja Room"})
	require.NoError(t, err)
	require.Equal(t, StateApplying, m.State)
	require.Equal(t, ModeMerge, m.Mode)

	m, err = m.Finish()
	require.NoError(t, err)
	require.Equal(t, StateDone, m.State)
}

func TestMachineExistingItemsRequireMode(t *testing.T) {
	m := Start(true)
	m, err := m.Proceed()
	require.NoError(t, err)
	m, err = m.SelectRooms(nil)
	require.NoError(t, err)
	require.Equal(t, StateModeSelect, m.State)

	m, err = m.ChooseMode(ModeMerge, false)
	require.NoError(t, err)
	require.Equal(t, StateApplying, m.State)
}

func TestMachineReplaceNeedsConfirmation(t *testing.T) {
	m := Start(true)
	m, _ = m.Proceed()
	m, _ = m.SelectRooms(nil)

	_, err := m.ChooseMode(ModeReplace, false)
	require.ErrorIs(t, err, shared.ErrConfirmationRequired)

	m, err = m.ChooseMode(ModeReplace, true)
	require.NoError(t, err)
	require.Equal(t, ModeReplace, m.Mode)
	require.Equal(t, StateApplying, m.State)
}

func TestMachineRejectsOutOfOrderTransitions(t *testing.T) {
	m := Start(false)

	_, err := m.SelectRooms(nil)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = m.ChooseMode(ModeMerge, false)
	require.ErrorIs(t, err, shared.ErrValidation)

	_, err = m.Finish()
	require.ErrorIs(t, err, shared.ErrValidation)
}
