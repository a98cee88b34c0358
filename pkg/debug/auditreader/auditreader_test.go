package main

import (
	"strings"
	"testing"
	"txmanager/pkg/log"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const trace = "T1       W    \tBeginTx\n" +
	"T2       W    \tBeginTx\n" +
	"T1            \tWriteTx  \t3:17:0             \tWriteLock\tGranted\t\tP\n" +
	"T2            \tWriteTx  \t3:X:X              \tWriteLock\tNotGranted\tW for T1\n" +
	"T1            \tCommitTx\t3 : 17, \n" +
	"T2            \tWriteTx  \t3:24:0             \tWriteLock\tGranted\t\tP\n" +
	"T2            \tCommitTx\t3 : 24, \n"

func loaded(t *testing.T) model {
	t.Helper()
	records, err := log.NewStreamReader(strings.NewReader(trace)).ReadAll()
	require.NoError(t, err)

	next, _ := initialModel("audit.log").Update(recordsLoadedMsg{records: records})
	return next.(model)
}

func press(m model, keys string) model {
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(keys)})
	return next.(model)
}

func TestFilterCycle(t *testing.T) {
	m := loaded(t)
	assert.Len(t, m.visible, 7)

	m = press(m, "f")
	require.Len(t, m.visible, 1)
	assert.Equal(t, log.WriteRecord, m.visible[0].Type)
	assert.False(t, m.visible[0].Granted)

	m = press(m, "f")
	assert.Len(t, m.visible, 2)

	m = press(m, "f")
	assert.Len(t, m.visible, 7)
}

func TestNavigateAndSelect(t *testing.T) {
	m := loaded(t)
	m = press(m, "j")
	m = press(m, "j")
	m = press(m, "j")
	assert.Equal(t, 3, m.cursor)

	m = press(m, "k")
	assert.Equal(t, 2, m.cursor)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	require.True(t, m.detailMode)
	assert.Equal(t, int64(17), m.selected.Value)
	assert.Contains(t, m.renderDetailView(), "Value after")
}

func TestRecordLine(t *testing.T) {
	m := loaded(t)
	assert.Contains(t, formatRecordLine(m.visible[3], 3), "waits for T1")
	assert.Contains(t, formatRecordLine(m.visible[4], 4), "released 1")
	assert.Contains(t, m.View(), "Transaction Audit Viewer")
}
