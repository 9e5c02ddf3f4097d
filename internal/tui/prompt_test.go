package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lepinkainen/bookseed/internal/config"
	"github.com/lepinkainen/bookseed/internal/errors"
	"github.com/lepinkainen/bookseed/internal/watchlist"
)

func TestInputModel_TypingAndEnter(t *testing.T) {
	m := newInputModel("header", "hint", "placeholder")

	m.Update(keyMsg("new"))
	m.Update(keyMsg("enter"))

	assert.Equal(t, ActionSelected, m.action)
	assert.Equal(t, "new", m.value)
}

func TestInputModel_EscAndCtrlC(t *testing.T) {
	m := newInputModel("header", "hint", "")
	m.Update(keyMsg("esc"))
	assert.Equal(t, ActionSkipped, m.action)

	m = newInputModel("header", "hint", "")
	m.Update(keyMsg("ctrl+c"))
	assert.Equal(t, ActionStopped, m.action)
}

func TestPromptFilename(t *testing.T) {
	testCases := []struct {
		name    string
		action  SelectionAction
		value   string
		want    string
		stopped bool
	}{
		{name: "new name", action: ActionSelected, value: "other cover", want: "other cover"},
		{name: "overwrite", action: ActionSelected, value: "overwrite", want: "overwrite"},
		{name: "esc", action: ActionSkipped, want: ""},
		{name: "stop", action: ActionStopped, stopped: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			withProgram(t, func(m tea.Model) (tea.Model, error) {
				typed := m.(*inputModel)
				assert.Contains(t, typed.header, "Dune_cover_image.png")
				typed.action = tc.action
				typed.value = tc.value
				return typed, nil
			})

			got, err := PromptFilename("/covers/Dune_cover_image.png")
			if tc.stopped {
				assert.True(t, errors.IsStopProcessingError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExportPrompter_Choose(t *testing.T) {
	w := watchlist.New(watchlist.NullImages)
	w.Add("9780441013593", "Dune")

	testCases := []struct {
		name      string
		selection SelectionResult
		input     *inputModel
		want      watchlist.Choice
		stopped   bool
	}{
		{
			name:      "json goes to stdout",
			selection: SelectionResult{Action: ActionSelected, Format: config.ExportJSON},
			want:      watchlist.Choice{Format: config.ExportJSON},
		},
		{
			name:      "text with default path",
			selection: SelectionResult{Action: ActionSelected, Format: config.ExportText},
			input:     &inputModel{action: ActionSelected},
			want:      watchlist.Choice{Format: config.ExportText, Path: "out/null_images_watchlist.txt"},
		},
		{
			name:      "yaml with custom path",
			selection: SelectionResult{Action: ActionSelected, Format: config.ExportYAML},
			input:     &inputModel{action: ActionSelected, value: "/tmp/list.yaml"},
			want:      watchlist.Choice{Format: config.ExportYAML, Path: "/tmp/list.yaml"},
		},
		{
			name:      "path prompt escaped",
			selection: SelectionResult{Action: ActionSelected, Format: config.ExportText},
			input:     &inputModel{action: ActionSkipped},
			want:      watchlist.Choice{Format: config.ExportNone},
		},
		{
			name:      "skipped",
			selection: SelectionResult{Action: ActionSkipped, Format: config.ExportNone},
			want:      watchlist.Choice{Format: config.ExportNone},
		},
		{
			name:      "stopped",
			selection: SelectionResult{Action: ActionStopped},
			stopped:   true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			withProgram(t, func(m tea.Model) (tea.Model, error) {
				switch typed := m.(type) {
				case *model:
					typed.result = tc.selection
					return typed, nil
				case *inputModel:
					require.NotNil(t, tc.input, "unexpected path prompt")
					return tc.input, nil
				}
				return m, nil
			})

			got, err := ExportPrompter{Dir: "out"}.Choose(w)
			if tc.stopped {
				assert.True(t, errors.IsStopProcessingError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}
