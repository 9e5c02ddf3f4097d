package tui

import (
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lepinkainen/bookseed/internal/config"
	"github.com/lepinkainen/bookseed/internal/cover"
	"github.com/lepinkainen/bookseed/internal/errors"
	"github.com/lepinkainen/bookseed/internal/watchlist"
)

// inputModel is a single-line text prompt.
type inputModel struct {
	input  textinput.Model
	header string
	hint   string
	value  string
	action SelectionAction
}

func newInputModel(header, hint, placeholder string) *inputModel {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.CharLimit = 255
	ti.Width = defaultListWidth - 4
	ti.Focus()

	return &inputModel{
		input:  ti,
		header: header,
		hint:   hint,
		action: ActionNone,
	}
}

func (m *inputModel) Init() tea.Cmd { return textinput.Blink }

func (m *inputModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.Type {
		case tea.KeyEnter:
			m.value = m.input.Value()
			m.action = ActionSelected
			return m, tea.Quit
		case tea.KeyEsc:
			m.action = ActionSkipped
			return m, tea.Quit
		case tea.KeyCtrlC:
			m.action = ActionStopped
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *inputModel) View() string {
	return lipgloss.JoinVertical(lipgloss.Left,
		headerStyle.Render(m.header),
		m.input.View(),
		helpStyle.Render(m.hint),
	)
}

func runInput(m *inputModel) (*inputModel, error) {
	finalModel, err := runProgram(m)
	if err != nil {
		return nil, err
	}
	typed, ok := finalModel.(*inputModel)
	if !ok {
		return nil, fmt.Errorf("unexpected program result")
	}
	return typed, nil
}

// PromptFilename asks for a replacement name for an existing cover file.
// The answer "overwrite" keeps the existing file name. Esc returns an empty
// answer and Ctrl+C stops processing.
func PromptFilename(existing string) (string, error) {
	m := newInputModel(
		fmt.Sprintf("There is already an image at %s", filepath.Base(existing)),
		fmt.Sprintf("Enter a new file name or type '%s' | Esc skip | Ctrl+C stop", cover.OverwriteAnswer),
		cover.OverwriteAnswer,
	)

	result, err := runInput(m)
	if err != nil {
		return "", err
	}

	switch result.action {
	case ActionStopped:
		return "", errors.NewStopProcessingError("stopped at cover file name prompt")
	case ActionSelected:
		return result.value, nil
	default:
		return "", nil
	}
}

// ExportPrompter asks the operator how each watchlist should be exported.
// It implements watchlist.Prompter.
type ExportPrompter struct {
	Dir string
}

// Choose implements watchlist.Prompter.
func (p ExportPrompter) Choose(w *watchlist.Watchlist) (watchlist.Choice, error) {
	selection, err := SelectExport(w.Name(), w.Len())
	if err != nil {
		return watchlist.Choice{}, err
	}

	switch selection.Action {
	case ActionStopped:
		return watchlist.Choice{}, errors.NewStopProcessingError("stopped at watchlist export prompt")
	case ActionSelected:
	default:
		return watchlist.Choice{Format: config.ExportNone}, nil
	}

	if selection.Format == config.ExportJSON {
		return watchlist.Choice{Format: config.ExportJSON}, nil
	}

	dir := p.Dir
	if dir == "" {
		dir = "."
	}
	defaultPath := watchlist.DefaultPath(dir, w.Name(), selection.Format)
	m := newInputModel(
		"Supply a file path. An existing file will be overwritten.",
		"Leave empty for "+defaultPath+" | Esc skip | Ctrl+C stop",
		defaultPath,
	)

	result, err := runInput(m)
	if err != nil {
		return watchlist.Choice{}, err
	}

	switch result.action {
	case ActionStopped:
		return watchlist.Choice{}, errors.NewStopProcessingError("stopped at watchlist path prompt")
	case ActionSelected:
		path := result.value
		if path == "" {
			path = defaultPath
		}
		return watchlist.Choice{Format: selection.Format, Path: path}, nil
	default:
		return watchlist.Choice{Format: config.ExportNone}, nil
	}
}
