// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
)

// LayerPickerResult contains the result of layer selection.
type LayerPickerResult struct {
	// Selected is the chosen layer index.
	Selected int

	// Cancelled indicates the user cancelled selection.
	Cancelled bool
}

// layerItem represents one candidate layer in the picker.
type layerItem struct {
	Index     int
	Name      string
	IsDefault bool
}

// LayerPickerModel is the bubbletea model for choosing which transformer
// layer a discovery run or steering application should target.
type LayerPickerModel struct {
	arch   string
	layers []layerItem

	cursor int
	result LayerPickerResult
	done   bool
}

// NewLayerPickerModel builds a picker over a model's layer names, indexed
// 0..len(layerNames)-1. defaultIndex is pre-selected.
func NewLayerPickerModel(arch string, layerNames []string, defaultIndex int) *LayerPickerModel {
	m := &LayerPickerModel{arch: arch, cursor: defaultIndex}
	for i, name := range layerNames {
		m.layers = append(m.layers, layerItem{Index: i, Name: name, IsDefault: i == defaultIndex})
	}
	if m.cursor < 0 || m.cursor >= len(m.layers) {
		m.cursor = 0
	}
	return m
}

// Init implements tea.Model.
func (m *LayerPickerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *LayerPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			m.result.Cancelled = true
			m.done = true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.layers)-1 {
				m.cursor++
			}

		case "enter", " ":
			if m.cursor >= 0 && m.cursor < len(m.layers) {
				m.result.Selected = m.layers[m.cursor].Index
				m.done = true
				return m, tea.Quit
			}
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m *LayerPickerModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Select layer") + "\n")
	b.WriteString(SubtitleStyle.Render(m.arch) + "\n\n")
	b.WriteString(SubtitleStyle.Render("Choose which residual-stream layer to target:") + "\n\n")

	for _, item := range m.layers {
		b.WriteString(m.renderLayerItem(item))
	}

	b.WriteString("\n" + m.renderFooter())
	return b.String()
}

func (m *LayerPickerModel) renderLayerItem(item layerItem) string {
	cursor := "  "
	if m.cursor == item.Index {
		cursor = CursorStyle.Render("> ")
	}

	name := fmt.Sprintf("[%d] %s", item.Index, item.Name)
	if item.IsDefault {
		name = name + " " + SuccessStyle.Render("(default)")
	}

	if m.cursor == item.Index {
		return fmt.Sprintf("%s%s\n", cursor, SelectedItemStyle.Render(name))
	}
	return fmt.Sprintf("%s%s\n", cursor, ItemStyle.Render(name))
}

func (m *LayerPickerModel) renderFooter() string {
	keys := []struct{ key, desc string }{
		{"↑↓", "navigate"},
		{"enter", "select"},
		{"q", "cancel"},
	}
	var parts []string
	for _, k := range keys {
		parts = append(parts, HelpKeyStyle.Render(k.key)+" "+HelpStyle.Render(k.desc))
	}
	return FooterStyle.Render(strings.Join(parts, " • "))
}

// Result returns the selection result.
func (m *LayerPickerModel) Result() LayerPickerResult {
	return m.result
}

// RunLayerPicker runs the layer picker TUI. A single-layer model returns
// that layer directly without launching the picker.
func RunLayerPicker(arch string, layerNames []string, defaultIndex int) (*LayerPickerResult, error) {
	if len(layerNames) == 0 {
		return &LayerPickerResult{Selected: 0}, nil
	}
	if len(layerNames) == 1 {
		return &LayerPickerResult{Selected: 0}, nil
	}

	model := NewLayerPickerModel(arch, layerNames, defaultIndex)
	p := tea.NewProgram(model, tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to run layer picker: %w", err)
	}

	m := finalModel.(*LayerPickerModel)
	result := m.Result()
	return &result, nil
}

// Ensure LayerPickerModel implements tea.Model.
var _ tea.Model = (*LayerPickerModel)(nil)
