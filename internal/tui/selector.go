// Copyright 2025
// SPDX-License-Identifier: Apache-2.0

package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lumen-ai/steerkit/pkg/steervec"
)

// PickerResult contains the result of interactive vector selection.
type PickerResult struct {
	// Action is what the user chose: "apply" or "cancel".
	Action string

	// Selected holds the chosen vectors' names exactly as they were
	// passed to the picker, in picker order.
	Selected []string

	// Gains holds one gain per Selected entry.
	Gains []float32

	// CLICommand is the equivalent "steerkit apply" invocation.
	CLICommand string
}

// vectorItem tracks one candidate vector's selection state in the picker.
type vectorItem struct {
	Name   string
	Vector *steervec.SteeringVector
	Picked bool
	Gain   float32
}

// VectorPickerModel is the bubbletea model for picking and weighting saved
// steering vectors before applying them to a model.
type VectorPickerModel struct {
	items  []vectorItem
	cursor int

	width  int
	height int

	result PickerResult
	done   bool
}

const gainStep = 0.1

// NewVectorPickerModel builds a picker over named, loaded vectors. names and
// vectors must be parallel slices.
func NewVectorPickerModel(names []string, vectors []*steervec.SteeringVector) *VectorPickerModel {
	m := &VectorPickerModel{}
	for i, name := range names {
		m.items = append(m.items, vectorItem{Name: name, Vector: vectors[i], Gain: 1.0})
	}
	return m
}

// Init implements tea.Model.
func (m *VectorPickerModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *VectorPickerModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.result.Action = "cancel"
			m.done = true
			return m, tea.Quit

		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}

		case "down", "j":
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}

		case " ":
			if m.cursor < len(m.items) {
				m.items[m.cursor].Picked = !m.items[m.cursor].Picked
			}

		case "a":
			m.setAll(true)

		case "n":
			m.setAll(false)

		case "+", "=":
			if m.cursor < len(m.items) {
				m.items[m.cursor].Gain += gainStep
			}

		case "-", "_":
			if m.cursor < len(m.items) {
				m.items[m.cursor].Gain -= gainStep
			}

		case "enter":
			m.result.Action = "apply"
			m.result.Selected, m.result.Gains = m.selection()
			m.result.CLICommand = m.generateCommand()
			m.done = true
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	return m, nil
}

// View implements tea.Model.
func (m *VectorPickerModel) View() string {
	if m.done {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Select steering vectors") + "\n")
	b.WriteString(SubtitleStyle.Render(fmt.Sprintf("%d vector(s) available", len(m.items))) + "\n\n")

	for i, item := range m.items {
		cursor := "  "
		if m.cursor == i {
			cursor = CursorStyle.Render("> ")
		}

		checkbox := RenderCheckbox(item.Picked)
		label := item.Name
		if item.Picked {
			label = label + " " + RecommendedBadge.String()
		}
		layer := SizeLabelStyle.Render(fmt.Sprintf("layer %d", item.Vector.LayerIndex()))
		gain := GainLabelStyle.Render(fmt.Sprintf("gain %.1f", item.Gain))

		line := fmt.Sprintf("%s%s %s  %s  %s", cursor, checkbox, label, layer, gain)
		if m.cursor == i {
			line = SelectedItemStyle.Render(line)
		} else {
			line = ItemStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}

	selected, gains := m.selection()
	summary := SummaryLabelStyle.Render("Selected: ") + SummaryValueStyle.Render(fmt.Sprintf("%d", len(selected)))
	b.WriteString("\n" + summary + "\n")

	_ = gains
	cmdBox := CommandLabelStyle.Render("Command: ") + CommandTextStyle.Render(m.generateCommand())
	b.WriteString(CommandBoxStyle.Render(cmdBox) + "\n")

	b.WriteString(m.renderFooter())
	return b.String()
}

func (m *VectorPickerModel) setAll(picked bool) {
	for i := range m.items {
		m.items[i].Picked = picked
	}
}

func (m *VectorPickerModel) selection() ([]string, []float32) {
	var names []string
	var gains []float32
	for _, item := range m.items {
		if item.Picked {
			names = append(names, item.Name)
			gains = append(gains, item.Gain)
		}
	}
	return names, gains
}

func (m *VectorPickerModel) generateCommand() string {
	names, gains := m.selection()
	if len(names) == 0 {
		return "steerkit apply"
	}
	var parts []string
	parts = append(parts, "steerkit", "apply")
	for i, name := range names {
		parts = append(parts, fmt.Sprintf("--vector %s --gain %.1f", name, gains[i]))
	}
	return strings.Join(parts, " ")
}

func (m *VectorPickerModel) renderFooter() string {
	keys := []struct{ key, desc string }{
		{"↑↓", "navigate"},
		{"space", "toggle"},
		{"+/-", "adjust gain"},
		{"a", "all"},
		{"n", "none"},
		{"enter", "apply"},
		{"q", "quit"},
	}
	var parts []string
	for _, k := range keys {
		parts = append(parts, HelpKeyStyle.Render(k.key)+" "+HelpStyle.Render(k.desc))
	}
	return FooterStyle.Render(strings.Join(parts, " • "))
}

// Result returns the selection result (call after tea.Program ends).
func (m *VectorPickerModel) Result() PickerResult {
	return m.result
}

// RunVectorPicker runs the interactive vector picker TUI.
func RunVectorPicker(names []string, vectors []*steervec.SteeringVector) (*PickerResult, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no vectors available to pick from")
	}

	model := NewVectorPickerModel(names, vectors)
	p := tea.NewProgram(model, tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to run vector picker: %w", err)
	}

	m := finalModel.(*VectorPickerModel)
	result := m.Result()
	return &result, nil
}

// Ensure VectorPickerModel implements tea.Model.
var _ tea.Model = (*VectorPickerModel)(nil)
