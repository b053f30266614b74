// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/seqeval/pkg/evaluation"
	"github.com/gomlx/seqeval/pkg/model"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row == 1 {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

// reportNodes writes a summary of the graph and one table per node kind.
func reportNodes(w io.Writer, session *evaluation.Session) error {
	graph := session.Graph()
	summary := newPlainTable(false)
	summary.Row("graph", graph.Name())
	if graph.Path() != "" {
		summary.Row("path", graph.Path())
	}
	summary.Row("id", graph.ID().String())
	summary.Row("backend", session.Backend().Name())
	summary.Row("# inputs", humanize.Comma(int64(len(graph.Inputs()))))
	summary.Row("# outputs", humanize.Comma(int64(len(graph.Outputs()))))
	fmt.Fprintln(w, titleStyle.Render("Summary"))
	fmt.Fprintln(w, summary.Render())

	for _, kind := range []model.Kind{model.Input, model.Output} {
		nodeShapes, err := session.NodesOfKind(kind)
		if err != nil {
			return err
		}
		sizes, err := session.SizesOfKind(kind)
		if err != nil {
			return err
		}
		names := make([]string, 0, len(nodeShapes))
		for name := range nodeShapes {
			names = append(names, name)
		}
		slices.Sort(names)

		table := newPlainTable(true)
		table.Row("Name", "Shape", "Size")
		var total int64
		for _, name := range names {
			table.Row(name, nodeShapes[name].String(), humanize.Comma(int64(sizes[name])))
			total += int64(sizes[name])
		}
		fmt.Fprintln(w, titleStyle.Render(fmt.Sprintf("%s nodes (%s elements per sample)", kind, humanize.Comma(total))))
		fmt.Fprintln(w, table.Render())
	}
	return nil
}
