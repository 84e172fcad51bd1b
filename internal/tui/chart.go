package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/tinytelemetry/byod/internal/model"
)

// chartOrder fixes the bar order of the outcome chart.
var chartOrder = []model.Outcome{
	model.OutcomeRendered,
	model.OutcomeServerError,
	model.OutcomeTransportError,
	model.OutcomeMalformed,
	model.OutcomeFatal,
}

const chartHeight = 6

// renderOutcomeChart draws one bar per outcome with a legend on the right.
func renderOutcomeChart(counts map[model.Outcome]int64, width int) string {
	title := chartTitleStyle.Render("Poll outcomes")
	if len(counts) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, title, helpStyle.Render("No data available"))
	}

	legendWidth := 24
	chartWidth := width - legendWidth - 2
	if chartWidth < 2*len(chartOrder) {
		chartWidth = 2 * len(chartOrder)
	}

	bc := barchart.New(chartWidth, chartHeight,
		barchart.WithBarGap(1),
		barchart.WithBarWidth(max(1, chartWidth/len(chartOrder)-1)),
		barchart.WithNoAxis(),
	)

	var legend []string
	for _, o := range chartOrder {
		c := outcomeColors[string(o)]
		style := lipgloss.NewStyle().Foreground(c).Background(c)
		bc.Push(barchart.BarData{
			Label: string(o),
			Values: []barchart.BarValue{
				{Name: string(o), Value: float64(counts[o]), Style: style},
			},
		})
		legend = append(legend, lipgloss.NewStyle().Foreground(c).Render(fmt.Sprintf("%-16s%6d", o, counts[o])))
	}
	bc.Draw()

	chartLines := strings.Split(bc.View(), "\n")
	for len(chartLines) < chartHeight {
		chartLines = append(chartLines, "")
	}
	for len(legend) < chartHeight {
		legend = append(legend, "")
	}

	rows := make([]string, chartHeight)
	for i := range rows {
		rows[i] = lipgloss.NewStyle().Width(chartWidth).Render(chartLines[i]) + "  " + legend[i]
	}
	return lipgloss.JoinVertical(lipgloss.Left, title, strings.Join(rows, "\n"))
}
