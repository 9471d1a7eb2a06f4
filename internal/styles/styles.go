// Package styles provides the terminal colors and formatting used by the
// rfcread command and the build scripts.
package styles

import (
	"fmt"
	"maps"
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
)

// Color palette
var (
	Primary = lipgloss.Color("#0A6ED1") // SAP blue
	Accent  = lipgloss.Color("#F0AB00") // Gold

	SuccessColor = lipgloss.Color("#04B575") // Green
	WarningColor = lipgloss.Color("#FFB347") // Orange
	ErrorColor   = lipgloss.Color("#FF6B6B") // Red
	InfoColor    = lipgloss.Color("#54A6FF") // Blue

	Text          = lipgloss.Color("#FAFAFA")
	TextDim       = lipgloss.Color("#A8A8A8")
	BackgroundAlt = lipgloss.Color("#2D2D2D")
)

var (
	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Primary).
			PaddingBottom(1)

	SubHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(InfoColor)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(SuccessColor)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ErrorColor)

	WarningStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(WarningColor)

	InfoStyle = lipgloss.NewStyle().
			Foreground(InfoColor)

	BoldStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(Text)

	DimStyle = lipgloss.NewStyle().
			Foreground(TextDim)

	CodeStyle = lipgloss.NewStyle().
			Foreground(Accent).
			Background(BackgroundAlt).
			PaddingLeft(1).
			PaddingRight(1)

	// Table cells
	CellStyle       = lipgloss.NewStyle().PaddingLeft(1).PaddingRight(1)
	HeaderCellStyle = CellStyle.Bold(true).Foreground(Primary)
	OddRowStyle     = CellStyle.Foreground(Text)
	EvenRowStyle    = CellStyle.Foreground(TextDim)
)

func Success(text string) string {
	return SuccessStyle.Render("✓ " + text)
}

func Error(text string) string {
	return ErrorStyle.Render("✗ " + text)
}

func Warning(text string) string {
	return WarningStyle.Render("⚠ " + text)
}

func Info(text string) string {
	return InfoStyle.Render("ℹ " + text)
}

func Header(text string) string {
	return HeaderStyle.Render(text)
}

func SubHeader(text string) string {
	return SubHeaderStyle.Render(text)
}

func Bold(text string) string {
	return BoldStyle.Render(text)
}

func Dim(text string) string {
	return DimStyle.Render(text)
}

func Code(text string) string {
	return CodeStyle.Render(text)
}

// Example formats one line of command help.
func Example(command, description string) string {
	return "  " + Code(command) + " - " + Dim(description)
}

// Field formats a name/value pair of a detail listing.
func Field(name string, value any) string {
	return DimStyle.Render(fmt.Sprintf("  %-14s", name+":")) + " " + fmt.Sprint(value)
}

// Rows renders rows under headers as a bordered table with alternating
// row colors.
func Rows(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		StyleFunc(func(row, _ int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return HeaderCellStyle
			case row%2 == 0:
				return EvenRowStyle
			default:
				return OddRowStyle
			}
		}).
		Headers(headers...).
		Rows(rows...)
	return t.String()
}

// ErrorDetails boxes err together with the context it occurred in. Keys are
// listed in sorted order.
func ErrorDetails(err error, context map[string]string) string {
	style := lipgloss.NewStyle().
		Border(lipgloss.ThickBorder()).
		BorderForeground(ErrorColor).
		Padding(0, 1)

	content := ErrorStyle.Render("Error: ") + err.Error()
	if len(context) > 0 {
		content += "\n\n" + DimStyle.Render("Context:")
		for _, key := range slices.Sorted(maps.Keys(context)) {
			content += "\n" + DimStyle.Render("  "+key+": ") + context[key]
		}
	}
	return style.Render(content)
}
