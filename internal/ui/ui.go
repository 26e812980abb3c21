package ui

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	Green     = lipgloss.Color("10")
	Red       = lipgloss.Color("9")
	Amber     = lipgloss.Color("11")
	Blue      = lipgloss.Color("12")
	Cyan      = lipgloss.Color("14")
	White     = lipgloss.Color("15")
	LightGray = lipgloss.Color("245")
)

var (
	successStyle = lipgloss.NewStyle().Foreground(Green).Bold(true)
	infoStyle    = lipgloss.NewStyle().Foreground(Cyan)
	debugStyle   = lipgloss.NewStyle().Foreground(LightGray)
	warnStyle    = lipgloss.NewStyle().Foreground(Amber).Bold(true)
	errorStyle   = lipgloss.NewStyle().Foreground(Red).Bold(true)
	titleStyle   = lipgloss.NewStyle().Foreground(White).Bold(true).Underline(true)
)

func Success(format string, a ...any) {
	fmt.Println(successStyle.Render(fmt.Sprintf(format, a...)))
}

func Info(format string, a ...any) {
	fmt.Println(infoStyle.Render(fmt.Sprintf(format, a...)))
}

func Debug(format string, a ...any) {
	fmt.Println(debugStyle.Render(fmt.Sprintf(format, a...)))
}

func Warn(format string, a ...any) {
	fmt.Println(warnStyle.Render(fmt.Sprintf(format, a...)))
}

func Error(format string, a ...any) {
	fmt.Fprintln(os.Stderr, errorStyle.Render(fmt.Sprintf(format, a...)))
}

// Section prints a titled block of lines, used for status-style summaries.
func Section(title string, textLines []string) {
	fmt.Println()
	fmt.Println(titleStyle.Render(title))
	fmt.Println(strings.Join(textLines, "\n"))
}
