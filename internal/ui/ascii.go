package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// strmsyncASCII is the header banner. Built from lines because the art
// contains backquotes.
var strmsyncASCII = strings.Join([]string{
	`     _                                       `,
	` ___| |_ _ __ _ __ ___  ___ _   _ _ __   ___ `,
	`/ __| __| '__| '_ ` + "`" + ` _ \/ __| | | | '_ \ / __|`,
	`\__ \ |_| |  | | | | | \__ \ |_| | | | | (__ `,
	`|___/\__|_|  |_| |_| |_|___/\__, |_| |_|\___|`,
	`                            |___/            `,
}, "\n")

// FormatASCIIHeader renders the strmsync ASCII header with RAMA theme
func FormatASCIIHeader() string {
	headerStyle := lipgloss.NewStyle().
		Foreground(RAMARed).
		Bold(true)

	return headerStyle.Render(strmsyncASCII)
}

// FormatASCIIHeaderWithSubtext renders header with subtitle
func FormatASCIIHeaderWithSubtext(subtext string) string {
	subtitle := lipgloss.NewStyle().
		Foreground(RAMAMuted).
		Render(subtext)

	return FormatASCIIHeader() + "\n" + subtitle
}
