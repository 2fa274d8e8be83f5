package ui

import "github.com/charmbracelet/lipgloss"

var (
	fuchsia   = lipgloss.Color("#EE6FF8")
	yellow    = lipgloss.Color("#ECFD65")
	mintGreen = lipgloss.AdaptiveColor{Light: "#89F0CB", Dark: "#89F0CB"}
	darkGreen = lipgloss.AdaptiveColor{Light: "#1C8760", Dark: "#1C8760"}
	cherry    = lipgloss.AdaptiveColor{Light: "#FF4672", Dark: "#ED567A"}
	subtle    = lipgloss.AdaptiveColor{Light: "#9B9B9B", Dark: "#5C5C5C"}

	statusBarBg     = lipgloss.AdaptiveColor{Light: "#E6E6E6", Dark: "#242424"}
	statusBarNoteFg = lipgloss.AdaptiveColor{Light: "#656565", Dark: "#7D7D7D"}

	logoStyle = lipgloss.NewStyle().
			Foreground(yellow).
			Background(fuchsia).
			Bold(true)

	statusBarNoteStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(statusBarBg).
				Render

	statusBarScrollPosStyle = lipgloss.NewStyle().
				Foreground(lipgloss.AdaptiveColor{Light: "#949494", Dark: "#5A5A5A"}).
				Background(statusBarBg).
				Render

	statusBarHelpStyle = lipgloss.NewStyle().
				Foreground(statusBarNoteFg).
				Background(lipgloss.AdaptiveColor{Light: "#DCDCDC", Dark: "#323232"}).
				Render

	statusBarMessageStyle = lipgloss.NewStyle().
				Foreground(mintGreen).
				Background(darkGreen).
				Render

	statusBarErrorStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFD2DC")).
				Background(cherry).
				Render

	speakingLineStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("0")).
				Background(lipgloss.Color("226")).
				Bold(true)

	helpViewStyle = lipgloss.NewStyle().
			Foreground(statusBarNoteFg).
			Background(lipgloss.AdaptiveColor{Light: "#f2f2f2", Dark: "#1B1B1B"}).
			Render

	errorTitleStyle = lipgloss.NewStyle().
			Foreground(yellow).
			Background(cherry).
			Padding(0, 1)

	subtleStyle = lipgloss.NewStyle().Foreground(subtle)

	pickerSelectedStyle = lipgloss.NewStyle().Foreground(fuchsia).Bold(true)
	pickerItemStyle     = lipgloss.NewStyle().Foreground(statusBarNoteFg)
)

func duetLogoView() string {
	return logoStyle.Render(" Duet ")
}
