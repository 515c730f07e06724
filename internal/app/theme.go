package app

import "github.com/charmbracelet/lipgloss"

const (
	chatBubblePaddingVertical   = 0
	chatBubblePaddingHorizontal = 1
)

var (
	headerStyle        = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	helpStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	connectedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("70")).Bold(true)
	reconnectingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("178")).Bold(true)
	disconnectedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("203")).Bold(true)
	sessionStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	sessionUnreadStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("120"))
	activeSessionStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("70"))
	selectedStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("236"))
	slaveBranchStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	dividerStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
	userBubbleStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240")).Background(lipgloss.Color("236")).Padding(chatBubblePaddingVertical, chatBubblePaddingHorizontal)
	agentBubbleStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).Padding(chatBubblePaddingVertical, chatBubblePaddingHorizontal)
	systemBubbleStyle  = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("237")).Foreground(lipgloss.Color("245")).Padding(chatBubblePaddingVertical, chatBubblePaddingHorizontal)
	chatMetaStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Faint(true)
	stepActiveStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("110"))
	stepCompletedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("108"))
	stepFailedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
	indicatorIdleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	indicatorBusyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("178")).Bold(true)
	modalBorderStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("208")).Padding(0, 1)
	toastInfoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("29")).Bold(true)
	toastWarningStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("136")).Bold(true)
	toastErrorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("230")).Background(lipgloss.Color("160")).Bold(true)
)
