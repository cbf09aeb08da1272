package ui

import (
	"os"
	"strings"

	"github.com/gdamore/tcell/v2"
)

// Theme defines UI color tokens used across widgets and text tags.
type Theme struct {
	// Widget colors
	Bg          tcell.Color
	Surface     tcell.Color
	Border      tcell.Color
	FocusBorder tcell.Color
	SelectionBg tcell.Color
	SelectionFg tcell.Color
	TextPrimary tcell.Color
	TextMuted   tcell.Color
	Header      tcell.Color

	// Table colors
	TableHeader   tcell.Color
	TableHeaderBg tcell.Color
	TableRow      tcell.Color
	TableZebra1   tcell.Color
	TableZebra2   tcell.Color

	// Risk/severity (widgets)
	RiskHigh   tcell.Color
	RiskMedium tcell.Color
	RiskLow    tcell.Color
	RiskNone   tcell.Color

	// Text tag colors (for tview dynamic color markup)
	TagTextPrimary string
	TagMuted       string
	TagAccent      string
	TagSuccess     string
	TagWarning     string
	TagError       string
}

func hex(s string) tcell.Color { return tcell.GetColor(s) }

var themes = map[string]func() Theme{
	"dark":  themeDark,
	"light": themeLight,
	"neon":  themeNeon,
}

var themeOrder = []string{"neon", "dark", "light"}

// ThemeNames lists the selectable themes.
func ThemeNames() []string { return append([]string(nil), themeOrder...) }

func themeDark() Theme {
	return Theme{
		Bg:            hex("#0e1116"),
		Surface:       hex("#12161e"),
		Border:        hex("#2b3240"),
		FocusBorder:   hex("#4aa8ff"),
		SelectionBg:   hex("#2b3240"),
		SelectionFg:   hex("#cfd8e3"),
		TextPrimary:   hex("#e6edf3"),
		TextMuted:     hex("#8a939f"),
		Header:        hex("#eab308"),
		TableHeader:   hex("#eab308"),
		TableHeaderBg: hex("#1a2332"),
		TableRow:      hex("#e6edf3"),
		TableZebra1:   hex("#161c27"),
		TableZebra2:   hex("#121823"),
		RiskHigh:      hex("#ff5f5f"),
		RiskMedium:    hex("#ffd75f"),
		RiskLow:       hex("#87ffaf"),
		RiskNone:      hex("#87afff"),

		TagTextPrimary: "#e6edf3",
		TagMuted:       "#8a939f",
		TagAccent:      "#2dd4bf",
		TagSuccess:     "#22c55e",
		TagWarning:     "#f59e0b",
		TagError:       "#ef4444",
	}
}

func themeLight() Theme {
	return Theme{
		Bg:            hex("#f6f8fa"),
		Surface:       hex("#ffffff"),
		Border:        hex("#d0d7de"),
		FocusBorder:   hex("#1f6feb"),
		SelectionBg:   hex("#e2e8f0"),
		SelectionFg:   hex("#111827"),
		TextPrimary:   hex("#111827"),
		TextMuted:     hex("#6b7280"),
		Header:        hex("#1f2937"),
		TableHeader:   hex("#1f2937"),
		TableHeaderBg: hex("#e5e7eb"),
		TableRow:      hex("#111827"),
		TableZebra1:   hex("#ffffff"),
		TableZebra2:   hex("#f3f4f6"),
		RiskHigh:      hex("#b91c1c"),
		RiskMedium:    hex("#b45309"),
		RiskLow:       hex("#15803d"),
		RiskNone:      hex("#1d4ed8"),

		TagTextPrimary: "#111827",
		TagMuted:       "#6b7280",
		TagAccent:      "#2563eb",
		TagSuccess:     "#15803d",
		TagWarning:     "#b45309",
		TagError:       "#b91c1c",
	}
}

// Neon: vibrant but accessible on a dark surface
func themeNeon() Theme {
	return Theme{
		Bg:            hex("#0f0b14"),
		Surface:       hex("#14111a"),
		Border:        hex("#45385a"),
		FocusBorder:   hex("#ff79c6"),
		SelectionBg:   hex("#2a1f3d"),
		SelectionFg:   hex("#f8f5ff"),
		TextPrimary:   hex("#f8f5ff"),
		TextMuted:     hex("#b8a8c9"),
		Header:        hex("#ff79c6"),
		TableHeader:   hex("#ff79c6"),
		TableHeaderBg: hex("#301d49"),
		TableRow:      hex("#f8f5ff"),
		TableZebra1:   hex("#1a1426"),
		TableZebra2:   hex("#151020"),
		RiskHigh:      hex("#ff3b30"),
		RiskMedium:    hex("#ffd60a"),
		RiskLow:       hex("#34c759"),
		RiskNone:      hex("#0a84ff"),

		TagTextPrimary: "#f8f5ff",
		TagMuted:       "#b8a8c9",
		TagAccent:      "#ff6ac1",
		TagSuccess:     "#00d084",
		TagWarning:     "#ffd166",
		TagError:       "#ff5555",
	}
}

// detectTrueColor is a best-effort check without initializing the screen.
func detectTrueColor() bool {
	ct := strings.ToLower(os.Getenv("COLORTERM"))
	if strings.Contains(ct, "truecolor") || strings.Contains(ct, "24bit") {
		return true
	}
	term := strings.ToLower(os.Getenv("TERM"))
	return strings.Contains(term, "truecolor") || strings.Contains(term, "24bit") || strings.Contains(term, "256color")
}

// riskColor maps severity and risk labels ("High", "Medium", "Low",
// "No risk") to a widget color.
func (t Theme) riskColor(level string) tcell.Color {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "high", "critical":
		return t.RiskHigh
	case "medium":
		return t.RiskMedium
	case "low":
		return t.RiskLow
	case "no risk", "none", "info", "informational":
		return t.RiskNone
	}
	return t.TableRow
}
