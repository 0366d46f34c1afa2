package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/rovshanmuradov/launchguard/internal/amm"
	"github.com/rovshanmuradov/launchguard/internal/guard"
	"github.com/rovshanmuradov/launchguard/internal/logger"
	"github.com/rovshanmuradov/launchguard/internal/pricing"
)

// Палитра
var (
	Cyan    = lipgloss.Color("#00E5FF")
	Magenta = lipgloss.Color("#FF1B6B")
	Yellow  = lipgloss.Color("#FFB500")
	Green   = lipgloss.Color("#2AFFAA")
	Red     = lipgloss.Color("#FF5555")
	Muted   = lipgloss.Color("#6C7280")
	Text    = lipgloss.Color("#ECEFF4")
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(Cyan)
	labelStyle = lipgloss.NewStyle().Foreground(Muted).Width(20)
	valueStyle = lipgloss.NewStyle().Foreground(Text)
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(Magenta).
			Padding(0, 1)
)

// phaseStyle: мониторинг подсвечивается как предупреждение.
func phaseStyle(p guard.Phase) lipgloss.Style {
	if p == guard.PhaseMonitoring {
		return lipgloss.NewStyle().Bold(true).Foreground(Yellow)
	}
	return lipgloss.NewStyle().Bold(true).Foreground(Green)
}

type row struct {
	label string
	value string
}

func panel(title string, rows []row) string {
	lines := make([]string, 0, len(rows)+1)
	lines = append(lines, titleStyle.Render(title))
	for _, r := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top,
			labelStyle.Render(r.label), valueStyle.Render(r.value)))
	}
	return panelStyle.Render(strings.Join(lines, "\n"))
}

func u64(v uint64) string {
	return strconv.FormatUint(v, 10)
}

func renderLaunch(s *guard.LaunchState, auth *amm.Authority) string {
	rows := []row{
		{"Mint", s.Mint.String()},
		{"Pool", s.Pool.String()},
		{"Authority", s.Authority.String()},
		{"Launch slot", u64(s.LaunchSlot)},
		{"Reserve tokens", u64(s.ReserveTokens)},
	}
	if auth != nil {
		rows = append(rows, row{"Manager", fmt.Sprintf("%s (bump %d)", auth.Address, auth.Bump)})
	}
	return panel("Launch initialized", rows)
}

func renderStatus(snap *guard.Snapshot, pool *amm.PoolState) string {
	s := snap.State
	rows := []row{
		{"Mint", s.Mint.String()},
		{"Phase", phaseStyle(snap.Phase).Render(snap.Phase.String())},
		{"Current slot", u64(snap.CurrentSlot)},
		{"Window ends at", u64(snap.WindowEndsAt)},
		{"Captured value", pricing.FormatLamports(s.CapturedValue)},
		{"Reserve tokens", u64(s.ReserveTokens)},
		{"Available reserve", u64(snap.AvailableReserve)},
		{"Counter-traded", u64(s.CounterTradedTokens)},
		{"Flagged traders", strconv.Itoa(snap.Flagged)},
	}
	if !s.LastFlaggedTrader.IsZero() {
		rows = append(rows, row{"Last flagged", logger.ShortAddress(s.LastFlaggedTrader.String())})
	}
	if pool != nil {
		rows = append(rows,
			row{"Pool value", u64(pool.ValueReserve)},
			row{"Pool tokens", u64(pool.TokenReserve)},
			row{"Spot price", pool.Price()},
		)
	}
	return panel("Launch status", rows)
}

func renderTrade(side guard.Side, res *guard.TradeResult) string {
	rows := []row{
		{"Side", side.String()},
		{"Path", res.Kind.String()},
		{"Phase", phaseStyle(res.Phase).Render(res.Phase.String())},
		{"Slot", u64(res.Slot)},
		{"Value", u64(res.ValueAmount)},
		{"Tokens", u64(res.TokenAmount)},
	}
	if res.Kind == guard.KindMonitoredBuy {
		rows = append(rows, row{"Counter-sold", u64(res.CounterTokens)})
	}
	return panel("Trade executed", rows)
}

func renderFlagged(flagged []guard.FlaggedTrader) string {
	if len(flagged) == 0 {
		return lipgloss.NewStyle().Foreground(Muted).Render("no flagged traders")
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Muted)).
		Headers("TRADER", "DETECTIONS", "CAPTURED", "FIRST SLOT", "LAST SLOT").
		StyleFunc(func(r, _ int) lipgloss.Style {
			if r == table.HeaderRow {
				return lipgloss.NewStyle().Bold(true).Foreground(Cyan).Padding(0, 1)
			}
			return lipgloss.NewStyle().Padding(0, 1)
		})
	for _, f := range flagged {
		t.Row(f.Trader.String(), u64(f.Detections), u64(f.CapturedValue), u64(f.FirstSlot), u64(f.LastSlot))
	}
	return t.String()
}
