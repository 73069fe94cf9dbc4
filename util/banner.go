package util

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/deemkeen/copse/domain"
	"github.com/samber/lo"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#7D56F4"))
	faintStyle = lipgloss.NewStyle().Faint(true)
)

// Banner renders the startup summary: name, version, listen address and the
// loaded federation partners.
func Banner(conf *AppConfig, peers []domain.Peer) string {
	header := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render(GetNameAndVersion()),
		faintStyle.Render("serving "+conf.ApiBaseURL()+" on "+conf.Conf.Host+":"+strconv.Itoa(conf.Conf.HttpPort)),
	)
	if len(peers) == 0 {
		return lipgloss.JoinVertical(lipgloss.Left, header, faintStyle.Render("no peers configured"))
	}

	rows := lo.Map(peers, func(p domain.Peer, _ int) []string {
		return []string{p.Name, p.BaseURL, lo.Ternary(p.Enabled, "yes", "no")}
	})
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("PEER", "BASE URL", "ENABLED").
		Rows(rows...)
	return lipgloss.JoinVertical(lipgloss.Left, header, t.String())
}
