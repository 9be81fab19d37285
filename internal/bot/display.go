package bot

import (
	"fmt"
	"strings"

	"market-maker-simulator/internal/domain"
	"market-maker-simulator/internal/ledger"
	"market-maker-simulator/internal/trader"

	"github.com/shopspring/decimal"
)

type assets struct {
	base  string
	quote string
}

// assetsOf splits "ETH:USDT" style pairs. Luno's "ETHMYR" style falls back to a 3/3 split.
func assetsOf(pair string) assets {
	if base, quote, ok := strings.Cut(pair, ":"); ok {
		return assets{base: base, quote: quote}
	}
	if len(pair) == 6 {
		return assets{base: pair[:3], quote: pair[3:]}
	}
	return assets{base: "BASE", quote: "QUOTE"}
}

func sideLabel(side domain.SideEnum) string {
	return strings.ToUpper(side.String())
}

func nullString(value decimal.NullDecimal) string {
	if !value.Valid {
		return "null"
	}
	return value.Decimal.String()
}

func statusLine(a assets, status ledger.Status) string {
	return fmt.Sprintf("STATUS: %s=%s %s=%s LOCKED_%s=%s(ASKS=%d) LOCKED_%s=%s(BIDS=%d)",
		a.base, status.Base, a.quote, status.Quote,
		a.base, status.PlacedBase, status.Asks,
		a.quote, status.PlacedQuote, status.Bids)
}

func reportLines(a assets, report *trader.Report) []string {
	lines := make([]string, 0, 1+len(report.Cancelled)+len(report.Taken)+len(report.Placed))
	lines = append(lines, fmt.Sprintf("BEST BID/ASK %s %s", nullString(report.BestBid), nullString(report.BestAsk)))

	for _, order := range report.Cancelled {
		makeValue := order.MakeValue()
		lines = append(lines, fmt.Sprintf("CANCELED %s @ %s %s (%s %s %s %s)",
			sideLabel(order.Side), order.Price, order.Amount, a.base, makeValue.Base, a.quote, makeValue.Quote))
	}
	for _, order := range report.Taken {
		delta := order.FillDelta()
		lines = append(lines, fmt.Sprintf("FILLED %s @ %s %s (%s %s %s %s)",
			sideLabel(order.Side), order.Price, order.Amount, a.base, delta.Base, a.quote, delta.Quote))
	}
	for _, order := range report.Placed {
		lines = append(lines, fmt.Sprintf("PLACED %s @ %s %s", sideLabel(order.Side), order.Price, order.Amount))
	}
	return lines
}

func (bot *Bot) display(report *trader.Report) {
	for _, line := range reportLines(bot.assets, report) {
		bot.loggers.App.Info(line)
	}
}

func (bot *Bot) displayStatus() {
	bot.loggers.App.Info(statusLine(bot.assets, bot.ledger.Status()))
}
