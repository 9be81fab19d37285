package bot

import (
	"context"
	"strconv"
	"time"

	"market-maker-simulator/internal/ledger"
	"market-maker-simulator/internal/trader"

	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/webhook"
	"go.uber.org/zap"
)

// Discord allows at most 25 fields per embed.
const (
	maxEmbedFields = 25
	summaryFields  = 6
)

// DiscordAlerter posts an embed for every cycle that filled orders. Sending happens on its own
// goroutine so a slow webhook never delays trading.
type DiscordAlerter struct {
	webhookUrl string
	timeout    time.Duration
	logger     *zap.Logger
}

func NewDiscordAlerter(webhookUrl string, logger *zap.Logger) *DiscordAlerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscordAlerter{webhookUrl: webhookUrl, timeout: 10 * time.Second, logger: logger}
}

func (alerter *DiscordAlerter) HandleReport(ctx context.Context, report *trader.Report, status ledger.Status) {
	if len(report.Taken) == 0 {
		return
	}
	embed := fillEmbed(assetsOf(report.Pair), report, status)
	go alerter.send(embed)
}

func (alerter *DiscordAlerter) send(embed discord.Embed) {
	ctx, cancel := context.WithTimeout(context.Background(), alerter.timeout)
	defer cancel()

	client, err := webhook.NewWithURL(alerter.webhookUrl)
	if err != nil {
		alerter.logger.Error("Failed to create discord session: " + err.Error())
		return
	}
	defer client.Close(ctx)

	if _, err := client.CreateEmbeds([]discord.Embed{embed}); err != nil {
		alerter.logger.Error("Failed to send message to discord: " + err.Error())
	}
}

func fillEmbed(a assets, report *trader.Report, status ledger.Status) discord.Embed {
	realized := report.Realized()
	builder := discord.NewEmbedBuilder().
		SetTitle("Simulated fills on " + report.Pair).
		SetColor(0x00ff00).
		AddField("Fills", strconv.Itoa(len(report.Taken)), true).
		AddField(a.base+" Change", realized.Base.String(), true).
		AddField(a.quote+" Change", realized.Quote.String(), true).
		AddField(a.base+" Balance", status.Base.String(), true).
		AddField(a.quote+" Balance", status.Quote.String(), true).
		AddField("\u200B", "\u200B", false)

	shown := report.Taken
	if limit := maxEmbedFields - summaryFields; len(shown) > limit {
		shown = shown[:limit-1]
	}
	for _, order := range shown {
		delta := order.FillDelta()
		builder.AddField(sideLabel(order.Side)+" @ "+order.Price.String(),
			order.Amount.String()+" ("+a.base+" "+delta.Base.String()+" "+a.quote+" "+delta.Quote.String()+")", false)
	}
	if hidden := len(report.Taken) - len(shown); hidden > 0 {
		builder.AddField("More", strconv.Itoa(hidden)+" more fills", false)
	}
	return builder.Build()
}
