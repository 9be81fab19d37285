package bot

import (
	"context"
	"time"

	"market-maker-simulator/internal/database"
	"market-maker-simulator/internal/ledger"
	"market-maker-simulator/internal/platform/metrics"
	"market-maker-simulator/internal/trader"

	"go.uber.org/zap"
)

// JournalHandler appends every cycle to the journal. A failed write is logged and trading
// goes on; the journal is never the source of truth.
func JournalHandler(journal database.Service, logger *zap.Logger) ReportHandler {
	return ReportHandlerFunc(func(ctx context.Context, report *trader.Report, status ledger.Status) {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := journal.RecordCycle(ctx, report); err != nil {
			logger.Error("Failed to journal cycle "+report.ID.String(), zap.Error(err))
		}
	})
}

func MetricsHandler(m *metrics.Metrics) ReportHandler {
	return ReportHandlerFunc(func(ctx context.Context, report *trader.Report, status ledger.Status) {
		m.ObserveReport(report)
		m.ObserveStatus(status)
	})
}
