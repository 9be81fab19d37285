package bot

import (
	"sync"
	"time"

	"market-maker-simulator/internal/domain"
	"market-maker-simulator/internal/ledger"
	"market-maker-simulator/internal/trader"
)

// Snapshot is a copy of the bot's state taken at the end of a cycle.
type Snapshot struct {
	Pair         string         `json:"pair"`
	Source       string         `json:"source"`
	Status       ledger.Status  `json:"status"`
	Orders       []domain.Order `json:"orders"`
	LastReport   *trader.Report `json:"lastReport,omitempty"`
	LastError    string         `json:"lastError,omitempty"`
	Cycles       int            `json:"cycles"`
	SkippedTicks int            `json:"skippedTicks"`
	UpdatedAt    time.Time      `json:"updatedAt"`
}

// View holds the latest Snapshot. The trading goroutine writes it, HTTP handlers read it.
type View struct {
	mutex    sync.RWMutex
	snapshot Snapshot
}

func (v *View) Load() Snapshot {
	v.mutex.RLock()
	defer v.mutex.RUnlock()
	return v.snapshot
}

func (v *View) Publish(snapshot Snapshot) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.snapshot = snapshot
}
