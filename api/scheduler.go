/*
scheduler.go - Automated billing cycle scheduler

PURPOSE:
  Periodically runs the billing maintenance pass so credit-account cycles
  close and reopen without manual intervention.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Every pass is idempotent: close-through and insert-if-absent both
    no-op when a previous pass (or a manual trigger) already did the work
  - Misconfigured accounts are skipped and logged, never halt the pass
  - Survives downtime: the first pass after a restart catches up on every
    missed closing in one sweep

CONFIGURATION:
  - CheckInterval: How often to run (default: 24 hours)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewBillingScheduler(svc)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: RunBilling endpoint (manual trigger)
  - finance/billing.go: RunBillingCycleMaintenance
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/finance-engine/finance"
)

// BillingScheduler runs billing cycle maintenance on a timer.
type BillingScheduler struct {
	Service       *finance.Service
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan bool
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewBillingScheduler creates a new scheduler.
func NewBillingScheduler(svc *finance.Service) *BillingScheduler {
	return &BillingScheduler{
		Service:       svc,
		CheckInterval: 24 * time.Hour,
		Enabled:       true,
		stop:          make(chan bool),
	}
}

// Start begins the scheduler.
func (bs *BillingScheduler) Start() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if !bs.Enabled {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}

	bs.ticker = time.NewTicker(bs.CheckInterval)
	bs.wg.Add(1)

	go bs.run()

	log.Printf("[Scheduler] Started with check interval: %v", bs.CheckInterval)
}

// Stop stops the scheduler.
func (bs *BillingScheduler) Stop() {
	bs.mu.Lock()
	defer bs.mu.Unlock()

	if bs.ticker != nil {
		bs.ticker.Stop()
		close(bs.stop)
		bs.wg.Wait()
		log.Println("[Scheduler] Stopped")
	}
}

func (bs *BillingScheduler) run() {
	defer bs.wg.Done()

	// Run immediately on start to catch up after downtime.
	bs.runPass()

	for {
		select {
		case <-bs.ticker.C:
			bs.runPass()
		case <-bs.stop:
			return
		}
	}
}

func (bs *BillingScheduler) runPass() {
	ctx := context.Background()

	summary, err := bs.Service.RunBillingCycleMaintenance(ctx)
	if err != nil {
		log.Printf("[Scheduler] Billing pass failed: %v", err)
		return
	}
	if summary.CyclesClosed > 0 || summary.CyclesOpened > 0 {
		log.Printf("[Scheduler] Billing pass: %d accounts, %d closed, %d opened",
			summary.AccountsSeen, summary.CyclesClosed, summary.CyclesOpened)
	}
}

// RunNow triggers an immediate pass (for testing/admin).
func (bs *BillingScheduler) RunNow() {
	bs.runPass()
}

// GetNextRunTime returns when the next scheduled pass will occur.
func (bs *BillingScheduler) GetNextRunTime() time.Time {
	return time.Now().Add(bs.CheckInterval)
}
