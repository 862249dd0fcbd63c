// Package marketmain contains the shared logic for the market engine
// daemon binaries.
package marketmain

import (
	"context"
	"os"
	"runtime"
	"time"

	"github.com/ethereum/go-ethereum/common"
	log "github.com/golang/glog"
	"github.com/robfig/cron"

	"github.com/9Nieo/petworld-market/pkg/eth"
	"github.com/9Nieo/petworld-market/pkg/helpers"
	"github.com/9Nieo/petworld-market/pkg/market"
	"github.com/9Nieo/petworld-market/pkg/model"
	"github.com/9Nieo/petworld-market/pkg/utils"
)

const (
	checkRunSecs = 5

	refreshRunTimeout = 5 * time.Minute
)

func checkCron(cr *cron.Cron) {
	entries := cr.Entries()
	for _, entry := range entries {
		log.Infof("Market run times: prev: %v, next: %v\n", entry.Prev, entry.Next)
	}
}

// runMarketCron runs one scheduled pass: validate the endpoint, sweep
// expired cache entries, and re-aggregate page 1 of every quality so the
// page cache stays warm.
func runMarketCron(engine *market.MarketEngine, guard *eth.HealthGuard) {
	ctx, cancel := context.WithTimeout(context.Background(), refreshRunTimeout)
	defer cancel()

	report := guard.EnsureUsable(ctx)
	if report.Status != eth.StatusReady {
		log.Errorf("Skipping market run, endpoint %v: %v", report.Status, report.Reason)
		return
	}

	engine.SweepExpired()

	counts, err := engine.ListedCountByQuality(ctx)
	if err != nil {
		log.Errorf("Error counting listings: err: %v", err)
		return
	}

	for quality := model.QualityCommon; quality <= model.QualityLegendary; quality++ {
		if counts[quality] == 0 {
			continue
		}
		_, err = engine.GetPage(ctx, quality, model.SortPriceAsc, "", 1, true)
		if err != nil {
			log.Errorf("Error refreshing %v page 1: err: %v", quality, err)
		}
	}

	log.Infof("Done running market refresh: counts: %v, goroutines: %v", counts, runtime.NumGoroutine())
}

// MarketCronMain contains the logic to run the market engine daemon using
// a cronjob for cache sweeps and refreshes, plus the chain log watcher for
// mutation-driven invalidation.
func MarketCronMain(config *utils.MarketConfig) {
	engine, guard, err := helpers.MarketEngine(config)
	if err != nil {
		log.Errorf("Error building market engine: err: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	synchronizer := market.NewMutationSynchronizer(engine)
	go synchronizer.Run(ctx)

	report := guard.EnsureUsable(ctx)
	if report.Status == eth.StatusUnusable {
		log.Errorf("No usable endpoint at startup: %v", report.Reason)
		os.Exit(1)
	}

	filterer, ok := report.Client.(market.LogFilterer)
	if !ok {
		log.Errorf("Client for %v cannot filter logs, mutation watch disabled", config.EthAPIURL)
	} else {
		watcher, watchErr := market.NewLogWatcher(&market.NewLogWatcherParams{
			Filterer:        filterer,
			ContractAddress: common.HexToAddress(config.ContractAddress),
			Synchronizer:    synchronizer,
		})
		if watchErr != nil {
			log.Errorf("Error building log watcher: err: %v", watchErr)
			os.Exit(1)
		}
		go watcher.Run(ctx)
	}

	cr := cron.New()
	err = cr.AddFunc(config.CronConfig, func() { runMarketCron(engine, guard) })
	if err != nil {
		log.Errorf("Error starting: err: %v", err)
		os.Exit(1)
	}
	cr.Start()

	// Blocks here while the cron process runs
	for range time.After(checkRunSecs * time.Second) {
		checkCron(cr)
	}
}
