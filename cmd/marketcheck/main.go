package main

// This script runs the connection health guard against the configured API
// endpoint and prints the resulting status. Useful to verify an endpoint,
// network ID, and contract address combination before deploying the daemon.

import (
	"context"
	"flag"
	"fmt"
	"os"

	log "github.com/golang/glog"

	"github.com/9Nieo/petworld-market/pkg/eth"
	"github.com/9Nieo/petworld-market/pkg/helpers"
	"github.com/9Nieo/petworld-market/pkg/utils"
)

func main() {
	config := &utils.MarketConfig{}
	flag.Usage = func() {
		config.OutputUsage()
		os.Exit(0)
	}
	flag.Parse()

	err := config.PopulateFromEnv()
	if err != nil {
		config.OutputUsage()
		log.Errorf("Invalid market config: err: %v\n", err)
		os.Exit(2)
	}

	guard := helpers.HealthGuard(config)
	report := guard.EnsureUsable(context.Background())

	fmt.Printf("endpoint: %v\n", config.EthAPIURL)
	fmt.Printf("status: %v\n", report.Status)
	if report.Reason != "" {
		fmt.Printf("reason: %v\n", report.Reason)
	}
	if report.Status == eth.StatusUnusable {
		os.Exit(1)
	}
}
