package main

// This script drops every entry from the durable cache tier. Run it after
// switching the daemon to a different network so no listings from the old
// chain survive in the cache.

import (
	"flag"
	"fmt"
	"os"

	log "github.com/golang/glog"

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

	persister, err := helpers.CachePersister(config)
	if err != nil {
		log.Errorf("Error getting the cache persister: %v", err)
		os.Exit(1)
	}

	err = persister.DeleteAllEntries()
	if err != nil {
		log.Errorf("Error wiping the cache: %v", err)
		os.Exit(1)
	}

	fmt.Println("cache wiped")
}
