package main

import (
	"flag"
	"os"

	log "github.com/golang/glog"

	"github.com/9Nieo/petworld-market/pkg/marketmain"
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

	marketmain.MarketCronMain(config)
}
