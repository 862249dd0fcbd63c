// Package utils contains various common utils separate by utility types
package utils

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/ethereum/go-ethereum/common"
	"github.com/kelseyhightower/envconfig"
	"github.com/robfig/cron"
)

// PersisterType is the type of durable cache persister to use.
type PersisterType int

const (
	// PersisterTypeInvalid is an invalid persister value
	PersisterTypeInvalid PersisterType = iota

	// PersisterTypeNone is a persister that does nothing but return default
	// values, leaving the cache memory-only
	PersisterTypeNone

	// PersisterTypeSqlite is a persister that uses a local SQLite file as
	// the backend
	PersisterTypeSqlite

	// PersisterTypePostgresql is a persister that uses PostgreSQL as the backend
	PersisterTypePostgresql
)

var (
	// PersisterNameToType maps valid persister names to the types above
	PersisterNameToType = map[string]PersisterType{
		"none":       PersisterTypeNone,
		"sqlite":     PersisterTypeSqlite,
		"postgresql": PersisterTypePostgresql,
	}
)

const (
	envVarPrefix = "market"

	usageListFormat = `The market engine is configured via environment vars only. The following environment variables can be used:
{{range .}}
{{usage_key .}}
  description: {{usage_description .}}
  type:        {{usage_type .}}
  default:     {{usage_default .}}
  required:    {{usage_required .}}
{{end}}
`
)

// MarketConfig is the master config for the market engine derived from
// environment variables.
type MarketConfig struct {
	CronConfig string `envconfig:"cron_config" required:"true" desc:"Cron config string * * * * *"`
	EthAPIURL  string `envconfig:"eth_api_url" required:"true" desc:"Ethereum API address"`

	NetworkID       int64  `split_words:"true" default:"56" desc:"Expected network/chain ID of the API endpoint"`
	ContractAddress string `split_words:"true" required:"true" desc:"Address of the marketplace contract"`

	CacheTTLSecs int `envconfig:"cache_ttl_secs" default:"1800" desc:"Listing cache TTL in seconds"`
	PageSize     int `split_words:"true" default:"10" desc:"Number of listings per aggregation page"`

	PersisterType            PersisterType `ignored:"true"`
	PersisterTypeName        string        `split_words:"true" required:"true" desc:"Sets the persister type to use"`
	PersisterSqlitePath      string        `split_words:"true" desc:"If persister type is Sqlite, sets the db file path"`
	PersisterPostgresAddress string        `split_words:"true" desc:"If persister type is Postgresql, sets the address"`
	PersisterPostgresPort    int           `split_words:"true" desc:"If persister type is Postgresql, sets the port"`
	PersisterPostgresDbname  string        `split_words:"true" desc:"If persister type is Postgresql, sets the database name"`
	PersisterPostgresUser    string        `split_words:"true" desc:"If persister type is Postgresql, sets the database user"`
	PersisterPostgresPw      string        `split_words:"true" desc:"If persister type is Postgresql, sets the database password"`
}

// OutputUsage prints the usage string to os.Stdout
func (c *MarketConfig) OutputUsage() {
	tabs := tabwriter.NewWriter(os.Stdout, 1, 0, 4, ' ', 0)
	_ = envconfig.Usagef(envVarPrefix, c, tabs, usageListFormat) // nolint: gosec
	_ = tabs.Flush()                                             // nolint: gosec
}

// PopulateFromEnv processes the environment vars, populates MarketConfig
// with the respective values, and validates the values.
func (c *MarketConfig) PopulateFromEnv() error {
	err := envconfig.Process(envVarPrefix, c)
	if err != nil {
		return err
	}

	err = c.validateCronConfig()
	if err != nil {
		return err
	}

	err = c.validateAPIURL()
	if err != nil {
		return err
	}

	err = c.validateContractAddress()
	if err != nil {
		return err
	}

	err = c.populatePersisterType()
	if err != nil {
		return err
	}

	return c.validatePersister()
}

func (c *MarketConfig) validateCronConfig() error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(c.CronConfig)
	if err != nil {
		return fmt.Errorf("Invalid cron config: '%v'", c.CronConfig)
	}
	return nil
}

func (c *MarketConfig) validateAPIURL() error {
	if c.EthAPIURL == "" || !IsValidEthAPIURL(c.EthAPIURL) {
		return fmt.Errorf("Invalid eth API URL: '%v'", c.EthAPIURL)
	}
	return nil
}

func (c *MarketConfig) validateContractAddress() error {
	if !common.IsHexAddress(c.ContractAddress) {
		return fmt.Errorf("Invalid marketplace contract address: '%v'", c.ContractAddress)
	}
	return nil
}

func (c *MarketConfig) populatePersisterType() error {
	var err error
	c.PersisterType, err = persisterTypeFromName(c.PersisterTypeName)
	return err
}

func (c *MarketConfig) validatePersister() error {
	if c.PersisterType == PersisterTypeSqlite {
		if c.PersisterSqlitePath == "" {
			return fmt.Errorf("Sqlite persister requires db file path")
		}
	}
	if c.PersisterType == PersisterTypePostgresql {
		if c.PersisterPostgresAddress == "" {
			return fmt.Errorf("Postgresql persister requires address")
		}
		if c.PersisterPostgresDbname == "" {
			return fmt.Errorf("Postgresql persister requires db name")
		}
	}
	return nil
}

func persisterTypeFromName(typeStr string) (PersisterType, error) {
	pType, ok := PersisterNameToType[typeStr]
	if !ok {
		validNames := make([]string, len(PersisterNameToType))
		index := 0
		for name := range PersisterNameToType {
			validNames[index] = name
			index++
		}
		return PersisterTypeInvalid,
			fmt.Errorf("Invalid persister value: %v; valid types %v", typeStr, validNames)
	}
	return pType, nil
}

// IsValidEthAPIURL returns true if the given URL is a usable http(s) or
// ws(s) Ethereum API endpoint address
func IsValidEthAPIURL(rawurl string) bool {
	parsed, err := url.Parse(rawurl)
	if err != nil {
		return false
	}
	if parsed.Host == "" {
		return false
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https", "ws", "wss":
		return true
	}
	return false
}
