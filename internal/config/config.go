package config

import (
	"embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML embed.FS

// FetchConfig defines HTTP fetching configuration for a source family.
type FetchConfig struct {
	TimeoutSeconds int     `yaml:"timeout_seconds,omitempty"` // Default: 30
	MaxRetries     int     `yaml:"max_retries,omitempty"`     // Default: 3
	RateLimitRPS   float64 `yaml:"rate_limit_rps,omitempty"`  // Requests per second, default: 1.0
	ProxyURL       string  `yaml:"proxy_url,omitempty"`
	AcceptLanguage string  `yaml:"accept_language,omitempty"`
}

// Filters holds the default property filter thresholds.
type Filters struct {
	MinAuctionPrice float64  `yaml:"min_auction_price"`
	MaxAuctionPrice float64  `yaml:"max_auction_price"`
	MaxRepairCost   float64  `yaml:"max_repair_cost"`
	MinProfitMargin float64  `yaml:"min_profit_margin"`
	MinDealScore    float64  `yaml:"min_deal_score"`
	PropertyTypes   []string `yaml:"property_types"`
}

// Costs holds the fixed cost assumptions used by the metric formulas.
type Costs struct {
	ClosingCostPct         float64 `yaml:"closing_cost_pct"`
	HoldingMonths          int     `yaml:"holding_months"`
	HoldingCostPctPerMonth float64 `yaml:"holding_cost_pct_per_month"`
	SellingCostPct         float64 `yaml:"selling_cost_pct"`
	MaxBidARVFactor        float64 `yaml:"max_bid_arv_factor"`
	MaxBidSafetyFactor     float64 `yaml:"max_bid_safety_factor"`
}

// ScoreWeights holds the deal-score component weights. They must sum to 100.
type ScoreWeights struct {
	ProfitMargin     float64 `yaml:"profit_margin"`
	RepairEfficiency float64 `yaml:"repair_efficiency"`
	Neighborhood     float64 `yaml:"neighborhood"`
	Characteristics  float64 `yaml:"characteristics"`
}

// AlertLevels holds the profit-margin cutoffs for deal alerts.
type AlertLevels struct {
	Hot       float64 `yaml:"hot"`
	Excellent float64 `yaml:"excellent"`
	Good      float64 `yaml:"good"`
}

// CityZip is one target city and its representative ZIP code.
type CityZip struct {
	City string `yaml:"city"`
	Zip  string `yaml:"zip"`
}

// APIKeys holds credentials for the paid/free data APIs. Values come from
// ${ENV} expansion in the YAML, so unset keys are empty strings.
type APIKeys struct {
	AttomRapidAPI string `yaml:"attom_rapidapi"`
	BatchData     string `yaml:"batchdata"`
	Census        string `yaml:"census"`
	HUD           string `yaml:"hud"`
	Apify         string `yaml:"apify"`
}

// Output holds the export file names.
type Output struct {
	JSONFile string `yaml:"json_file"`
	CSVFile  string `yaml:"csv_file"`
	TextFile string `yaml:"text_file"`
}

// Config is the immutable configuration for one pipeline run. Construct it
// once via Default or Load and pass it down; nothing mutates it afterwards.
type Config struct {
	TargetStates     []string                       `yaml:"target_states"`
	Filters          Filters                        `yaml:"filters"`
	Costs            Costs                          `yaml:"costs"`
	Weights          ScoreWeights                   `yaml:"score_weights"`
	Alerts           AlertLevels                    `yaml:"alert_levels"`
	MergeTolerance   float64                        `yaml:"merge_tolerance"`
	SourcePrecedence []string                       `yaml:"source_precedence"`
	MockCount        int                            `yaml:"mock_count"`
	ActiveRegions    map[string][]string            `yaml:"active_regions"`
	Regions          map[string]map[string][]CityZip `yaml:"regions"`
	Platforms        []string                       `yaml:"platforms"`
	PlatformURLs     map[string]string              `yaml:"platform_urls"`
	BankContactURLs  map[string]string              `yaml:"bank_contact_urls"`
	PricePerSqft     map[string]float64             `yaml:"price_per_sqft"`
	SheriffCounties  []string                       `yaml:"sheriff_counties"`
	CountyFIPS       map[string]string              `yaml:"county_fips"`
	AuctionComStates []string                       `yaml:"auctioncom_states"`
	AuctionComMax    int                            `yaml:"auctioncom_max_items"`
	Fetch            map[string]FetchConfig         `yaml:"fetch"`
	Keys             APIKeys                        `yaml:"api_keys"`
	Output           Output                         `yaml:"output"`

	cityToRegion map[[2]string]string
}

// Default returns the embedded default configuration.
func Default() (*Config, error) {
	data, err := defaultsYAML.ReadFile("defaults.yaml")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded defaults: %w", err)
	}
	return parse(data)
}

// Load reads configuration from a file on disk, falling back to the embedded
// defaults when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	// Expand environment variables within the YAML content (e.g. ${ATTOM_API_KEY})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.buildLookups()
	return &cfg, nil
}

func (c *Config) validate() error {
	sum := c.Weights.ProfitMargin + c.Weights.RepairEfficiency +
		c.Weights.Neighborhood + c.Weights.Characteristics
	if sum != 100 {
		return fmt.Errorf("score weights must sum to 100, got %v", sum)
	}
	if c.Filters.MinAuctionPrice < 0 || c.Filters.MaxAuctionPrice < c.Filters.MinAuctionPrice {
		return fmt.Errorf("invalid auction price range %v-%v",
			c.Filters.MinAuctionPrice, c.Filters.MaxAuctionPrice)
	}
	if c.MergeTolerance < 0 {
		return fmt.Errorf("merge tolerance must be non-negative, got %v", c.MergeTolerance)
	}
	if len(c.SourcePrecedence) == 0 {
		return fmt.Errorf("source precedence list is empty")
	}
	return nil
}

func (c *Config) buildLookups() {
	c.cityToRegion = make(map[[2]string]string)
	for state, regions := range c.Regions {
		for region, cities := range regions {
			for _, cz := range cities {
				c.cityToRegion[[2]string{state, cz.City}] = region
			}
		}
	}
}

// RegionFor returns the configured region for a state/city pair, or "" when
// the city is not in the region tables.
func (c *Config) RegionFor(state, city string) string {
	return c.cityToRegion[[2]string{state, city}]
}

// RegionActive reports whether a region participates in scanning, honoring
// ActiveRegions: a missing or nil entry means all regions of the state are
// active, an empty list disables the state.
func (c *Config) RegionActive(state, region string) bool {
	allowed, ok := c.ActiveRegions[state]
	if !ok || allowed == nil {
		_, known := c.Regions[state]
		return known
	}
	for _, r := range allowed {
		if r == region {
			return true
		}
	}
	return false
}

// StateActive reports whether any region of the state is active.
func (c *Config) StateActive(state string) bool {
	allowed, ok := c.ActiveRegions[state]
	if !ok || allowed == nil {
		_, known := c.Regions[state]
		return known
	}
	return len(allowed) > 0
}

// ActiveCities returns the (city, zip, region) entries for every active
// region of every target state, in stable state/region order.
func (c *Config) ActiveCities() []TargetCity {
	var out []TargetCity
	for _, state := range c.TargetStates {
		regions, ok := c.Regions[state]
		if !ok {
			continue
		}
		names := make([]string, 0, len(regions))
		for region := range regions {
			names = append(names, region)
		}
		sort.Strings(names)
		for _, region := range names {
			if !c.RegionActive(state, region) {
				continue
			}
			for _, cz := range regions[region] {
				out = append(out, TargetCity{
					State: state, Region: region, City: cz.City, Zip: cz.Zip,
				})
			}
		}
	}
	return out
}

// TargetCity is one scan target resolved from the region tables.
type TargetCity struct {
	State  string
	Region string
	City   string
	Zip    string
}

// FetchFor returns the fetch settings for a source family, with defaults
// filled in for anything unset.
func (c *Config) FetchFor(family string) FetchConfig {
	fc := c.Fetch[family]
	if fc.TimeoutSeconds == 0 {
		fc.TimeoutSeconds = 30
	}
	if fc.MaxRetries == 0 {
		fc.MaxRetries = 3
	}
	if fc.RateLimitRPS == 0 {
		fc.RateLimitRPS = 1.0
	}
	if fc.AcceptLanguage == "" {
		fc.AcceptLanguage = "en-US,en;q=0.5"
	}
	return fc
}
