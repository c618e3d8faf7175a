package sources

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/david/auction-analyzer/internal/config"
	"github.com/david/auction-analyzer/internal/models"
)

var (
	streetNames = []string{
		"Oak", "Maple", "Cedar", "Pine", "Elm", "Willow", "River", "Lake",
		"Park", "Main", "Highland", "Valley", "Hill", "Garden", "Forest",
	}
	streetTypes = []string{"St", "Ave", "Dr", "Ln", "Ct", "Way", "Rd"}

	mockLoanTypes = []string{"Conventional", "FHA", "VA", "USDA", "Jumbo", "ARM", "Fixed-Rate"}
	mockStages    = []string{
		"Pre-Foreclosure", "Notice of Default", "Lis Pendens",
		"Auction Scheduled", "Bank Owned (REO)", "Short Sale",
	}
	mockOccupancies = []models.Occupancy{
		models.OccupancyOccupied, models.OccupancyVacant, models.OccupancyUnknown,
	}
	mockConditions = []models.Condition{
		models.ConditionCosmetic, models.ConditionModerate,
		models.ConditionHeavy, models.ConditionUnknown,
	}
)

// MockSource generates realistic synthetic auction listings for testing the
// pipeline without network access. The output mixes hot, excellent, good and
// mediocre deals in roughly equal parts.
type MockSource struct {
	cfg   *config.Config
	count int
	rng   *rand.Rand
}

// NewMockSource returns a generator producing count listings. A fixed seed
// makes the output reproducible; pass 0 to randomize from the clock.
func NewMockSource(cfg *config.Config, count int, seed int64) *MockSource {
	if count <= 0 {
		count = cfg.MockCount
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &MockSource{cfg: cfg, count: count, rng: rand.New(rand.NewSource(seed))}
}

func (m *MockSource) Kind() models.SourceKind { return models.SourceMock }
func (m *MockSource) Name() string            { return "mock generator" }

func (m *MockSource) Fetch(ctx context.Context) ([]Listing, error) {
	type target struct {
		state, region string
		city          config.CityZip
	}
	// Stable target and lender order keeps seeded output reproducible.
	var targets []target
	for _, state := range m.cfg.TargetStates {
		regions := make([]string, 0, len(m.cfg.Regions[state]))
		for region := range m.cfg.Regions[state] {
			regions = append(regions, region)
		}
		sort.Strings(regions)
		for _, region := range regions {
			for _, cz := range m.cfg.Regions[state][region] {
				targets = append(targets, target{state: state, region: region, city: cz})
			}
		}
	}
	if len(targets) == 0 {
		return nil, &SourceError{Source: models.SourceMock,
			Err: fmt.Errorf("no target cities configured")}
	}

	lenders := make([]string, 0, len(m.cfg.BankContactURLs))
	for lender := range m.cfg.BankContactURLs {
		lenders = append(lenders, lender)
	}
	sort.Strings(lenders)

	listings := make([]Listing, 0, m.count)
	for i := 0; i < m.count; i++ {
		t := targets[m.rng.Intn(len(targets))]

		bedrooms := 2 + m.rng.Intn(4)
		bathrooms := []float64{1.0, 1.5, 2.0, 2.5, 3.0, 3.5}[m.rng.Intn(6)]
		sqft := 1000 + m.rng.Intn(2501)
		yearBuilt := 1960 + m.rng.Intn(61)
		lotSize := 0.1 + m.rng.Float64()*0.4

		// ARV from sqft and the state's $/sqft, with some spread.
		perSqft := m.cfg.PricePerSqft[t.state]
		if perSqft == 0 {
			perSqft = 180
		}
		arv := float64(sqft) * perSqft * (0.9 + m.rng.Float64()*0.3)

		// Quarter each of hot / excellent / good / mediocre deals.
		var discount, repairPct float64
		switch dealType := m.rng.Float64(); {
		case dealType < 0.25:
			discount = 0.40 + m.rng.Float64()*0.12
			repairPct = []float64{0.05, 0.08, 0.10}[m.rng.Intn(3)]
		case dealType < 0.50:
			discount = 0.50 + m.rng.Float64()*0.10
			repairPct = []float64{0.08, 0.10, 0.12, 0.15}[m.rng.Intn(4)]
		case dealType < 0.75:
			discount = 0.60 + m.rng.Float64()*0.10
			repairPct = []float64{0.10, 0.12, 0.15, 0.18}[m.rng.Intn(4)]
		default:
			discount = 0.70 + m.rng.Float64()*0.15
			repairPct = []float64{0.15, 0.20, 0.25, 0.30}[m.rng.Intn(4)]
		}

		price := arv * discount
		if price < m.cfg.Filters.MinAuctionPrice {
			price = m.cfg.Filters.MinAuctionPrice + m.rng.Float64()*50000
		}
		if price > m.cfg.Filters.MaxAuctionPrice {
			price = m.cfg.Filters.MaxAuctionPrice - m.rng.Float64()*400000
		}

		lender := lenders[m.rng.Intn(len(lenders))]
		daysAhead := 1 + m.rng.Intn(45)
		monthsAgo := 3 + m.rng.Intn(16)

		hoa := 0.0
		if m.rng.Float64() < 0.2 {
			hoa = 25 + m.rng.Float64()*50
		}

		listings = append(listings, Listing{
			Address: fmt.Sprintf("%d %s %s",
				100+m.rng.Intn(9900),
				streetNames[m.rng.Intn(len(streetNames))],
				streetTypes[m.rng.Intn(len(streetTypes))]),
			City:    t.city.City,
			State:   t.state,
			ZipCode: t.city.Zip,

			Price:     round2(price),
			ARV:       round2(arv),
			Repairs:   round2(price * repairPct),
			Bedrooms:  bedrooms,
			Bathrooms: bathrooms,
			Sqft:      sqft,
			LotSize:   round2(lotSize),
			YearBuilt: yearBuilt,

			AuctionDate: time.Now().AddDate(0, 0, daysAhead).Format("2006-01-02"),
			Platform:    m.cfg.Platforms[m.rng.Intn(len(m.cfg.Platforms))],
			Description: fmt.Sprintf("Single family home in %s, %s. Property needs cosmetic updates and light repairs.",
				t.city.City, t.state),

			Occupancy:   mockOccupancies[m.rng.Intn(len(mockOccupancies))],
			Condition:   mockConditions[m.rng.Intn(len(mockConditions))],
			AnnualTax:   round2(arv * (0.008 + m.rng.Float64()*0.008)),
			HOAFee:      round2(hoa),
			MonthlyRent: round2(arv * (0.004 + m.rng.Float64()*0.003)),

			ForeclosingEntity: lender,
			TotalDebt:         round2(price * (1.1 + m.rng.Float64()*0.7)),
			LoanType:          mockLoanTypes[m.rng.Intn(len(mockLoanTypes))],
			DefaultDate:       time.Now().AddDate(0, 0, -monthsAgo*30).Format("2006-01-02"),
			ForeclosureStage:  mockStages[m.rng.Intn(len(mockStages))],

			RegionHint: t.region,
		})
	}

	return listings, nil
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
