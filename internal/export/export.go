// Package export serializes analysis results to the output files and the
// console table.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/david/auction-analyzer/internal/config"
	"github.com/david/auction-analyzer/internal/models"
)

// Exporter writes an analysis result in the supported formats. Filenames
// default from config; callers can override per call.
type Exporter struct {
	cfg *config.Config
}

func New(cfg *config.Config) *Exporter {
	return &Exporter{cfg: cfg}
}

// JSON writes the full analysis result, pretty-printed. Returns the path
// written.
func (e *Exporter) JSON(result models.AnalysisResult, filename string) (string, error) {
	if filename == "" {
		filename = e.cfg.Output.JSONFile
	}
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", fmt.Errorf("export json: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return "", fmt.Errorf("export json: %w", err)
	}
	return filename, nil
}

// csvColumns is the CSV header. New columns are appended at the end, never
// inserted, so downstream spreadsheets keep working across versions.
var csvColumns = []string{
	"id", "address", "city", "state", "zip_code", "region",
	"auction_price", "estimated_arv", "estimated_repairs",
	"bedrooms", "bathrooms", "sqft", "lot_size", "year_built", "property_type",
	"auction_date", "auction_platform",
	"neighborhood_score", "occupancy", "condition",
	"profit_potential", "profit_margin", "total_investment", "max_bid_price",
	"deal_score", "recommended",
	"foreclosing_entity", "total_debt", "loan_type", "default_date", "foreclosure_stage",
	"property_url", "bank_contact_url",
	"annual_tax", "hoa_fee", "monthly_rent",
	"source", "provenance",
	"lat", "lon", "last_sale_date", "last_sale_price",
}

// CSV writes one row per property in csvColumns order. An empty property
// list is an error, matching the other exports' behavior of never producing
// a header-only file.
func (e *Exporter) CSV(props []models.Property, filename string) (string, error) {
	if filename == "" {
		filename = e.cfg.Output.CSVFile
	}
	if len(props) == 0 {
		return "", fmt.Errorf("export csv: no properties to export")
	}

	f, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("export csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvColumns); err != nil {
		return "", fmt.Errorf("export csv: %w", err)
	}
	for i := range props {
		if err := w.Write(csvRow(&props[i])); err != nil {
			return "", fmt.Errorf("export csv: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("export csv: %w", err)
	}
	return filename, nil
}

func csvRow(p *models.Property) []string {
	var lat, lon string
	if p.Geo != nil {
		lat = num(p.Geo.Lat)
		lon = num(p.Geo.Lon)
	}
	var saleDate, salePrice string
	if p.LastSale != nil {
		saleDate = p.LastSale.Date
		salePrice = num(p.LastSale.Price)
	}
	prov := make([]string, len(p.Provenance))
	for i, s := range p.Provenance {
		prov[i] = string(s)
	}

	return []string{
		p.ID, p.Address, p.City, p.State, p.ZipCode, p.Region,
		num(p.AuctionPrice), num(p.EstimatedARV), num(p.EstimatedRepairs),
		strconv.Itoa(p.Bedrooms), num(p.Bathrooms), strconv.Itoa(p.Sqft),
		num(p.LotSize), strconv.Itoa(p.YearBuilt), p.PropertyType,
		p.AuctionDate, p.AuctionPlatform,
		strconv.Itoa(p.NeighborhoodScore), string(p.Occupancy), string(p.Condition),
		num(p.ProfitPotential), num(p.ProfitMargin), num(p.TotalInvestment), num(p.MaxBidPrice),
		num(p.DealScore), strconv.FormatBool(p.Recommended),
		p.ForeclosingEntity, num(p.TotalDebt), p.LoanType, p.DefaultDate, p.ForeclosureStage,
		p.PropertyURL, p.BankContactURL,
		num(p.AnnualTax), num(p.HOAFee), num(p.MonthlyRent),
		string(p.Source), strings.Join(prov, "|"),
		lat, lon, saleDate, salePrice,
	}
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// TextReport writes a formatted top-deals report. The input must already be
// sorted; the report preserves the caller's order.
func (e *Exporter) TextReport(props []models.Property, count int, filename string) (string, error) {
	if filename == "" {
		filename = e.cfg.Output.TextFile
	}
	if count <= 0 || count > len(props) {
		count = len(props)
	}

	var b strings.Builder
	rule := strings.Repeat("=", 80)
	thin := strings.Repeat("-", 80)

	fmt.Fprintf(&b, "%s\nTOP %d AUCTION PROPERTY DEALS\n%s\n\n", rule, count, rule)

	for i := 0; i < count; i++ {
		p := &props[i]

		regionStr := ""
		if p.Region != "" {
			regionStr = fmt.Sprintf(" (%s)", p.Region)
		}
		fmt.Fprintf(&b, "#%d - %s, %s%s, %s\n%s\n", i+1, p.Address, p.City, regionStr, p.State, thin)
		fmt.Fprintf(&b, "Property ID: %s\n", p.ID)
		fmt.Fprintf(&b, "Auction Date: %s\n", p.AuctionDate)
		fmt.Fprintf(&b, "Platform: %s\n", p.AuctionPlatform)

		if p.ForeclosingEntity != "" {
			b.WriteString("\nFORECLOSURE CONTEXT:\n")
			fmt.Fprintf(&b, "  Foreclosing Entity:  %s\n", p.ForeclosingEntity)
			if p.TotalDebt > 0 {
				fmt.Fprintf(&b, "  Total Debt:          $%12.0f\n", p.TotalDebt)
			}
			if p.LoanType != "" {
				fmt.Fprintf(&b, "  Loan Type:           %s\n", p.LoanType)
			}
			if p.DefaultDate != "" {
				fmt.Fprintf(&b, "  Default Date:        %s\n", p.DefaultDate)
			}
			if p.ForeclosureStage != "" {
				fmt.Fprintf(&b, "  Stage:               %s\n", p.ForeclosureStage)
			}
		}

		b.WriteString("\nPRICING:\n")
		fmt.Fprintf(&b, "  Auction Price:     $%12.0f\n", p.AuctionPrice)
		fmt.Fprintf(&b, "  Estimated Value:   $%12.0f\n", p.EstimatedARV)
		fmt.Fprintf(&b, "  Total Investment:  $%12.0f\n", p.TotalInvestment)
		fmt.Fprintf(&b, "  Profit Potential:  $%12.0f\n\n", p.ProfitPotential)

		b.WriteString("METRICS:\n")
		fmt.Fprintf(&b, "  Profit Margin:     %11.1f%%\n", p.ProfitMargin)
		fmt.Fprintf(&b, "  Deal Score:        %11.1f/100\n", p.DealScore)
		fmt.Fprintf(&b, "  Max Bid Price:     $%12.0f\n", p.MaxBidPrice)
		fmt.Fprintf(&b, "  Recommended:       %14s\n\n", yesNo(p.Recommended))

		b.WriteString("PROPERTY DETAILS:\n")
		fmt.Fprintf(&b, "  %d bed / %.1f bath | %d sqft | Built %d\n", p.Bedrooms, p.Bathrooms, p.Sqft, p.YearBuilt)
		fmt.Fprintf(&b, "  Neighborhood Score: %d/10\n\n", p.NeighborhoodScore)

		costs := p.CostBreakdown(e.cfg.Costs)
		b.WriteString("COST BREAKDOWN:\n")
		fmt.Fprintf(&b, "  Purchase:      $%12.0f\n", costs["auction_price"])
		fmt.Fprintf(&b, "  Repairs:       $%12.0f\n", costs["repairs"])
		fmt.Fprintf(&b, "  Closing:       $%12.0f\n", costs["closing_costs"])
		fmt.Fprintf(&b, "  Holding:       $%12.0f\n", costs["holding_costs"])
		fmt.Fprintf(&b, "  Selling:       $%12.0f\n", costs["selling_costs"])
		fmt.Fprintf(&b, "  %s\n", strings.Repeat("-", 40))
		fmt.Fprintf(&b, "  Total:         $%12.0f\n\n\n", costs["total_investment"])
	}

	if err := os.WriteFile(filename, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("export text: %w", err)
	}
	return filename, nil
}

// All writes every enabled format and returns the files created, keyed by
// format name.
func (e *Exporter) All(result models.AnalysisResult) (map[string]string, error) {
	files := make(map[string]string)

	path, err := e.JSON(result, "")
	if err != nil {
		return files, err
	}
	files["json"] = path

	if len(result.AllProperties) > 0 {
		path, err = e.CSV(result.AllProperties, "")
		if err != nil {
			return files, err
		}
		files["csv"] = path
	}

	path, err = e.TextReport(result.AllProperties, 20, "")
	if err != nil {
		return files, err
	}
	files["report"] = path

	return files, nil
}

func yesNo(v bool) string {
	if v {
		return "Yes"
	}
	return "No"
}
