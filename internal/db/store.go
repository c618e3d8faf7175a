package db

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/david/auction-analyzer/internal/models"
)

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// RunSummary is one analysis_runs row, minus the full statistics blob.
type RunSummary struct {
	RunID            uuid.UUID  `json:"run_id"`
	Status           string     `json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	TotalProperties  int        `json:"total_properties"`
	RecommendedDeals int        `json:"recommended_deals"`
	InvalidRecords   int        `json:"invalid_records"`
	DuplicatesMerged int        `json:"duplicates_merged"`
	FailedSources    []string   `json:"failed_sources"`
	AvgProfitMargin  float64    `json:"avg_profit_margin"`
	AvgDealScore     float64    `json:"avg_deal_score"`
	Error            string     `json:"error,omitempty"`
}

// RunDiagnostics carries the aggregator-level counters into the run row.
type RunDiagnostics struct {
	InvalidRecords   int
	DuplicatesMerged int
	FailedSources    []string
}

// BeginRun inserts a running analysis_runs row and returns its id.
func (s *Store) BeginRun(ctx context.Context) (uuid.UUID, error) {
	runID := uuid.New()
	_, err := s.pool.Exec(ctx,
		"INSERT INTO analysis_runs (run_id, status) VALUES ($1, 'running')", runID)
	if err != nil {
		return uuid.Nil, fmt.Errorf("begin run: %w", err)
	}
	return runID, nil
}

// CompleteRun marks the run finished and snapshots every property in one
// transaction. A partially written snapshot is never visible.
func (s *Store) CompleteRun(ctx context.Context, runID uuid.UUID, result models.AnalysisResult, diag RunDiagnostics) error {
	statsJSON, err := json.Marshal(result.Statistics)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	if diag.FailedSources == nil {
		diag.FailedSources = []string{}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE analysis_runs SET
			status = 'completed',
			completed_at = NOW(),
			total_properties = $2,
			recommended_deals = $3,
			invalid_records = $4,
			duplicates_merged = $5,
			failed_sources = $6,
			avg_profit_margin = $7,
			avg_deal_score = $8,
			statistics = $9
		WHERE run_id = $1
	`, runID, result.TotalProperties, result.RecommendedDeals,
		diag.InvalidRecords, diag.DuplicatesMerged, diag.FailedSources,
		result.AvgProfitMargin, result.AvgDealScore, statsJSON)
	if err != nil {
		return fmt.Errorf("complete run: %w", err)
	}

	for i := range result.AllProperties {
		p := &result.AllProperties[i]
		data, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("complete run: encode %s: %w", p.ID, err)
		}
		var auctionDate *string
		if p.AuctionDate != "" {
			auctionDate = &p.AuctionDate
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO properties (run_id, property_id, address, city, state,
				zip_code, region, auction_price, estimated_arv, profit_margin,
				deal_score, recommended, auction_date, source, data)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		`, runID, p.ID, p.Address, p.City, p.State, p.ZipCode, p.Region,
			p.AuctionPrice, p.EstimatedARV, p.ProfitMargin, p.DealScore,
			p.Recommended, auctionDate, string(p.Source), data)
		if err != nil {
			return fmt.Errorf("complete run: insert %s: %w", p.ID, err)
		}
	}

	return tx.Commit(ctx)
}

// FailRun marks the run failed with its error message.
func (s *Store) FailRun(ctx context.Context, runID uuid.UUID, runErr error) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE analysis_runs SET status = 'failed', completed_at = NOW(), error = $2
		WHERE run_id = $1
	`, runID, runErr.Error())
	if err != nil {
		return fmt.Errorf("fail run: %w", err)
	}
	return nil
}

const runCols = `run_id, status, started_at, completed_at, total_properties,
	recommended_deals, invalid_records, duplicates_merged, failed_sources,
	avg_profit_margin, avg_deal_score, COALESCE(error, '')`

func scanRun(scan func(dest ...interface{}) error) (RunSummary, error) {
	var r RunSummary
	err := scan(&r.RunID, &r.Status, &r.StartedAt, &r.CompletedAt,
		&r.TotalProperties, &r.RecommendedDeals, &r.InvalidRecords,
		&r.DuplicatesMerged, &r.FailedSources, &r.AvgProfitMargin,
		&r.AvgDealScore, &r.Error)
	return r, err
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.pool.Query(ctx,
		fmt.Sprintf("SELECT %s FROM analysis_runs ORDER BY started_at DESC LIMIT $1", runCols), limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	runs := []RunSummary{}
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun fetches one run summary.
func (s *Store) GetRun(ctx context.Context, runID uuid.UUID) (*RunSummary, error) {
	row := s.pool.QueryRow(ctx,
		fmt.Sprintf("SELECT %s FROM analysis_runs WHERE run_id = $1", runCols), runID)
	r, err := scanRun(row.Scan)
	if err != nil {
		return nil, fmt.Errorf("run not found: %w", err)
	}
	return &r, nil
}

// LatestRunID returns the most recent completed run, or uuid.Nil when none
// exists yet.
func (s *Store) LatestRunID(ctx context.Context) (uuid.UUID, error) {
	var runID uuid.UUID
	err := s.pool.QueryRow(ctx,
		"SELECT run_id FROM analysis_runs WHERE status = 'completed' ORDER BY started_at DESC LIMIT 1").Scan(&runID)
	if err == pgx.ErrNoRows {
		return uuid.Nil, nil
	}
	if err != nil {
		return uuid.Nil, fmt.Errorf("latest run: %w", err)
	}
	return runID, nil
}

// RunStatistics returns the stored statistics blob for a run.
func (s *Store) RunStatistics(ctx context.Context, runID uuid.UUID) (*models.Statistics, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		"SELECT statistics FROM analysis_runs WHERE run_id = $1", runID).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("run statistics: %w", err)
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("run statistics: run %s has no statistics", runID)
	}
	var stats models.Statistics
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, fmt.Errorf("run statistics: %w", err)
	}
	return &stats, nil
}

// ListParams filter a run's property snapshot. Zero values are no-ops.
type ListParams struct {
	State       string
	Region      string
	MinMargin   float64
	MaxPrice    float64
	MinScore    float64
	Recommended *bool
	SortBy      string // "score" (default), "margin", "price", "date"
	Limit       int
	Offset      int
}

type ListResult struct {
	Properties []models.Property `json:"properties"`
	Total      int               `json:"total"`
	Limit      int               `json:"limit"`
	Offset     int               `json:"offset"`
}

// ListProperties pages through one run's snapshot with optional filters.
func (s *Store) ListProperties(ctx context.Context, runID uuid.UUID, params ListParams) (*ListResult, error) {
	where, args := buildPropertyFilter(runID, params)
	argIdx := len(args) + 1

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM properties "+where, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("count failed: %w", err)
	}

	selectSQL := "SELECT data FROM properties " + where
	switch params.SortBy {
	case "margin":
		selectSQL += " ORDER BY profit_margin DESC, auction_price ASC"
	case "price":
		selectSQL += " ORDER BY auction_price ASC"
	case "date":
		selectSQL += " ORDER BY auction_date ASC NULLS LAST"
	default:
		selectSQL += " ORDER BY deal_score DESC, profit_margin DESC, auction_price ASC"
	}

	limit := params.Limit
	if limit <= 0 {
		limit = 50
	}
	selectSQL += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argIdx, argIdx+1)
	args = append(args, limit, params.Offset)

	rows, err := s.pool.Query(ctx, selectSQL, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	props := []models.Property{}
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		var p models.Property
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode failed: %w", err)
		}
		props = append(props, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration failed: %w", err)
	}

	return &ListResult{
		Properties: props,
		Total:      total,
		Limit:      limit,
		Offset:     params.Offset,
	}, nil
}

// buildPropertyFilter turns ListParams into a WHERE clause with positional
// args. Zero-valued filters add no clause.
func buildPropertyFilter(runID uuid.UUID, params ListParams) (string, []interface{}) {
	where := "WHERE run_id = $1"
	args := []interface{}{runID}
	argIdx := 2

	if params.State != "" {
		where += fmt.Sprintf(" AND state = $%d", argIdx)
		args = append(args, params.State)
		argIdx++
	}
	if params.Region != "" {
		where += fmt.Sprintf(" AND region = $%d", argIdx)
		args = append(args, params.Region)
		argIdx++
	}
	if params.MinMargin > 0 {
		where += fmt.Sprintf(" AND profit_margin >= $%d", argIdx)
		args = append(args, params.MinMargin)
		argIdx++
	}
	if params.MaxPrice > 0 {
		where += fmt.Sprintf(" AND auction_price <= $%d", argIdx)
		args = append(args, params.MaxPrice)
		argIdx++
	}
	if params.MinScore > 0 {
		where += fmt.Sprintf(" AND deal_score >= $%d", argIdx)
		args = append(args, params.MinScore)
		argIdx++
	}
	if params.Recommended != nil {
		where += fmt.Sprintf(" AND recommended = $%d", argIdx)
		args = append(args, *params.Recommended)
		argIdx++
	}

	return where, args
}

// GetProperty fetches one property from a run's snapshot.
func (s *Store) GetProperty(ctx context.Context, runID uuid.UUID, propertyID string) (*models.Property, error) {
	var raw []byte
	err := s.pool.QueryRow(ctx,
		"SELECT data FROM properties WHERE run_id = $1 AND property_id = $2",
		runID, propertyID).Scan(&raw)
	if err != nil {
		return nil, fmt.Errorf("not found: %w", err)
	}
	var p models.Property
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("decode failed: %w", err)
	}
	return &p, nil
}

// GetStats returns quick dashboard counters across all runs.
func (s *Store) GetStats(ctx context.Context) (map[string]interface{}, error) {
	stats := make(map[string]interface{})

	var runs int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM analysis_runs").Scan(&runs)
	stats["runs"] = runs

	var completed int
	s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM analysis_runs WHERE status = 'completed'").Scan(&completed)
	stats["completed_runs"] = completed

	latest, err := s.LatestRunID(ctx)
	if err == nil && latest != uuid.Nil {
		stats["latest_run_id"] = latest.String()

		var props, recommended int
		s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM properties WHERE run_id = $1", latest).Scan(&props)
		s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM properties WHERE run_id = $1 AND recommended", latest).Scan(&recommended)
		stats["latest_properties"] = props
		stats["latest_recommended"] = recommended

		stateCounts := map[string]int{}
		rows, err := s.pool.Query(ctx,
			"SELECT state, COUNT(*) FROM properties WHERE run_id = $1 GROUP BY state", latest)
		if err == nil {
			defer rows.Close()
			for rows.Next() {
				var state string
				var count int
				if scanErr := rows.Scan(&state, &count); scanErr == nil {
					stateCounts[state] = count
				}
			}
		}
		stats["latest_state_counts"] = stateCounts
	}

	return stats, nil
}
