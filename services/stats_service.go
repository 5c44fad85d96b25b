package services

import (
	"context"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/pakuniscraper/api/model"
	"github.com/pakuniscraper/api/utils/cache"
	"gorm.io/gorm"
)

// StatsService computes read-only rollups over the university store. It
// keeps no state of its own; everything derives from the records.
type StatsService struct {
	db    *gorm.DB
	cache *cache.RedisCache // nil when Redis is not configured
}

// NewStatsService creates a new stats service. cache may be nil.
func NewStatsService(db *gorm.DB, redisCache *cache.RedisCache) *StatsService {
	return &StatsService{db: db, cache: redisCache}
}

const statsCacheTTL = 60 * time.Second

// OverviewStats are the top-level platform counts
type OverviewStats struct {
	TotalUniversities  int64            `json:"total_universities"`
	ActiveUniversities int64            `json:"active_universities"`
	WithData           int64            `json:"with_data"`
	RecentlyScraped    int64            `json:"recently_scraped_7d"`
	ByStatus           map[string]int64 `json:"by_status"`
	DataTypeCounts     map[string]int64 `json:"data_type_counts"`
}

// BreakdownStats are per-university groupings
type BreakdownStats struct {
	ByCity               map[string]int64 `json:"by_city"`
	ByType               map[string]int64 `json:"by_type"`
	ByCompletenessBucket map[string]int64 `json:"by_completeness"`
	TopByDataVolume      []DataVolume     `json:"top_by_data_volume"`
}

// DataVolume ranks a university by how many data items it holds
type DataVolume struct {
	ID    uint   `json:"id"`
	Name  string `json:"name"`
	Items int    `json:"items"`
}

// ScrapingStats summarize scrape attempt outcomes across all history
type ScrapingStats struct {
	TotalAttempts int64        `json:"total_attempts"`
	Successes     int64        `json:"successes"`
	Failures      int64        `json:"failures"`
	Partials      int64        `json:"partials"`
	SuccessRate   float64      `json:"success_rate"`
	CommonErrors  []ErrorCount `json:"common_errors"`
}

// ErrorCount is one recurring truncated error message
type ErrorCount struct {
	Message string `json:"message"`
	Count   int64  `json:"count"`
}

// FreshnessStats bucket universities by the age of their last scrape
type FreshnessStats struct {
	VeryFresh    int64 `json:"very_fresh"`    // < 1 day
	Fresh        int64 `json:"fresh"`         // <= 7 days
	Moderate     int64 `json:"moderate"`      // <= 30 days
	Stale        int64 `json:"stale"`         // > 30 days
	NeverScraped int64 `json:"never_scraped"`
}

// SearchAnalytics are discovery-oriented rollups
type SearchAnalytics struct {
	TopPrograms        []NameCount        `json:"top_programs"`
	CommonScholarships []NameCount        `json:"common_scholarships"`
	UpcomingDeadlines  []UpcomingDeadline `json:"upcoming_deadlines"`
	FeeRanges          map[string]int64   `json:"fee_ranges"` // approximate buckets
}

// NameCount is a generic name/occurrences pair
type NameCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// UpcomingDeadline is one future admission deadline
type UpcomingDeadline struct {
	University string    `json:"university"`
	Program    string    `json:"program"`
	Term       string    `json:"term"`
	Type       string    `json:"type"`
	Deadline   time.Time `json:"deadline"`
}

// GetOverview computes the top-level counts, cached briefly when Redis is
// available.
func (s *StatsService) GetOverview(ctx context.Context) (*OverviewStats, error) {
	const cacheKey = "stats:overview"
	if s.cache != nil {
		var cached OverviewStats
		if err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	stats := &OverviewStats{
		ByStatus:       make(map[string]int64),
		DataTypeCounts: make(map[string]int64),
	}

	if err := s.db.Model(&model.University{}).Count(&stats.TotalUniversities).Error; err != nil {
		return nil, fmt.Errorf("failed to count universities: %w", err)
	}
	if err := s.db.Model(&model.University{}).Where("is_active = ?", true).Count(&stats.ActiveUniversities).Error; err != nil {
		return nil, fmt.Errorf("failed to count active universities: %w", err)
	}
	if err := s.db.Model(&model.University{}).
		Where("is_active = ? AND data_completeness > 0", true).
		Count(&stats.WithData).Error; err != nil {
		return nil, fmt.Errorf("failed to count universities with data: %w", err)
	}

	sevenDaysAgo := time.Now().AddDate(0, 0, -7)
	if err := s.db.Model(&model.University{}).
		Where("is_active = ? AND last_scraped >= ?", true, sevenDaysAgo).
		Count(&stats.RecentlyScraped).Error; err != nil {
		return nil, fmt.Errorf("failed to count recently scraped: %w", err)
	}

	type statusRow struct {
		ScrapingStatus string
		Count          int64
	}
	var statusRows []statusRow
	if err := s.db.Model(&model.University{}).
		Select("scraping_status, count(*) as count").
		Where("is_active = ?", true).
		Group("scraping_status").
		Scan(&statusRows).Error; err != nil {
		return nil, fmt.Errorf("failed to group by status: %w", err)
	}
	for _, row := range statusRows {
		stats.ByStatus[row.ScrapingStatus] = row.Count
	}

	// Per-data-type presence requires looking inside the jsonb lists
	active, err := s.fetchActive()
	if err != nil {
		return nil, err
	}
	for _, u := range active {
		if len(u.Data.AdmissionDates) > 0 {
			stats.DataTypeCounts["admission_dates"]++
		}
		if len(u.Data.Criteria) > 0 {
			stats.DataTypeCounts["criteria"]++
		}
		if len(u.Data.FeeStructure) > 0 {
			stats.DataTypeCounts["fee_structure"]++
		}
		if len(u.Data.Scholarships) > 0 {
			stats.DataTypeCounts["scholarships"]++
		}
	}

	s.cacheSet(ctx, cacheKey, stats)
	return stats, nil
}

// GetBreakdown groups active universities by city, type and completeness
// bucket and ranks the top N by data volume.
func (s *StatsService) GetBreakdown(ctx context.Context, topN int) (*BreakdownStats, error) {
	if topN <= 0 {
		topN = 10
	}

	active, err := s.fetchActive()
	if err != nil {
		return nil, err
	}

	stats := &BreakdownStats{
		ByCity:               make(map[string]int64),
		ByType:               make(map[string]int64),
		ByCompletenessBucket: make(map[string]int64),
	}

	volumes := make([]DataVolume, 0, len(active))
	for _, u := range active {
		if u.City != "" {
			stats.ByCity[u.City]++
		}
		if u.Type != "" {
			stats.ByType[u.Type]++
		}
		stats.ByCompletenessBucket[fmt.Sprintf("%d", u.DataCompleteness)]++

		items := len(u.Data.AdmissionDates) + len(u.Data.Criteria) +
			len(u.Data.FeeStructure) + len(u.Data.Scholarships)
		if items > 0 {
			volumes = append(volumes, DataVolume{ID: u.ID, Name: u.Name, Items: items})
		}
	}

	sort.Slice(volumes, func(i, j int) bool { return volumes[i].Items > volumes[j].Items })
	if len(volumes) > topN {
		volumes = volumes[:topN]
	}
	stats.TopByDataVolume = volumes

	return stats, nil
}

// GetScrapingPerformance aggregates success/fail/partial rates and the most
// common error messages across all history entries.
func (s *StatsService) GetScrapingPerformance(ctx context.Context, topErrors int) (*ScrapingStats, error) {
	if topErrors <= 0 {
		topErrors = 5
	}

	active, err := s.fetchActive()
	if err != nil {
		return nil, err
	}

	stats := &ScrapingStats{}
	errorCounts := make(map[string]int64)
	for _, u := range active {
		for _, attempt := range u.ScrapingHistory {
			stats.TotalAttempts++
			switch attempt.Status {
			case model.AttemptSuccess:
				stats.Successes++
			case model.AttemptFailed:
				stats.Failures++
			case model.AttemptPartial:
				stats.Partials++
			}
			if attempt.ErrorMessage != "" {
				errorCounts[attempt.ErrorMessage]++
			}
		}
	}

	if stats.TotalAttempts > 0 {
		stats.SuccessRate = float64(stats.Successes) / float64(stats.TotalAttempts)
	}

	for message, count := range errorCounts {
		stats.CommonErrors = append(stats.CommonErrors, ErrorCount{Message: message, Count: count})
	}
	sort.Slice(stats.CommonErrors, func(i, j int) bool {
		if stats.CommonErrors[i].Count != stats.CommonErrors[j].Count {
			return stats.CommonErrors[i].Count > stats.CommonErrors[j].Count
		}
		return stats.CommonErrors[i].Message < stats.CommonErrors[j].Message
	})
	if len(stats.CommonErrors) > topErrors {
		stats.CommonErrors = stats.CommonErrors[:topErrors]
	}

	return stats, nil
}

// GetFreshness buckets active universities by scrape age
func (s *StatsService) GetFreshness(ctx context.Context) (*FreshnessStats, error) {
	active, err := s.fetchActive()
	if err != nil {
		return nil, err
	}

	stats := &FreshnessStats{}
	now := time.Now()
	for _, u := range active {
		bucket := FreshnessBucket(u.LastScraped, now)
		switch bucket {
		case "very_fresh":
			stats.VeryFresh++
		case "fresh":
			stats.Fresh++
		case "moderate":
			stats.Moderate++
		case "stale":
			stats.Stale++
		default:
			stats.NeverScraped++
		}
	}
	return stats, nil
}

// GetSearchAnalytics computes discovery rollups, cached briefly
func (s *StatsService) GetSearchAnalytics(ctx context.Context) (*SearchAnalytics, error) {
	const cacheKey = "stats:search-analytics"
	if s.cache != nil {
		var cached SearchAnalytics
		if err := s.cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			return &cached, nil
		}
	}

	active, err := s.fetchActive()
	if err != nil {
		return nil, err
	}

	programCounts := make(map[string]int64)
	scholarshipCounts := make(map[string]int64)
	feeRanges := map[string]int64{
		"under_50k":    0,
		"50k_to_100k":  0,
		"100k_to_200k": 0,
		"over_200k":    0,
	}
	var deadlines []UpcomingDeadline
	now := time.Now()

	for _, u := range active {
		for _, program := range u.ProgramsOffered {
			programCounts[program]++
		}
		for _, sch := range u.Data.Scholarships {
			scholarshipCounts[sch.Name]++
		}
		for _, fee := range u.Data.FeeStructure {
			amount, ok := ApproximateAmount(fee.TotalPerSemester)
			if !ok {
				continue
			}
			switch {
			case amount < 50_000:
				feeRanges["under_50k"]++
			case amount < 100_000:
				feeRanges["50k_to_100k"]++
			case amount < 200_000:
				feeRanges["100k_to_200k"]++
			default:
				feeRanges["over_200k"]++
			}
		}
		for _, date := range u.Data.AdmissionDates {
			if date.Deadline.Before(now) {
				continue
			}
			deadlines = append(deadlines, UpcomingDeadline{
				University: u.Name,
				Program:    date.Program,
				Term:       date.Term,
				Type:       date.Type,
				Deadline:   date.Deadline,
			})
		}
	}

	sort.Slice(deadlines, func(i, j int) bool { return deadlines[i].Deadline.Before(deadlines[j].Deadline) })
	if len(deadlines) > 10 {
		deadlines = deadlines[:10]
	}

	analytics := &SearchAnalytics{
		TopPrograms:        topCounts(programCounts, 10),
		CommonScholarships: topCounts(scholarshipCounts, 10),
		UpcomingDeadlines:  deadlines,
		FeeRanges:          feeRanges,
	}

	s.cacheSet(ctx, cacheKey, analytics)
	return analytics, nil
}

// FreshnessBucket classifies one last_scraped timestamp
func FreshnessBucket(lastScraped *time.Time, now time.Time) string {
	if lastScraped == nil {
		return "never_scraped"
	}
	age := now.Sub(*lastScraped)
	switch {
	case age < 24*time.Hour:
		return "very_fresh"
	case age <= 7*24*time.Hour:
		return "fresh"
	case age <= 30*24*time.Hour:
		return "moderate"
	default:
		return "stale"
	}
}

func (s *StatsService) fetchActive() ([]model.University, error) {
	var universities []model.University
	if err := s.db.Where("is_active = ?", true).Find(&universities).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch universities: %w", err)
	}
	return universities, nil
}

func (s *StatsService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.SetJSON(ctx, key, value, statsCacheTTL); err != nil {
		log.Printf("[STATS] Failed to cache %s: %v", key, err)
	}
}

func topCounts(counts map[string]int64, n int) []NameCount {
	out := make([]NameCount, 0, len(counts))
	for name, count := range counts {
		out = append(out, NameCount{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
