package services

import (
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/pakuniscraper/api/model"
	"github.com/pakuniscraper/api/utils/response"
	"gorm.io/gorm"
)

// SearchService builds filtered, paginated queries over the university store
// and expands nested data lists for per-item search endpoints
type SearchService struct {
	db *gorm.DB
}

// NewSearchService creates a new search service
func NewSearchService(db *gorm.DB) *SearchService {
	return &SearchService{db: db}
}

// UniversityFilter holds the coarse filters shared by all search endpoints
type UniversityFilter struct {
	City    string
	Type    string
	Country string
	Search  string // free text over name/description/keywords/programs
	HasData bool
	SortBy  string // name, priority, last_scraped, completeness
	Page    int
	Limit   int
}

// UniversityRef points an unwound item row back to its parent university
type UniversityRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	City string `json:"city"`
	Type string `json:"type"`
	URL  string `json:"url"`
}

// ProgramResult is one distinct program with the universities offering it
type ProgramResult struct {
	Program      string          `json:"program"`
	Count        int             `json:"count"`
	Universities []UniversityRef `json:"universities"`
}

// ScholarshipResult is one scholarship row with its parent university
type ScholarshipResult struct {
	model.Scholarship
	University UniversityRef `json:"university"`
}

// AdmissionDateResult is one admission date row with its parent university
type AdmissionDateResult struct {
	model.AdmissionDate
	University UniversityRef `json:"university"`
}

// FeeResult is one fee structure row with its parent university
type FeeResult struct {
	model.FeeStructure
	University UniversityRef `json:"university"`
}

// ListUniversities runs the base query: active records plus the caller's
// coarse filters, free-text match, sorting and pagination.
func (s *SearchService) ListUniversities(filter UniversityFilter) ([]model.University, response.PaginationMeta, error) {
	page, limit := response.ClampPageLimit(filter.Page, filter.Limit)

	query := s.baseQuery(filter)

	if filter.HasData {
		query = query.Where("data_completeness > 0")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, response.PaginationMeta{}, fmt.Errorf("failed to count universities: %w", err)
	}

	switch filter.SortBy {
	case "name":
		query = query.Order("name ASC")
	case "priority":
		query = query.Order("scraping_priority DESC")
	case "last_scraped":
		query = query.Order("last_scraped DESC NULLS LAST")
	case "completeness":
		query = query.Order("data_completeness DESC")
	default:
		query = query.Order("created_at DESC")
	}

	var universities []model.University
	if err := query.Limit(limit).Offset((page - 1) * limit).Find(&universities).Error; err != nil {
		return nil, response.PaginationMeta{}, fmt.Errorf("failed to fetch universities: %w", err)
	}

	return universities, response.CalculatePagination(page, limit, total), nil
}

// SearchPrograms groups programs across filtered universities and ranks them
// by popularity, then alphabetically.
func (s *SearchService) SearchPrograms(filter UniversityFilter, programQuery string) ([]ProgramResult, response.PaginationMeta, error) {
	universities, err := s.fetchForUnwind(filter)
	if err != nil {
		return nil, response.PaginationMeta{}, err
	}

	results := GroupPrograms(universities, programQuery)
	paged, meta := paginateSlice(results, filter.Page, filter.Limit)
	return paged, meta, nil
}

// GroupPrograms unwinds program lists across universities and groups them
// by name (case-insensitive), ranked by popularity then alphabetically
func GroupPrograms(universities []model.University, programQuery string) []ProgramResult {
	grouped := make(map[string]*ProgramResult)
	for _, u := range universities {
		ref := refOf(u)
		for _, program := range u.ProgramsOffered {
			if programQuery != "" && !containsFold(program, programQuery) {
				continue
			}
			key := strings.ToLower(program)
			if entry, ok := grouped[key]; ok {
				entry.Count++
				entry.Universities = append(entry.Universities, ref)
			} else {
				grouped[key] = &ProgramResult{
					Program:      program,
					Count:        1,
					Universities: []UniversityRef{ref},
				}
			}
		}
	}

	results := make([]ProgramResult, 0, len(grouped))
	for _, entry := range grouped {
		results = append(results, *entry)
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Count != results[j].Count {
			return results[i].Count > results[j].Count
		}
		return results[i].Program < results[j].Program
	})
	return results
}

// SearchScholarships unwinds scholarship lists with renewable and free-text
// filters, sorted alphabetically by scholarship name.
func (s *SearchService) SearchScholarships(filter UniversityFilter, text string, renewable *bool) ([]ScholarshipResult, response.PaginationMeta, error) {
	universities, err := s.fetchForUnwind(filter)
	if err != nil {
		return nil, response.PaginationMeta{}, err
	}

	var results []ScholarshipResult
	for _, u := range universities {
		ref := refOf(u)
		for _, sch := range u.Data.Scholarships {
			if renewable != nil && sch.Renewable != *renewable {
				continue
			}
			if text != "" && !scholarshipMatches(sch, text) {
				continue
			}
			results = append(results, ScholarshipResult{Scholarship: sch, University: ref})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Name < results[j].Name
	})

	paged, meta := paginateSlice(results, filter.Page, filter.Limit)
	return paged, meta, nil
}

// SearchAdmissionDates unwinds admission date lists with term/type filters
// and an upcoming-only flag, sorted by deadline ascending.
func (s *SearchService) SearchAdmissionDates(filter UniversityFilter, term, dateType string, upcomingOnly bool, now time.Time) ([]AdmissionDateResult, response.PaginationMeta, error) {
	universities, err := s.fetchForUnwind(filter)
	if err != nil {
		return nil, response.PaginationMeta{}, err
	}

	results := FilterAdmissionDates(universities, term, dateType, upcomingOnly, now)
	paged, meta := paginateSlice(results, filter.Page, filter.Limit)
	return paged, meta, nil
}

// FilterAdmissionDates unwinds admission date lists across universities,
// keeping entries matching the term substring, exact type, and (when
// upcomingOnly is set) deadlines at or after now, sorted by deadline
func FilterAdmissionDates(universities []model.University, term, dateType string, upcomingOnly bool, now time.Time) []AdmissionDateResult {
	var results []AdmissionDateResult
	for _, u := range universities {
		ref := refOf(u)
		for _, date := range u.Data.AdmissionDates {
			if term != "" && !containsFold(date.Term, term) {
				continue
			}
			if dateType != "" && date.Type != dateType {
				continue
			}
			if upcomingOnly && date.Deadline.Before(now) {
				continue
			}
			results = append(results, AdmissionDateResult{AdmissionDate: date, University: ref})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Deadline.Before(results[j].Deadline)
	})
	return results
}

// SearchFees unwinds fee structures with a program substring filter and an
// approximate ceiling on the per-semester total. The ceiling comparison is a
// digit-extraction heuristic over the formatted amount string, not an exact
// numeric comparison.
func (s *SearchService) SearchFees(filter UniversityFilter, program string, maxPerSemester int64) ([]FeeResult, response.PaginationMeta, error) {
	universities, err := s.fetchForUnwind(filter)
	if err != nil {
		return nil, response.PaginationMeta{}, err
	}

	var results []FeeResult
	for _, u := range universities {
		ref := refOf(u)
		for _, fee := range u.Data.FeeStructure {
			if program != "" && !containsFold(fee.Program, program) {
				continue
			}
			if maxPerSemester > 0 {
				amount, ok := ApproximateAmount(fee.TotalPerSemester)
				if !ok || amount > maxPerSemester {
					continue
				}
			}
			results = append(results, FeeResult{FeeStructure: fee, University: ref})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		ai, _ := ApproximateAmount(results[i].TotalPerSemester)
		aj, _ := ApproximateAmount(results[j].TotalPerSemester)
		return ai < aj
	})

	paged, meta := paginateSlice(results, filter.Page, filter.Limit)
	return paged, meta, nil
}

// baseQuery applies the always-on is_active filter plus coarse equality and
// substring filters. Free text is a case-insensitive contains match across
// name, description, keywords and programs (jsonb cast to text).
func (s *SearchService) baseQuery(filter UniversityFilter) *gorm.DB {
	query := s.db.Model(&model.University{}).Where("is_active = ?", true)

	if filter.City != "" {
		query = query.Where("city ILIKE ?", "%"+filter.City+"%")
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Country != "" {
		query = query.Where("country ILIKE ?", "%"+filter.Country+"%")
	}
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		query = query.Where(
			"name ILIKE ? OR description ILIKE ? OR keywords::text ILIKE ? OR programs_offered::text ILIKE ?",
			pattern, pattern, pattern, pattern,
		)
	}

	return query
}

// fetchForUnwind loads the coarse-filtered universities whose nested lists
// the per-item endpoints expand in memory
func (s *SearchService) fetchForUnwind(filter UniversityFilter) ([]model.University, error) {
	var universities []model.University
	if err := s.baseQuery(filter).Find(&universities).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch universities: %w", err)
	}
	return universities, nil
}

func refOf(u model.University) UniversityRef {
	return UniversityRef{ID: u.ID, Name: u.Name, City: u.City, Type: u.Type, URL: u.URL}
}

func scholarshipMatches(sch model.Scholarship, text string) bool {
	if containsFold(sch.Name, text) || containsFold(sch.Coverage, text) {
		return true
	}
	for _, e := range sch.Eligibility {
		if containsFold(e, text) {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

// ApproximateAmount extracts the digits of a formatted amount string
// ("PKR 125,000/semester" -> 125000). Heuristic: all digit runs are
// concatenated after stripping separators, so amounts embedded in prose may
// over-read. Callers must treat comparisons as approximate.
func ApproximateAmount(formatted string) (int64, bool) {
	var digits []rune
	for _, r := range formatted {
		if unicode.IsDigit(r) {
			digits = append(digits, r)
		}
	}
	if len(digits) == 0 || len(digits) > 15 {
		return 0, false
	}
	var amount int64
	for _, d := range digits {
		amount = amount*10 + int64(d-'0')
	}
	return amount, true
}

// paginateSlice applies the standard page/limit clamping to an in-memory
// result slice
func paginateSlice[T any](items []T, page, limit int) ([]T, response.PaginationMeta) {
	page, limit = response.ClampPageLimit(page, limit)
	total := int64(len(items))
	meta := response.CalculatePagination(page, limit, total)

	start := (page - 1) * limit
	if start >= len(items) {
		return []T{}, meta
	}
	end := start + limit
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], meta
}
