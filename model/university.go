package model

import (
	"time"

	"gorm.io/gorm"
)

// Scraping lifecycle states for a university record
const (
	StatusPending   = "pending"
	StatusScraping  = "scraping"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusPaused    = "paused"
)

// Scrape attempt outcomes recorded into history
const (
	AttemptSuccess = "success"
	AttemptFailed  = "failed"
	AttemptPartial = "partial"
)

// Admission date types
const (
	DateTypeApplication   = "application"
	DateTypeTest          = "test"
	DateTypeMeritList     = "merit_list"
	DateTypeFee           = "fee"
	DateTypeSemesterStart = "semester_start"
)

// ValidTerms lists the accepted academic terms
var ValidTerms = []string{"Fall", "Spring", "Summer", "Winter"}

// ValidDateTypes lists the accepted admission date types
var ValidDateTypes = []string{
	DateTypeApplication, DateTypeTest, DateTypeMeritList, DateTypeFee, DateTypeSemesterStart,
}

// MaxScrapingHistory bounds the per-university history list; oldest entries
// are evicted first.
const MaxScrapingHistory = 10

// ContactInfo holds optional contact details for a university
type ContactInfo struct {
	Phone   string `json:"phone,omitempty"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

// Ranking holds optional national/international ranking numbers
type Ranking struct {
	National      int `json:"national,omitempty"`
	International int `json:"international,omitempty"`
}

// AdmissionDate is one extracted admission deadline entry
type AdmissionDate struct {
	Program  string    `json:"program"`
	Deadline time.Time `json:"deadline"`
	Term     string    `json:"term"` // Fall, Spring, Summer, Winter
	Type     string    `json:"type"` // application, test, merit_list, fee, semester_start
}

// AdmissionCriteria is one extracted admission requirement entry
type AdmissionCriteria struct {
	Program           string   `json:"program"`
	MinMarks          string   `json:"min_marks"` // formatted, e.g. "60%"
	RequiredTests     []string `json:"required_tests"`
	RequiredSubjects  []string `json:"required_subjects"`
	OtherRequirements []string `json:"other_requirements"`
}

// FeeStructure is one extracted per-program fee entry. Amounts are formatted
// strings as found on university pages ("PKR 50,000"), not parsed numbers.
type FeeStructure struct {
	Program          string            `json:"program"`
	TuitionFee       string            `json:"tuition_fee"`
	AdmissionFee     string            `json:"admission_fee"`
	OtherFees        map[string]string `json:"other_fees,omitempty"`
	TotalPerSemester string            `json:"total_per_semester"`
	Currency         string            `json:"currency"`
}

// Scholarship is one extracted scholarship entry
type Scholarship struct {
	Name        string     `json:"name"`
	Amount      string     `json:"amount"`
	Eligibility []string   `json:"eligibility"`
	Deadline    *time.Time `json:"deadline,omitempty"`
	Coverage    string     `json:"coverage"`
	Renewable   bool       `json:"renewable"`
}

// ExtractedData groups the four scraped data categories
type ExtractedData struct {
	AdmissionDates []AdmissionDate     `json:"admission_dates"`
	Criteria       []AdmissionCriteria `json:"criteria"`
	FeeStructure   []FeeStructure      `json:"fee_structure"`
	Scholarships   []Scholarship       `json:"scholarships"`
}

// DataTimestamps records when each data category was last overwritten
type DataTimestamps struct {
	AdmissionDates *time.Time `json:"admission_dates,omitempty"`
	Criteria       *time.Time `json:"criteria,omitempty"`
	FeeStructure   *time.Time `json:"fee_structure,omitempty"`
	Scholarships   *time.Time `json:"scholarships,omitempty"`
}

// ScrapeAttempt is one entry in a university's scraping history
type ScrapeAttempt struct {
	Timestamp     time.Time      `json:"timestamp"`
	Status        string         `json:"status"` // success, failed, partial
	PagesScraped  int            `json:"pages_scraped"`
	DataExtracted map[string]int `json:"data_extracted,omitempty"`
	ErrorMessage  string         `json:"error_message,omitempty"`
}

// University represents one Pakistani university document with its scraping
// lifecycle state and AI-extracted admission data
type University struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"type:varchar(255);not null;uniqueIndex" json:"name"`
	URL  string `gorm:"type:varchar(255);not null;uniqueIndex" json:"url"`
	City string `gorm:"type:varchar(100);index" json:"city"`
	Type string `gorm:"type:varchar(20);index" json:"type"` // public, private

	Country string `gorm:"type:varchar(100);default:Pakistan" json:"country"`

	ScrapingStatus      string     `gorm:"type:varchar(20);default:pending;index" json:"scraping_status"`
	LastScraped         *time.Time `json:"last_scraped"`
	NextScrapeScheduled *time.Time `json:"next_scrape_scheduled"`
	ScrapingPriority    int        `gorm:"default:5" json:"scraping_priority"` // 1..10

	ContactInfo     ContactInfo     `gorm:"type:jsonb;serializer:json" json:"contact_info"`
	ProgramsOffered []string        `gorm:"type:jsonb;serializer:json" json:"programs_offered"`
	Ranking         Ranking         `gorm:"type:jsonb;serializer:json" json:"ranking"`
	Keywords        []string        `gorm:"type:jsonb;serializer:json" json:"keywords"`
	Description     string          `gorm:"type:text" json:"description"`
	Data            ExtractedData   `gorm:"type:jsonb;serializer:json" json:"data"`
	DataLastUpdated DataTimestamps  `gorm:"type:jsonb;serializer:json" json:"data_last_updated"`
	ScrapingHistory []ScrapeAttempt `gorm:"type:jsonb;serializer:json" json:"scraping_history"`

	// Derived columns, recomputed on every save
	DataCompleteness int `json:"data_completeness"`
	TotalPrograms    int `json:"total_programs"`

	IsActive  bool   `gorm:"default:true;index" json:"is_active"`
	CreatedBy string `gorm:"type:varchar(100);default:system" json:"created_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeSave recomputes derived fields and enforces the history bound
func (u *University) BeforeSave(tx *gorm.DB) error {
	u.Recompute()
	return nil
}

// Recompute refreshes the derived fields and trims scraping history to the
// most recent MaxScrapingHistory entries.
func (u *University) Recompute() {
	u.DataCompleteness = u.Data.Completeness()
	u.TotalPrograms = len(u.ProgramsOffered)
	if n := len(u.ScrapingHistory); n > MaxScrapingHistory {
		u.ScrapingHistory = u.ScrapingHistory[n-MaxScrapingHistory:]
	}
}

// Completeness scores how many of the four data categories are present:
// 25 points per non-empty category.
func (d ExtractedData) Completeness() int {
	score := 0
	if len(d.AdmissionDates) > 0 {
		score += 25
	}
	if len(d.Criteria) > 0 {
		score += 25
	}
	if len(d.FeeStructure) > 0 {
		score += 25
	}
	if len(d.Scholarships) > 0 {
		score += 25
	}
	return score
}

// AppendScrapeAttempt appends a history entry, evicting the oldest if the
// bound is exceeded. When the attempt succeeded, last_scraped is stamped and
// the next scrape is scheduled a week out.
func (u *University) AppendScrapeAttempt(attempt ScrapeAttempt) {
	u.ScrapingHistory = append(u.ScrapingHistory, attempt)
	if len(u.ScrapingHistory) > MaxScrapingHistory {
		u.ScrapingHistory = u.ScrapingHistory[len(u.ScrapingHistory)-MaxScrapingHistory:]
	}
	if attempt.Status == AttemptSuccess {
		now := attempt.Timestamp
		next := now.Add(7 * 24 * time.Hour)
		u.LastScraped = &now
		u.NextScrapeScheduled = &next
	}
}

// RecentHistory returns up to n most recent history entries, newest first
func (u *University) RecentHistory(n int) []ScrapeAttempt {
	out := make([]ScrapeAttempt, 0, n)
	for i := len(u.ScrapingHistory) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, u.ScrapingHistory[i])
	}
	return out
}
