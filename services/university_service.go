package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/pakuniscraper/api/model"
	"github.com/pakuniscraper/api/utils/apperror"
	"github.com/pakuniscraper/api/utils/validation"
	"gorm.io/gorm"
)

// UniversityService owns the university record store: validation, uniqueness,
// lifecycle transitions and data overwrites
type UniversityService struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewUniversityService creates a new university service
func NewUniversityService(db *gorm.DB) *UniversityService {
	return &UniversityService{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// CreateUniversityInput is the validated input for creating a university
type CreateUniversityInput struct {
	Name             string            `json:"name" validate:"required,min=3,max=255"`
	URL              string            `json:"url" validate:"required,max=255"`
	City             string            `json:"city" validate:"omitempty,max=100"`
	Type             string            `json:"type" validate:"omitempty,oneof=public private"`
	Country          string            `json:"country" validate:"omitempty,max=100"`
	ScrapingPriority int               `json:"scraping_priority" validate:"omitempty,gte=1,lte=10"`
	ContactInfo      model.ContactInfo `json:"contact_info"`
	ProgramsOffered  []string          `json:"programs_offered"`
	Ranking          model.Ranking     `json:"ranking"`
	Keywords         []string          `json:"keywords"`
	Description      string            `json:"description"`
	CreatedBy        string            `json:"created_by" validate:"omitempty,max=100"`
}

// UpdateUniversityInput is the validated input for updating a university.
// Only non-zero fields are applied.
type UpdateUniversityInput struct {
	Name            string             `json:"name" validate:"omitempty,min=3,max=255"`
	URL             string             `json:"url" validate:"omitempty,max=255"`
	City            string             `json:"city" validate:"omitempty,max=100"`
	Type            string             `json:"type" validate:"omitempty,oneof=public private"`
	Country         string             `json:"country" validate:"omitempty,max=100"`
	ContactInfo     *model.ContactInfo `json:"contact_info"`
	ProgramsOffered []string           `json:"programs_offered"`
	Ranking         *model.Ranking     `json:"ranking"`
	Keywords        []string           `json:"keywords"`
	Description     *string            `json:"description"`
}

// Create validates input, enforces name/url uniqueness across all records
// (active or soft-deleted) and inserts a new pending record.
func (s *UniversityService) Create(input CreateUniversityInput) (*model.University, error) {
	if err := s.validator.ValidateStruct(input); err != nil {
		return nil, apperror.NewValidation("Validation failed", validation.FormatValidationErrors(err))
	}

	input.Name = validation.SanitizeString(input.Name)
	input.URL = validation.SanitizeString(input.URL)

	if !validation.ValidateURL(input.URL) {
		return nil, apperror.NewValidation("Validation failed", map[string]string{
			"url": "URL must start with http:// or https://",
		})
	}

	if err := s.checkUnique(input.Name, input.URL, 0); err != nil {
		return nil, err
	}

	university := model.University{
		Name:             input.Name,
		URL:              input.URL,
		City:             validation.SanitizeString(input.City),
		Type:             input.Type,
		Country:          defaultString(input.Country, "Pakistan"),
		ScrapingStatus:   model.StatusPending,
		ScrapingPriority: defaultInt(input.ScrapingPriority, 5),
		ContactInfo:      input.ContactInfo,
		ProgramsOffered:  input.ProgramsOffered,
		Ranking:          input.Ranking,
		Keywords:         input.Keywords,
		Description:      input.Description,
		IsActive:         true,
		CreatedBy:        defaultString(input.CreatedBy, "system"),
	}

	if err := s.db.Create(&university).Error; err != nil {
		return nil, fmt.Errorf("failed to create university: %w", err)
	}

	return &university, nil
}

// GetByID fetches one record by id, soft-deleted included
func (s *UniversityService) GetByID(id uint) (*model.University, error) {
	var university model.University
	if err := s.db.First(&university, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFound("University not found")
		}
		return nil, fmt.Errorf("failed to fetch university: %w", err)
	}
	return &university, nil
}

// GetActiveByID fetches one record by id; soft-deleted records are reported
// as not found. Public read endpoints go through this, while internal callers
// (uniqueness checks, idempotent delete) use GetByID.
func (s *UniversityService) GetActiveByID(id uint) (*model.University, error) {
	university, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !university.IsActive {
		return nil, apperror.NewNotFound("University not found")
	}
	return university, nil
}

// Update applies the non-zero fields of input, re-checking name/url
// uniqueness excluding the record itself.
func (s *UniversityService) Update(id uint, input UpdateUniversityInput) (*model.University, error) {
	if err := s.validator.ValidateStruct(input); err != nil {
		return nil, apperror.NewValidation("Validation failed", validation.FormatValidationErrors(err))
	}

	university, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		input.Name = validation.SanitizeString(input.Name)
		if err := s.checkUnique(input.Name, "", id); err != nil {
			return nil, err
		}
		university.Name = input.Name
	}
	if input.URL != "" {
		input.URL = validation.SanitizeString(input.URL)
		if !validation.ValidateURL(input.URL) {
			return nil, apperror.NewValidation("Validation failed", map[string]string{
				"url": "URL must start with http:// or https://",
			})
		}
		if err := s.checkUnique("", input.URL, id); err != nil {
			return nil, err
		}
		university.URL = input.URL
	}
	if input.City != "" {
		university.City = validation.SanitizeString(input.City)
	}
	if input.Type != "" {
		university.Type = input.Type
	}
	if input.Country != "" {
		university.Country = input.Country
	}
	if input.ContactInfo != nil {
		university.ContactInfo = *input.ContactInfo
	}
	if input.ProgramsOffered != nil {
		university.ProgramsOffered = input.ProgramsOffered
	}
	if input.Ranking != nil {
		university.Ranking = *input.Ranking
	}
	if input.Keywords != nil {
		university.Keywords = input.Keywords
	}
	if input.Description != nil {
		university.Description = *input.Description
	}

	if err := s.db.Save(university).Error; err != nil {
		return nil, fmt.Errorf("failed to update university: %w", err)
	}

	return university, nil
}

// SoftDelete flags the record inactive. Idempotent.
func (s *UniversityService) SoftDelete(id uint) error {
	university, err := s.GetByID(id)
	if err != nil {
		return err
	}

	if !university.IsActive {
		return nil
	}

	university.IsActive = false
	if err := s.db.Save(university).Error; err != nil {
		return fmt.Errorf("failed to soft-delete university: %w", err)
	}
	return nil
}

// SetPriority updates the scraping priority, validated to [1,10]
func (s *UniversityService) SetPriority(id uint, priority int) (*model.University, error) {
	if !validation.ValidatePriority(priority) {
		return nil, apperror.NewValidation("Validation failed", map[string]string{
			"scraping_priority": "scraping_priority must be between 1 and 10",
		})
	}

	university, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	university.ScrapingPriority = priority
	if err := s.db.Save(university).Error; err != nil {
		return nil, fmt.Errorf("failed to update priority: %w", err)
	}
	return university, nil
}

// SetStatus transitions the scraping status of a record
func (s *UniversityService) SetStatus(id uint, status string) error {
	result := s.db.Model(&model.University{}).Where("id = ?", id).Update("scraping_status", status)
	if result.Error != nil {
		return fmt.Errorf("failed to update status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NewNotFound("University not found")
	}
	return nil
}

// RecordScrapeOutcome appends a bounded history entry and updates the
// lifecycle state. A "completed" outcome stamps last_scraped and schedules
// the next scrape a week out.
func (s *UniversityService) RecordScrapeOutcome(id uint, status string, errorMessage string, pagesScraped int, dataExtracted map[string]int) error {
	university, err := s.GetByID(id)
	if err != nil {
		return err
	}

	attemptStatus := model.AttemptFailed
	switch status {
	case model.StatusCompleted:
		attemptStatus = model.AttemptSuccess
	case model.StatusPaused:
		attemptStatus = model.AttemptPartial
	}

	university.ScrapingStatus = status
	university.AppendScrapeAttempt(model.ScrapeAttempt{
		Timestamp:     time.Now(),
		Status:        attemptStatus,
		PagesScraped:  pagesScraped,
		DataExtracted: dataExtracted,
		ErrorMessage:  truncateError(errorMessage),
	})

	if err := s.db.Save(university).Error; err != nil {
		return fmt.Errorf("failed to record scrape outcome: %w", err)
	}
	return nil
}

// ReplaceExtractedData wholesale-replaces one data category and stamps its
// data_last_updated timestamp. Never merges.
func (s *UniversityService) ReplaceExtractedData(id uint, dataType string, items interface{}) (*model.University, error) {
	university, err := s.GetByID(id)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	switch dataType {
	case "admission_dates":
		dates, ok := items.([]model.AdmissionDate)
		if !ok {
			return nil, apperror.NewValidation("Invalid payload for admission_dates", nil)
		}
		university.Data.AdmissionDates = dates
		university.DataLastUpdated.AdmissionDates = &now
	case "criteria":
		criteria, ok := items.([]model.AdmissionCriteria)
		if !ok {
			return nil, apperror.NewValidation("Invalid payload for criteria", nil)
		}
		university.Data.Criteria = criteria
		university.DataLastUpdated.Criteria = &now
	case "fee_structure":
		fees, ok := items.([]model.FeeStructure)
		if !ok {
			return nil, apperror.NewValidation("Invalid payload for fee_structure", nil)
		}
		university.Data.FeeStructure = fees
		university.DataLastUpdated.FeeStructure = &now
	case "scholarships":
		scholarships, ok := items.([]model.Scholarship)
		if !ok {
			return nil, apperror.NewValidation("Invalid payload for scholarships", nil)
		}
		university.Data.Scholarships = scholarships
		university.DataLastUpdated.Scholarships = &now
	default:
		return nil, apperror.NewValidation("Unknown data type: "+dataType, nil)
	}

	if err := s.db.Save(university).Error; err != nil {
		return nil, fmt.Errorf("failed to replace %s: %w", dataType, err)
	}
	return university, nil
}

// FindScrapingQueue returns active records awaiting a scrape (pending or
// failed), highest priority first, least recently scraped first with
// never-scraped records at the front.
func (s *UniversityService) FindScrapingQueue(limit int) ([]model.University, error) {
	if limit < 1 {
		limit = 20
	}

	var universities []model.University
	err := s.db.
		Where("is_active = ?", true).
		Where("scraping_status IN ?", []string{model.StatusPending, model.StatusFailed}).
		Order("scraping_priority DESC").
		Order("last_scraped ASC NULLS FIRST").
		Limit(limit).
		Find(&universities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch scraping queue: %w", err)
	}
	return universities, nil
}

// FindBulkCandidates returns active records eligible for a bulk scrape:
// anything not currently scraping, optionally filtered to a minimum
// priority, highest priority first.
func (s *UniversityService) FindBulkCandidates(minPriority, limit int) ([]model.University, error) {
	query := s.db.
		Where("is_active = ?", true).
		Where("scraping_status != ?", model.StatusScraping)
	if minPriority > 0 {
		query = query.Where("scraping_priority >= ?", minPriority)
	}

	var universities []model.University
	err := query.
		Order("scraping_priority DESC").
		Order("last_scraped ASC NULLS FIRST").
		Limit(limit).
		Find(&universities).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch bulk candidates: %w", err)
	}
	return universities, nil
}

// SweepScraping transitions every record still marked "scraping" to the
// given status, appending a history entry with the note. Returns the number
// of records swept. Used by stop-all and by orphan recovery after a restart.
func (s *UniversityService) SweepScraping(toStatus, note string) (int, error) {
	var stuck []model.University
	if err := s.db.Where("scraping_status = ?", model.StatusScraping).Find(&stuck).Error; err != nil {
		return 0, fmt.Errorf("failed to find scraping records: %w", err)
	}

	swept := 0
	for _, u := range stuck {
		if err := s.RecordScrapeOutcome(u.ID, toStatus, note, 0, nil); err != nil {
			return swept, err
		}
		swept++
	}
	return swept, nil
}

// checkUnique enforces global name/url uniqueness regardless of is_active.
// excludeID skips the record itself on updates.
func (s *UniversityService) checkUnique(name, url string, excludeID uint) error {
	if name != "" {
		query := s.db.Model(&model.University{}).Where("name = ?", name)
		if excludeID > 0 {
			query = query.Where("id != ?", excludeID)
		}
		var count int64
		if err := query.Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check name uniqueness: %w", err)
		}
		if count > 0 {
			return apperror.NewConflict("University with this name already exists")
		}
	}
	if url != "" {
		query := s.db.Model(&model.University{}).Where("url = ?", url)
		if excludeID > 0 {
			query = query.Where("id != ?", excludeID)
		}
		var count int64
		if err := query.Count(&count).Error; err != nil {
			return fmt.Errorf("failed to check url uniqueness: %w", err)
		}
		if count > 0 {
			return apperror.NewConflict("University with this URL already exists")
		}
	}
	return nil
}

// Error messages recorded into history are bounded
const maxErrorMessageLen = 500

func truncateError(message string) string {
	if len(message) > maxErrorMessageLen {
		return message[:maxErrorMessageLen]
	}
	return message
}

func defaultString(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func defaultInt(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
