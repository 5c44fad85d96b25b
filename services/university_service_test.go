package services

import (
	"testing"

	"github.com/pakuniscraper/api/model"
	"github.com/pakuniscraper/api/utils/apperror"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	if err := db.AutoMigrate(&model.University{}, &model.ScrapeJobLog{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	return db
}

func createTestUniversity(t *testing.T, svc *UniversityService, name, url string) *model.University {
	t.Helper()

	university, err := svc.Create(CreateUniversityInput{
		Name: name,
		URL:  url,
		City: "Lahore",
		Type: "public",
	})
	if err != nil {
		t.Fatalf("failed to create %q: %v", name, err)
	}
	return university
}

func TestCreateDefaults(t *testing.T) {
	svc := NewUniversityService(newTestDB(t))
	university := createTestUniversity(t, svc, "Test Uni", "https://test.edu.pk")

	if university.ScrapingStatus != model.StatusPending {
		t.Errorf("status = %q, want pending", university.ScrapingStatus)
	}
	if university.DataCompleteness != 0 {
		t.Errorf("data_completeness = %d, want 0", university.DataCompleteness)
	}
	if university.Country != "Pakistan" {
		t.Errorf("country = %q, want Pakistan", university.Country)
	}
	if university.ScrapingPriority != 5 {
		t.Errorf("priority = %d, want 5", university.ScrapingPriority)
	}
	if !university.IsActive {
		t.Error("new record not active")
	}
}

func TestCreateUniquenessSurvivesSoftDelete(t *testing.T) {
	svc := NewUniversityService(newTestDB(t))
	first := createTestUniversity(t, svc, "Test Uni", "https://test.edu.pk")

	if err := svc.SoftDelete(first.ID); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}

	_, err := svc.Create(CreateUniversityInput{
		Name: "Test Uni",
		URL:  "https://other.edu.pk",
	})
	if apperror.KindOf(err) != apperror.KindConflict {
		t.Errorf("duplicate name after soft delete: got %v, want conflict", err)
	}

	_, err = svc.Create(CreateUniversityInput{
		Name: "Other Uni",
		URL:  "https://test.edu.pk",
	})
	if apperror.KindOf(err) != apperror.KindConflict {
		t.Errorf("duplicate url after soft delete: got %v, want conflict", err)
	}
}

func TestReplaceExtractedDataNoMerge(t *testing.T) {
	svc := NewUniversityService(newTestDB(t))
	university := createTestUniversity(t, svc, "Test Uni", "https://test.edu.pk")

	_, err := svc.ReplaceExtractedData(university.ID, "scholarships", []model.Scholarship{
		{Name: "Merit Scholarship", Coverage: "Full tuition"},
		{Name: "Need-Based Grant", Coverage: "Partial"},
	})
	if err != nil {
		t.Fatalf("first replace failed: %v", err)
	}

	updated, err := svc.ReplaceExtractedData(university.ID, "scholarships", []model.Scholarship{
		{Name: "Sports Scholarship", Coverage: "Hostel fee"},
	})
	if err != nil {
		t.Fatalf("second replace failed: %v", err)
	}

	// Wholesale replacement: only the second payload survives
	if len(updated.Data.Scholarships) != 1 {
		t.Fatalf("scholarships length = %d, want 1", len(updated.Data.Scholarships))
	}
	if updated.Data.Scholarships[0].Name != "Sports Scholarship" {
		t.Errorf("surviving entry = %q", updated.Data.Scholarships[0].Name)
	}
	if updated.DataLastUpdated.Scholarships == nil {
		t.Error("data_last_updated.scholarships not stamped")
	}
	if updated.DataCompleteness != 25 {
		t.Errorf("data_completeness = %d, want 25", updated.DataCompleteness)
	}

	fetched, err := svc.GetByID(university.ID)
	if err != nil {
		t.Fatalf("refetch failed: %v", err)
	}
	if len(fetched.Data.Scholarships) != 1 || fetched.Data.Scholarships[0].Name != "Sports Scholarship" {
		t.Errorf("persisted scholarships = %+v", fetched.Data.Scholarships)
	}

	_, err = svc.ReplaceExtractedData(university.ID, "unknown_type", nil)
	if apperror.KindOf(err) != apperror.KindValidation {
		t.Errorf("unknown data type: got %v, want validation error", err)
	}
}

func TestGetActiveByID(t *testing.T) {
	svc := NewUniversityService(newTestDB(t))
	university := createTestUniversity(t, svc, "Test Uni", "https://test.edu.pk")

	if _, err := svc.GetActiveByID(university.ID); err != nil {
		t.Fatalf("active record not found: %v", err)
	}

	if err := svc.SoftDelete(university.ID); err != nil {
		t.Fatalf("soft delete failed: %v", err)
	}

	_, err := svc.GetActiveByID(university.ID)
	if apperror.KindOf(err) != apperror.KindNotFound {
		t.Errorf("soft-deleted record: got %v, want not found", err)
	}

	// Internal lookups still see the record
	if _, err := svc.GetByID(university.ID); err != nil {
		t.Errorf("GetByID after soft delete failed: %v", err)
	}
}
