package database

import (
	"errors"
	"fmt"
	"log"

	"github.com/pakuniscraper/api/model"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedEntry is one university in the seed catalogue
type SeedEntry struct {
	Name string
	URL  string
	City string
	Type string
}

// PakistaniUniversities is the initial seed catalogue of well-known
// Pakistani universities
var PakistaniUniversities = []SeedEntry{
	{"University of Punjab", "https://www.pu.edu.pk", "Lahore", "public"},
	{"Karachi University", "https://www.uok.edu.pk", "Karachi", "public"},
	{"Lahore University of Management Sciences (LUMS)", "https://www.lums.edu.pk", "Lahore", "private"},
	{"National University of Sciences and Technology (NUST)", "https://www.nust.edu.pk", "Islamabad", "public"},
	{"FAST National University of Computer and Emerging Sciences", "https://www.nu.edu.pk", "Karachi", "private"},
	{"Institute of Business Administration (IBA) Karachi", "https://www.iba.edu.pk", "Karachi", "public"},
	{"Quaid-i-Azam University", "https://www.qau.edu.pk", "Islamabad", "public"},
	{"Government College University Lahore", "https://www.gcu.edu.pk", "Lahore", "public"},
	{"University of Engineering and Technology Lahore", "https://www.uet.edu.pk", "Lahore", "public"},
	{"Aga Khan University", "https://www.aku.edu", "Karachi", "private"},
	{"COMSATS University Islamabad", "https://www.comsats.edu.pk", "Islamabad", "public"},
	{"Bahria University", "https://www.bahria.edu.pk", "Islamabad", "private"},
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("Starting database seeding...")

	if err := s.SeedUniversities(); err != nil {
		return fmt.Errorf("failed to seed universities: %w", err)
	}

	log.Println("Database seeding completed successfully!")
	return nil
}

// SeedUniversities upserts the seed catalogue. Idempotent: a record matched
// by name or url is updated in place, never duplicated.
func (s *Seeder) SeedUniversities() error {
	created, updated := 0, 0

	for _, entry := range PakistaniUniversities {
		var existing model.University
		err := s.db.Where("name = ? OR url = ?", entry.Name, entry.URL).First(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) {
			university := model.University{
				Name:             entry.Name,
				URL:              entry.URL,
				City:             entry.City,
				Type:             entry.Type,
				Country:          "Pakistan",
				ScrapingStatus:   model.StatusPending,
				ScrapingPriority: 5,
				IsActive:         true,
				CreatedBy:        "system",
			}
			if err := s.db.Create(&university).Error; err != nil {
				return fmt.Errorf("failed to create %q: %w", entry.Name, err)
			}
			created++
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to look up %q: %w", entry.Name, err)
		}

		existing.Name = entry.Name
		existing.URL = entry.URL
		existing.City = entry.City
		existing.Type = entry.Type
		existing.Country = "Pakistan"
		if err := s.db.Save(&existing).Error; err != nil {
			return fmt.Errorf("failed to update %q: %w", entry.Name, err)
		}
		updated++
	}

	log.Printf("Seeded universities: %d created, %d updated", created, updated)
	return nil
}

// Reset drops all university records and scrape job logs. Destructive; only
// invoked by the seed CLI with --reset.
func (s *Seeder) Reset() error {
	log.Println("Resetting university data...")

	if err := s.db.Unscoped().Where("1 = 1").Delete(&model.ScrapeJobLog{}).Error; err != nil {
		return fmt.Errorf("failed to delete scrape job logs: %w", err)
	}
	if err := s.db.Where("1 = 1").Delete(&model.University{}).Error; err != nil {
		return fmt.Errorf("failed to delete universities: %w", err)
	}

	log.Println("Reset complete")
	return nil
}

// RunSeeds is the entry point used by the seed CLI
func RunSeeds(db *gorm.DB, reset bool) error {
	seeder := NewSeeder(db)

	if reset {
		if err := seeder.Reset(); err != nil {
			return err
		}
	}

	return seeder.SeedAll()
}
