package cron

import (
	"fmt"
	"time"

	"github.com/pakuniscraper/api/model"
)

// RequeueDueScrapes moves completed universities whose next_scrape_scheduled
// has passed back to pending so the scraping queue picks them up again
func (m *CronManager) RequeueDueScrapes() {
	jobName := "requeue_due_scrapes"

	result := m.db.Model(&model.University{}).
		Where("is_active = ?", true).
		Where("scraping_status = ?", model.StatusCompleted).
		Where("next_scrape_scheduled IS NOT NULL AND next_scrape_scheduled <= ?", time.Now()).
		Update("scraping_status", model.StatusPending)

	if result.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to requeue due scrapes: %w", result.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Requeued %d universities for rescraping", result.RowsAffected))
}

// CleanupOldJobLogs purges scrape job logs older than 30 days
func (m *CronManager) CleanupOldJobLogs() {
	jobName := "cleanup_old_job_logs"

	cutoff := time.Now().AddDate(0, 0, -30)
	result := m.db.Unscoped().
		Where("created_at < ?", cutoff).
		Delete(&model.ScrapeJobLog{})

	if result.Error != nil {
		m.logJobError(jobName, fmt.Errorf("failed to delete old job logs: %w", result.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Deleted %d old job logs", result.RowsAffected))
}
