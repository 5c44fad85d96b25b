package scraper

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pakuniscraper/api/model"
	"github.com/pakuniscraper/api/utils/apperror"
)

// Store is the slice of the university record store the orchestrator needs
type Store interface {
	GetByID(id uint) (*model.University, error)
	SetStatus(id uint, status string) error
	RecordScrapeOutcome(id uint, status string, errorMessage string, pagesScraped int, dataExtracted map[string]int) error
	FindBulkCandidates(minPriority, limit int) ([]model.University, error)
	SweepScraping(toStatus, note string) (int, error)
}

// Orchestrator launches external scraper processes and tracks them in an
// in-memory registry. The registry is the single source of truth for "is
// this university actively being scraped right now"; it does not survive a
// restart.
type Orchestrator struct {
	mu    sync.Mutex
	procs map[string]*registryEntry

	store    Store
	runner   Runner
	cooldown time.Duration
	bulkMax  int
}

type registryEntry struct {
	process       Process
	startedAt     time.Time
	displayName   string
	itemCount     int
	universityIDs []uint
}

// ActiveProcess is a snapshot of one registry entry
type ActiveProcess struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	StartedAt   time.Time `json:"started_at"`
	ElapsedSecs int       `json:"elapsed_seconds"`
	ItemCount   int       `json:"item_count,omitempty"`
	Alive       bool      `json:"alive"`
}

// ScrapeStatus combines stored state, registry presence and recent history
type ScrapeStatus struct {
	UniversityID    uint                  `json:"university_id"`
	Name            string                `json:"name"`
	ScrapingStatus  string                `json:"scraping_status"`
	CurrentlyActive bool                  `json:"currently_active"`
	LastScraped     *time.Time            `json:"last_scraped"`
	RecentHistory   []model.ScrapeAttempt `json:"recent_history"`
}

// BulkResult describes an accepted bulk scrape request
type BulkResult struct {
	OperationID       string   `json:"operation_id"`
	Universities      []string `json:"universities"`
	Count             int      `json:"count"`
	DelaySeconds      int      `json:"delay_seconds"`
	EstimatedDuration int      `json:"estimated_duration_seconds"`
}

// DefaultCooldown is the minimum wait after a completed scrape before the
// same target may be rescraped
const DefaultCooldown = time.Hour

// DefaultBulkMax caps how many universities one bulk run may cover
const DefaultBulkMax = 20

// NewOrchestrator creates the single orchestrator instance for this process
func NewOrchestrator(store Store, runner Runner, cooldown time.Duration, bulkMax int) *Orchestrator {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	if bulkMax <= 0 {
		bulkMax = DefaultBulkMax
	}
	return &Orchestrator{
		procs:    make(map[string]*registryEntry),
		store:    store,
		runner:   runner,
		cooldown: cooldown,
		bulkMax:  bulkMax,
	}
}

// RecoverOrphans sweeps records left in "scraping" by a previous process
// (the registry is in-memory, so a restart loses all tracking). They are
// transitioned to failed so a fresh start-scrape request can pick them up.
func (o *Orchestrator) RecoverOrphans() (int, error) {
	swept, err := o.store.SweepScraping(model.StatusFailed, "Orphaned by service restart")
	if err != nil {
		return swept, err
	}
	if swept > 0 {
		log.Printf("[SCRAPER] Recovered %d orphaned scraping record(s) after restart", swept)
	}
	return swept, nil
}

// StartSingle launches a scrape for one university. Guards: the registry
// must not already hold an entry for the id (ConflictError) and the record
// must not have completed within the cooldown window (RateLimitedError).
// The check-then-insert is one atomic step under the registry lock.
func (o *Orchestrator) StartSingle(id uint) (*model.University, error) {
	university, err := o.store.GetByID(id)
	if err != nil {
		return nil, err
	}
	if !university.IsActive {
		return nil, apperror.NewNotFound("University not found")
	}

	if university.ScrapingStatus == model.StatusCompleted && university.LastScraped != nil {
		if elapsed := time.Since(*university.LastScraped); elapsed < o.cooldown {
			wait := (o.cooldown - elapsed).Round(time.Minute)
			return nil, apperror.NewRateLimited(
				fmt.Sprintf("University was scraped recently; retry in %s", wait))
		}
	}

	key := universityKey(id)

	o.mu.Lock()
	if _, busy := o.procs[key]; busy || university.ScrapingStatus == model.StatusScraping {
		o.mu.Unlock()
		return nil, apperror.NewConflict("Scraping already in progress for this university")
	}
	entry := &registryEntry{
		startedAt:     time.Now(),
		displayName:   university.Name,
		universityIDs: []uint{id},
	}
	o.procs[key] = entry
	o.mu.Unlock()

	// The record must read "scraping" before the process exists: the exit
	// callback can fire immediately after spawn, and its terminal outcome
	// must not be overwritten by a late status write.
	if err := o.store.SetStatus(id, model.StatusScraping); err != nil {
		o.removeEntry(key)
		return nil, err
	}

	process, err := o.runner.Start(
		[]string{"--scrape-single", university.Name},
		func(exitErr error, output string) { o.handleSingleExit(key, id, exitErr, output) },
	)
	if err != nil {
		o.removeEntry(key)
		spawnErr := apperror.NewExternalProcess("Failed to launch scraper process", err)
		if recErr := o.store.RecordScrapeOutcome(id, model.StatusFailed, spawnErr.Error(), 0, nil); recErr != nil {
			log.Printf("[SCRAPER] Failed to record spawn failure for %d: %v", id, recErr)
		}
		return nil, spawnErr
	}

	o.mu.Lock()
	entry.process = process
	o.mu.Unlock()

	log.Printf("[SCRAPER] Started scrape for %q (id=%d)", university.Name, id)
	return university, nil
}

// Stop kills the active process for a university and marks the record
// paused. Fails with NotFoundError when nothing is running for the id.
func (o *Orchestrator) Stop(id uint) error {
	key := universityKey(id)

	o.mu.Lock()
	entry, ok := o.procs[key]
	if !ok {
		o.mu.Unlock()
		return apperror.NewNotFound("No active scraping process for this university")
	}
	delete(o.procs, key)
	o.mu.Unlock()

	if entry.process != nil {
		if err := entry.process.Kill(); err != nil {
			log.Printf("[SCRAPER] Failed to kill process for %d: %v", id, err)
		}
	}

	return o.store.RecordScrapeOutcome(id, model.StatusPaused, "Stopped by user", 0, nil)
}

// StartBulk launches one external process that scrapes the selection
// sequentially with the given inter-item delay. The selection is either an
// explicit id list or every eligible active record, optionally filtered to
// a minimum priority; the batch is capped.
func (o *Orchestrator) StartBulk(ids []uint, delaySeconds, minPriority int) (*BulkResult, error) {
	if delaySeconds <= 0 {
		delaySeconds = 30
	}

	var selected []model.University
	if len(ids) > 0 {
		for _, id := range ids {
			u, err := o.store.GetByID(id)
			if err != nil {
				return nil, err
			}
			if !u.IsActive || u.ScrapingStatus == model.StatusScraping {
				continue
			}
			selected = append(selected, *u)
		}
	} else {
		candidates, err := o.store.FindBulkCandidates(minPriority, o.bulkMax)
		if err != nil {
			return nil, err
		}
		selected = candidates
	}

	if len(selected) > o.bulkMax {
		selected = selected[:o.bulkMax]
	}
	if len(selected) == 0 {
		return nil, apperror.NewValidation("No universities available for bulk scraping", nil)
	}

	names := make([]string, len(selected))
	selectedIDs := make([]uint, len(selected))
	for i, u := range selected {
		names[i] = u.Name
		selectedIDs[i] = u.ID
	}

	var args []string
	if len(ids) > 0 {
		args = []string{"--scrape-list", strings.Join(names, ","), "--delay", strconv.Itoa(delaySeconds)}
	} else {
		args = []string{"--scrape-all", "--delay", strconv.Itoa(delaySeconds)}
	}

	opID := "bulk:" + uuid.NewString()

	entry := &registryEntry{
		startedAt:     time.Now(),
		displayName:   fmt.Sprintf("Bulk scrape (%d universities)", len(selected)),
		itemCount:     len(selected),
		universityIDs: selectedIDs,
	}

	o.mu.Lock()
	o.procs[opID] = entry
	o.mu.Unlock()

	// Same ordering rule as StartSingle: every selected record is marked
	// scraping before the process spawns, so a fast exit cannot be clobbered.
	for _, id := range selectedIDs {
		if err := o.store.SetStatus(id, model.StatusScraping); err != nil {
			log.Printf("[SCRAPER] Failed to mark %d scraping: %v", id, err)
		}
	}

	process, err := o.runner.Start(args, func(exitErr error, output string) {
		o.handleBulkExit(opID, selectedIDs, exitErr, output)
	})
	if err != nil {
		o.removeEntry(opID)
		spawnErr := apperror.NewExternalProcess("Failed to launch bulk scraper process", err)
		for _, id := range selectedIDs {
			if recErr := o.store.RecordScrapeOutcome(id, model.StatusFailed, spawnErr.Error(), 0, nil); recErr != nil {
				log.Printf("[SCRAPER] Failed to record spawn failure for %d: %v", id, recErr)
			}
		}
		return nil, spawnErr
	}

	o.mu.Lock()
	entry.process = process
	o.mu.Unlock()

	log.Printf("[SCRAPER] Started bulk scrape %s covering %d universities", opID, len(selected))

	return &BulkResult{
		OperationID:       opID,
		Universities:      names,
		Count:             len(selected),
		DelaySeconds:      delaySeconds,
		EstimatedDuration: len(selected) * delaySeconds,
	}, nil
}

// StopAll terminates every registry entry and sweeps any record still
// marked "scraping" in storage to paused. The storage sweep is needed
// because some scraping records may have lost their registry entry already.
func (o *Orchestrator) StopAll() (stopped int, swept int, err error) {
	o.mu.Lock()
	entries := make([]*registryEntry, 0, len(o.procs))
	for _, entry := range o.procs {
		entries = append(entries, entry)
	}
	o.procs = make(map[string]*registryEntry)
	o.mu.Unlock()

	for _, entry := range entries {
		if entry.process != nil {
			if killErr := entry.process.Kill(); killErr != nil {
				log.Printf("[SCRAPER] Failed to kill %q: %v", entry.displayName, killErr)
			}
		}
	}

	swept, err = o.store.SweepScraping(model.StatusPaused, "Stopped by admin")
	return len(entries), swept, err
}

// ActiveProcesses returns a snapshot of the registry
func (o *Orchestrator) ActiveProcesses() []ActiveProcess {
	o.mu.Lock()
	defer o.mu.Unlock()

	now := time.Now()
	out := make([]ActiveProcess, 0, len(o.procs))
	for key, entry := range o.procs {
		out = append(out, ActiveProcess{
			ID:          key,
			DisplayName: entry.displayName,
			StartedAt:   entry.startedAt,
			ElapsedSecs: int(now.Sub(entry.startedAt).Seconds()),
			ItemCount:   entry.itemCount,
			Alive:       entry.process != nil,
		})
	}
	return out
}

// IsActive reports whether a scrape is currently tracked for a university,
// either individually or as part of a bulk run
func (o *Orchestrator) IsActive(id uint) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, ok := o.procs[universityKey(id)]; ok {
		return true
	}
	for _, entry := range o.procs {
		for _, uid := range entry.universityIDs {
			if uid == id {
				return true
			}
		}
	}
	return false
}

// Status combines stored status, registry presence and the three most
// recent history entries
func (o *Orchestrator) Status(id uint) (*ScrapeStatus, error) {
	university, err := o.store.GetByID(id)
	if err != nil {
		return nil, err
	}

	return &ScrapeStatus{
		UniversityID:    university.ID,
		Name:            university.Name,
		ScrapingStatus:  university.ScrapingStatus,
		CurrentlyActive: o.IsActive(id),
		LastScraped:     university.LastScraped,
		RecentHistory:   university.RecentHistory(3),
	}, nil
}

// handleSingleExit records the outcome of a single-university process. If
// the registry entry is already gone the process was stopped explicitly and
// its outcome has been recorded as paused.
func (o *Orchestrator) handleSingleExit(key string, id uint, exitErr error, output string) {
	if !o.removeEntry(key) {
		return
	}

	if exitErr == nil {
		if err := o.store.RecordScrapeOutcome(id, model.StatusCompleted, "", 0, nil); err != nil {
			log.Printf("[SCRAPER] Failed to record completion for %d: %v", id, err)
		}
		log.Printf("[SCRAPER] Scrape completed (id=%d)", id)
		return
	}

	message := exitMessage(exitErr, output)
	if err := o.store.RecordScrapeOutcome(id, model.StatusFailed, message, 0, nil); err != nil {
		log.Printf("[SCRAPER] Failed to record failure for %d: %v", id, err)
	}
	log.Printf("[SCRAPER] Scrape failed (id=%d): %s", id, message)
}

// handleBulkExit records outcomes for every university in a finished bulk
// run that is still marked scraping
func (o *Orchestrator) handleBulkExit(opID string, ids []uint, exitErr error, output string) {
	if !o.removeEntry(opID) {
		return
	}

	status := model.StatusCompleted
	message := ""
	if exitErr != nil {
		status = model.StatusFailed
		message = exitMessage(exitErr, output)
	}

	for _, id := range ids {
		u, err := o.store.GetByID(id)
		if err != nil || u.ScrapingStatus != model.StatusScraping {
			continue
		}
		if err := o.store.RecordScrapeOutcome(id, status, message, 0, nil); err != nil {
			log.Printf("[SCRAPER] Failed to record bulk outcome for %d: %v", id, err)
		}
	}

	log.Printf("[SCRAPER] Bulk scrape %s finished: %s", opID, status)
}

// removeEntry deletes a registry entry, reporting whether it was present
func (o *Orchestrator) removeEntry(key string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.procs[key]; !ok {
		return false
	}
	delete(o.procs, key)
	return true
}

func universityKey(id uint) string {
	return fmt.Sprintf("university:%d", id)
}

// exitMessage builds the diagnostic recorded into history from an exit
// error and the captured process output
func exitMessage(exitErr error, output string) string {
	output = strings.TrimSpace(output)
	if output == "" {
		return exitErr.Error()
	}
	return fmt.Sprintf("%s: %s", exitErr.Error(), output)
}
