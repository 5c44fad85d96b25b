package scraper

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/pakuniscraper/api/model"
	"github.com/pakuniscraper/api/utils/apperror"
)

// fakeStore is an in-memory Store for orchestrator tests
type fakeStore struct {
	mu           sync.Mutex
	universities map[uint]*model.University
	outcomes     []outcomeRecord
	sweepReturn  int
	sweepStatus  string
}

type outcomeRecord struct {
	id      uint
	status  string
	message string
}

func newFakeStore(universities ...*model.University) *fakeStore {
	s := &fakeStore{universities: make(map[uint]*model.University)}
	for _, u := range universities {
		s.universities[u.ID] = u
	}
	return s
}

func (s *fakeStore) GetByID(id uint) (*model.University, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.universities[id]
	if !ok {
		return nil, apperror.NewNotFound("University not found")
	}
	copied := *u
	return &copied, nil
}

func (s *fakeStore) SetStatus(id uint, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.universities[id]
	if !ok {
		return apperror.NewNotFound("University not found")
	}
	u.ScrapingStatus = status
	return nil
}

func (s *fakeStore) RecordScrapeOutcome(id uint, status, errorMessage string, pagesScraped int, dataExtracted map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.outcomes = append(s.outcomes, outcomeRecord{id: id, status: status, message: errorMessage})
	if u, ok := s.universities[id]; ok {
		u.ScrapingStatus = status
	}
	return nil
}

func (s *fakeStore) FindBulkCandidates(minPriority, limit int) ([]model.University, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.University
	for _, u := range s.universities {
		if !u.IsActive || u.ScrapingStatus == model.StatusScraping {
			continue
		}
		if minPriority > 0 && u.ScrapingPriority < minPriority {
			continue
		}
		out = append(out, *u)
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) SweepScraping(toStatus, note string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepStatus = toStatus
	swept := 0
	for _, u := range s.universities {
		if u.ScrapingStatus == model.StatusScraping {
			u.ScrapingStatus = toStatus
			swept++
		}
	}
	s.sweepReturn = swept
	return swept, nil
}

func (s *fakeStore) lastOutcome() (outcomeRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.outcomes) == 0 {
		return outcomeRecord{}, false
	}
	return s.outcomes[len(s.outcomes)-1], true
}

// fakeRunner captures spawn args and exit callbacks so tests can trigger
// process completion themselves
type fakeRunner struct {
	mu       sync.Mutex
	startErr error
	args     [][]string
	onExits  []func(err error, output string)
	killed   int
}

type fakeProcess struct {
	runner *fakeRunner
}

func (p *fakeProcess) Kill() error {
	p.runner.mu.Lock()
	defer p.runner.mu.Unlock()
	p.runner.killed++
	return nil
}

func (r *fakeRunner) Start(args []string, onExit func(err error, output string)) (Process, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return nil, r.startErr
	}
	r.args = append(r.args, args)
	r.onExits = append(r.onExits, onExit)
	return &fakeProcess{runner: r}, nil
}

func (r *fakeRunner) lastExit() func(err error, output string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.onExits[len(r.onExits)-1]
}

func (r *fakeRunner) lastArgs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.args[len(r.args)-1]
}

// syncExitRunner invokes the exit callback from inside Start, modelling a
// scraper process that dies before the spawn call even returns
type syncExitRunner struct {
	exitErr error
	output  string
}

type nopProcess struct{}

func (nopProcess) Kill() error { return nil }

func (r *syncExitRunner) Start(args []string, onExit func(err error, output string)) (Process, error) {
	onExit(r.exitErr, r.output)
	return nopProcess{}, nil
}

func activeUniversity(id uint, name, status string) *model.University {
	return &model.University{
		ID:               id,
		Name:             name,
		ScrapingStatus:   status,
		ScrapingPriority: 5,
		IsActive:         true,
	}
}

func TestStartSingle(t *testing.T) {
	t.Run("launches and marks scraping", func(t *testing.T) {
		store := newFakeStore(activeUniversity(1, "LUMS", model.StatusPending))
		runner := &fakeRunner{}
		orch := NewOrchestrator(store, runner, 0, 0)

		u, err := orch.StartSingle(1)
		if err != nil {
			t.Fatalf("StartSingle failed: %v", err)
		}
		if u.Name != "LUMS" {
			t.Errorf("returned university = %q", u.Name)
		}
		if got := runner.lastArgs(); len(got) != 2 || got[0] != "--scrape-single" || got[1] != "LUMS" {
			t.Errorf("spawn args = %v", got)
		}
		if store.universities[1].ScrapingStatus != model.StatusScraping {
			t.Errorf("status = %q, want scraping", store.universities[1].ScrapingStatus)
		}
		if !orch.IsActive(1) {
			t.Error("IsActive(1) = false after start")
		}
	})

	t.Run("second start conflicts while running", func(t *testing.T) {
		store := newFakeStore(activeUniversity(1, "LUMS", model.StatusPending))
		runner := &fakeRunner{}
		orch := NewOrchestrator(store, runner, 0, 0)

		if _, err := orch.StartSingle(1); err != nil {
			t.Fatalf("first start failed: %v", err)
		}
		_, err := orch.StartSingle(1)
		if apperror.KindOf(err) != apperror.KindConflict {
			t.Fatalf("second start: got %v, want conflict", err)
		}
	})

	t.Run("cooldown rejects recent completion", func(t *testing.T) {
		u := activeUniversity(1, "LUMS", model.StatusCompleted)
		recent := time.Now().Add(-10 * time.Minute)
		u.LastScraped = &recent
		store := newFakeStore(u)
		orch := NewOrchestrator(store, &fakeRunner{}, time.Hour, 0)

		_, err := orch.StartSingle(1)
		if apperror.KindOf(err) != apperror.KindRateLimited {
			t.Fatalf("got %v, want rate limited", err)
		}
	})

	t.Run("cooldown elapsed allows rescrape", func(t *testing.T) {
		u := activeUniversity(1, "LUMS", model.StatusCompleted)
		old := time.Now().Add(-2 * time.Hour)
		u.LastScraped = &old
		store := newFakeStore(u)
		orch := NewOrchestrator(store, &fakeRunner{}, time.Hour, 0)

		if _, err := orch.StartSingle(1); err != nil {
			t.Fatalf("rescrape after cooldown failed: %v", err)
		}
	})

	t.Run("spawn failure records failed outcome", func(t *testing.T) {
		store := newFakeStore(activeUniversity(1, "LUMS", model.StatusPending))
		runner := &fakeRunner{startErr: errors.New("python3: not found")}
		orch := NewOrchestrator(store, runner, 0, 0)

		_, err := orch.StartSingle(1)
		if apperror.KindOf(err) != apperror.KindExternalProcess {
			t.Fatalf("got %v, want external process error", err)
		}
		if orch.IsActive(1) {
			t.Error("registry entry survived spawn failure")
		}
		outcome, ok := store.lastOutcome()
		if !ok || outcome.status != model.StatusFailed {
			t.Errorf("recorded outcome = %+v", outcome)
		}
	})

	t.Run("immediate process exit is not overwritten", func(t *testing.T) {
		store := newFakeStore(activeUniversity(1, "LUMS", model.StatusPending))
		orch := NewOrchestrator(store, &syncExitRunner{exitErr: errors.New("exit status 2"), output: "argparse error"}, 0, 0)

		if _, err := orch.StartSingle(1); err != nil {
			t.Fatalf("StartSingle failed: %v", err)
		}
		if got := store.universities[1].ScrapingStatus; got != model.StatusFailed {
			t.Fatalf("status = %q, want failed", got)
		}
		if orch.IsActive(1) {
			t.Error("registry entry survived immediate exit")
		}

		// The record must not be wedged: a fresh start succeeds
		if _, err := orch.StartSingle(1); err != nil {
			t.Fatalf("restart after immediate exit failed: %v", err)
		}
	})

	t.Run("immediate success exit records completed", func(t *testing.T) {
		store := newFakeStore(activeUniversity(1, "LUMS", model.StatusPending))
		orch := NewOrchestrator(store, &syncExitRunner{}, 0, 0)

		if _, err := orch.StartSingle(1); err != nil {
			t.Fatalf("StartSingle failed: %v", err)
		}
		if got := store.universities[1].ScrapingStatus; got != model.StatusCompleted {
			t.Errorf("status = %q, want completed", got)
		}
	})

	t.Run("inactive record is not found", func(t *testing.T) {
		u := activeUniversity(1, "LUMS", model.StatusPending)
		u.IsActive = false
		store := newFakeStore(u)
		orch := NewOrchestrator(store, &fakeRunner{}, 0, 0)

		_, err := orch.StartSingle(1)
		if apperror.KindOf(err) != apperror.KindNotFound {
			t.Fatalf("got %v, want not found", err)
		}
	})
}

func TestProcessExit(t *testing.T) {
	t.Run("clean exit records completed", func(t *testing.T) {
		store := newFakeStore(activeUniversity(1, "LUMS", model.StatusPending))
		runner := &fakeRunner{}
		orch := NewOrchestrator(store, runner, 0, 0)

		if _, err := orch.StartSingle(1); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		runner.lastExit()(nil, "scraped 4 pages")

		if orch.IsActive(1) {
			t.Error("registry entry survived exit")
		}
		outcome, _ := store.lastOutcome()
		if outcome.status != model.StatusCompleted {
			t.Errorf("outcome = %+v, want completed", outcome)
		}
	})

	t.Run("nonzero exit records failure with output", func(t *testing.T) {
		store := newFakeStore(activeUniversity(1, "LUMS", model.StatusPending))
		runner := &fakeRunner{}
		orch := NewOrchestrator(store, runner, 0, 0)

		if _, err := orch.StartSingle(1); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		runner.lastExit()(errors.New("exit status 1"), "Traceback: connection refused\n")

		outcome, _ := store.lastOutcome()
		if outcome.status != model.StatusFailed {
			t.Fatalf("outcome = %+v, want failed", outcome)
		}
		if outcome.message != "exit status 1: Traceback: connection refused" {
			t.Errorf("message = %q", outcome.message)
		}
	})

	t.Run("exit after explicit stop records nothing extra", func(t *testing.T) {
		store := newFakeStore(activeUniversity(1, "LUMS", model.StatusPending))
		runner := &fakeRunner{}
		orch := NewOrchestrator(store, runner, 0, 0)

		if _, err := orch.StartSingle(1); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if err := orch.Stop(1); err != nil {
			t.Fatalf("stop failed: %v", err)
		}

		before := len(store.outcomes)
		runner.lastExit()(errors.New("signal: killed"), "")
		if len(store.outcomes) != before {
			t.Errorf("exit after stop recorded %d extra outcome(s)", len(store.outcomes)-before)
		}
		outcome, _ := store.lastOutcome()
		if outcome.status != model.StatusPaused || outcome.message != "Stopped by user" {
			t.Errorf("stop outcome = %+v", outcome)
		}
	})
}

func TestStop(t *testing.T) {
	t.Run("nothing running", func(t *testing.T) {
		store := newFakeStore(activeUniversity(1, "LUMS", model.StatusPending))
		orch := NewOrchestrator(store, &fakeRunner{}, 0, 0)

		err := orch.Stop(1)
		if apperror.KindOf(err) != apperror.KindNotFound {
			t.Fatalf("got %v, want not found", err)
		}
	})

	t.Run("kills the process", func(t *testing.T) {
		store := newFakeStore(activeUniversity(1, "LUMS", model.StatusPending))
		runner := &fakeRunner{}
		orch := NewOrchestrator(store, runner, 0, 0)

		if _, err := orch.StartSingle(1); err != nil {
			t.Fatalf("start failed: %v", err)
		}
		if err := orch.Stop(1); err != nil {
			t.Fatalf("stop failed: %v", err)
		}
		if runner.killed != 1 {
			t.Errorf("killed = %d, want 1", runner.killed)
		}
	})
}

func TestStartBulk(t *testing.T) {
	makeStore := func(n int) *fakeStore {
		store := newFakeStore()
		for i := 1; i <= n; i++ {
			u := activeUniversity(uint(i), fmt.Sprintf("University %d", i), model.StatusPending)
			store.universities[u.ID] = u
		}
		return store
	}

	t.Run("explicit selection spawns scrape-list", func(t *testing.T) {
		store := makeStore(3)
		runner := &fakeRunner{}
		orch := NewOrchestrator(store, runner, 0, 0)

		result, err := orch.StartBulk([]uint{1, 3}, 10, 0)
		if err != nil {
			t.Fatalf("StartBulk failed: %v", err)
		}
		if result.Count != 2 || result.EstimatedDuration != 20 {
			t.Errorf("result = %+v", result)
		}
		args := runner.lastArgs()
		if args[0] != "--scrape-list" || args[1] != "University 1,University 3" {
			t.Errorf("spawn args = %v", args)
		}
		if !orch.IsActive(1) || orch.IsActive(2) || !orch.IsActive(3) {
			t.Error("bulk membership tracking wrong")
		}
	})

	t.Run("empty selection spawns scrape-all", func(t *testing.T) {
		store := makeStore(3)
		runner := &fakeRunner{}
		orch := NewOrchestrator(store, runner, 0, 0)

		if _, err := orch.StartBulk(nil, 0, 0); err != nil {
			t.Fatalf("StartBulk failed: %v", err)
		}
		args := runner.lastArgs()
		if args[0] != "--scrape-all" || args[1] != "--delay" || args[2] != "30" {
			t.Errorf("spawn args = %v", args)
		}
	})

	t.Run("batch is capped", func(t *testing.T) {
		store := makeStore(10)
		runner := &fakeRunner{}
		orch := NewOrchestrator(store, runner, 0, 4)

		ids := make([]uint, 10)
		for i := range ids {
			ids[i] = uint(i + 1)
		}
		result, err := orch.StartBulk(ids, 10, 0)
		if err != nil {
			t.Fatalf("StartBulk failed: %v", err)
		}
		if result.Count != 4 {
			t.Errorf("Count = %d, want cap 4", result.Count)
		}
	})

	t.Run("already scraping records are skipped", func(t *testing.T) {
		store := makeStore(2)
		store.universities[1].ScrapingStatus = model.StatusScraping
		orch := NewOrchestrator(store, &fakeRunner{}, 0, 0)

		result, err := orch.StartBulk([]uint{1, 2}, 10, 0)
		if err != nil {
			t.Fatalf("StartBulk failed: %v", err)
		}
		if result.Count != 1 || result.Universities[0] != "University 2" {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("nothing eligible is a validation error", func(t *testing.T) {
		store := makeStore(1)
		store.universities[1].ScrapingStatus = model.StatusScraping
		orch := NewOrchestrator(store, &fakeRunner{}, 0, 0)

		_, err := orch.StartBulk([]uint{1}, 10, 0)
		if apperror.KindOf(err) != apperror.KindValidation {
			t.Fatalf("got %v, want validation error", err)
		}
	})

	t.Run("immediate bulk exit is not overwritten", func(t *testing.T) {
		store := makeStore(2)
		orch := NewOrchestrator(store, &syncExitRunner{}, 0, 0)

		if _, err := orch.StartBulk([]uint{1, 2}, 10, 0); err != nil {
			t.Fatalf("StartBulk failed: %v", err)
		}
		for id := uint(1); id <= 2; id++ {
			if got := store.universities[id].ScrapingStatus; got != model.StatusCompleted {
				t.Errorf("university %d status = %q, want completed", id, got)
			}
		}
		if len(orch.ActiveProcesses()) != 0 {
			t.Error("registry entry survived immediate bulk exit")
		}
	})

	t.Run("bulk exit records outcomes for still-scraping ids", func(t *testing.T) {
		store := makeStore(2)
		runner := &fakeRunner{}
		orch := NewOrchestrator(store, runner, 0, 0)

		if _, err := orch.StartBulk([]uint{1, 2}, 10, 0); err != nil {
			t.Fatalf("StartBulk failed: %v", err)
		}
		// One record finished early via some other path
		store.universities[1].ScrapingStatus = model.StatusCompleted

		runner.lastExit()(nil, "")

		var recorded []uint
		for _, o := range store.outcomes {
			if o.status == model.StatusCompleted {
				recorded = append(recorded, o.id)
			}
		}
		if len(recorded) != 1 || recorded[0] != 2 {
			t.Errorf("recorded outcomes for %v, want [2]", recorded)
		}
	})
}

func TestStopAll(t *testing.T) {
	store := newFakeStore(
		activeUniversity(1, "LUMS", model.StatusPending),
		activeUniversity(2, "NUST", model.StatusPending),
		activeUniversity(3, "FAST", model.StatusScraping),
	)
	runner := &fakeRunner{}
	orch := NewOrchestrator(store, runner, 0, 0)

	if _, err := orch.StartSingle(1); err != nil {
		t.Fatalf("start 1 failed: %v", err)
	}
	if _, err := orch.StartSingle(2); err != nil {
		t.Fatalf("start 2 failed: %v", err)
	}

	stopped, swept, err := orch.StopAll()
	if err != nil {
		t.Fatalf("StopAll failed: %v", err)
	}
	if stopped != 2 {
		t.Errorf("stopped = %d, want 2", stopped)
	}
	// Records 1, 2 (marked scraping on start) and the pre-existing 3
	if swept != 3 {
		t.Errorf("swept = %d, want 3", swept)
	}
	if store.sweepStatus != model.StatusPaused {
		t.Errorf("sweep status = %q, want paused", store.sweepStatus)
	}
	if len(orch.ActiveProcesses()) != 0 {
		t.Error("registry not cleared")
	}
	if runner.killed != 2 {
		t.Errorf("killed = %d, want 2", runner.killed)
	}
}

func TestRecoverOrphans(t *testing.T) {
	store := newFakeStore(
		activeUniversity(1, "LUMS", model.StatusScraping),
		activeUniversity(2, "NUST", model.StatusCompleted),
	)
	orch := NewOrchestrator(store, &fakeRunner{}, 0, 0)

	swept, err := orch.RecoverOrphans()
	if err != nil {
		t.Fatalf("RecoverOrphans failed: %v", err)
	}
	if swept != 1 {
		t.Errorf("swept = %d, want 1", swept)
	}
	if store.universities[1].ScrapingStatus != model.StatusFailed {
		t.Errorf("orphan status = %q, want failed", store.universities[1].ScrapingStatus)
	}
	if store.universities[2].ScrapingStatus != model.StatusCompleted {
		t.Errorf("completed record touched: %q", store.universities[2].ScrapingStatus)
	}
}

func TestStatus(t *testing.T) {
	u := activeUniversity(1, "LUMS", model.StatusCompleted)
	for i := 0; i < 5; i++ {
		u.ScrapingHistory = append(u.ScrapingHistory, model.ScrapeAttempt{
			Status: model.AttemptSuccess, PagesScraped: i,
		})
	}
	store := newFakeStore(u)
	orch := NewOrchestrator(store, &fakeRunner{}, 0, 0)

	status, err := orch.Status(1)
	if err != nil {
		t.Fatalf("Status failed: %v", err)
	}
	if status.CurrentlyActive {
		t.Error("CurrentlyActive = true with empty registry")
	}
	if len(status.RecentHistory) != 3 {
		t.Errorf("RecentHistory length = %d, want 3", len(status.RecentHistory))
	}
	if status.RecentHistory[0].PagesScraped != 4 {
		t.Error("history not newest-first")
	}
}
