package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/underleaf-dev/underleaf/db"
	"github.com/underleaf-dev/underleaf/internal/models"
	"github.com/underleaf-dev/underleaf/internal/types"
)

type Scheduler struct {
	jobs   []*Job
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

type Job struct {
	name     string
	interval time.Duration
	run      func()
	ticker   *time.Ticker
	cancel   context.CancelFunc
}

// NewScheduler initializes a new Scheduler instance
func NewScheduler() *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start registers the maintenance jobs and begins scheduling
func (s *Scheduler) Start() error {
	log.Println("Starting scheduler...")

	s.AddJob("reset-token-sweep", time.Hour, SweepResetTokens)
	s.AddJob("weekly-credit-refresh", time.Hour, RefreshWeeklyCredits)

	log.Printf("Scheduler started with %d jobs", len(s.jobs))
	return nil
}

// Stop gracefully shuts down all jobs
func (s *Scheduler) Stop() {
	log.Println("Stopping scheduler...")
	s.cancel()

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, job := range s.jobs {
		job.ticker.Stop()
		job.cancel()
	}

	s.jobs = nil
	log.Println("Scheduler stopped")
}

// AddJob schedules a job at the given interval, running it once immediately.
func (s *Scheduler) AddJob(name string, interval time.Duration, run func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	jobCtx, jobCancel := context.WithCancel(s.ctx)
	ticker := time.NewTicker(interval)

	job := &Job{
		name:     name,
		interval: interval,
		run:      run,
		ticker:   ticker,
		cancel:   jobCancel,
	}

	s.jobs = append(s.jobs, job)

	go func() {
		job.run()
		s.runJob(jobCtx, job)
	}()

	log.Printf("Added job %s with immediate run", name)
}

func (s *Scheduler) runJob(ctx context.Context, job *Job) {
	defer job.ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-job.ticker.C:
			job.run()
		}
	}
}

// SweepResetTokens hard-deletes password reset tokens that have expired or
// were already consumed.
func SweepResetTokens() {
	result := db.DB.Unscoped().
		Where("expires_at < ? OR used = ?", time.Now(), true).
		Delete(&models.PasswordResetToken{})

	if result.Error != nil {
		log.Printf("Reset token sweep failed: %v", result.Error)
		return
	}

	if result.RowsAffected > 0 {
		log.Printf("Reset token sweep removed %d tokens", result.RowsAffected)
	}
}

// RefreshWeeklyCredits tops every stale free account back up to the weekly
// quota. The cutoff predicate lives in the UPDATE itself, so overlapping
// runs cannot double-refresh anyone.
func RefreshWeeklyCredits() {
	cutoff := time.Now().Add(-types.CreditResetInterval)

	result := db.DB.Model(&models.User{}).
		Where("is_premium = ? AND (last_credit_reset IS NULL OR last_credit_reset <= ?)", false, cutoff).
		Updates(map[string]interface{}{
			"ai_credits":        types.WeeklyCreditQuota,
			"last_credit_reset": time.Now(),
		})

	if result.Error != nil {
		log.Printf("Weekly credit refresh failed: %v", result.Error)
		return
	}

	if result.RowsAffected > 0 {
		log.Printf("Weekly credit refresh topped up %d users", result.RowsAffected)
	}
}

// Global scheduler instance
var globalScheduler *Scheduler

// Initialize creates and starts the global scheduler
func Initialize() error {
	globalScheduler = NewScheduler()
	return globalScheduler.Start()
}

// Shutdown stops the global scheduler
func Shutdown() {
	if globalScheduler != nil {
		globalScheduler.Stop()
	}
}
