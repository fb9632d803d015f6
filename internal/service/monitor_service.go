package service

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/medcert/eacmc-backend/internal/repository"
)

// MonitorService orchestrates live exam monitoring business logic.
type MonitorService struct {
	monitorRepo *repository.MonitorRepository
}

// NewMonitorService creates a new MonitorService.
func NewMonitorService(monitorRepo *repository.MonitorRepository) *MonitorService {
	return &MonitorService{monitorRepo: monitorRepo}
}

// CandidateProgressSnapshot holds the answered count and proctor event count
// for every in-progress candidate.
type CandidateProgressSnapshot struct {
	AnsweredCounts map[int]int64 // candidate_id → answered_count
	ProctorCounts  map[int]int64 // candidate_id → proctor_count
	TotalProctor   int64         // total proctor events in the exam
}

// GetCandidateProgress returns answered counts and proctor counts, fetched
// concurrently to minimize latency.
func (s *MonitorService) GetCandidateProgress(ctx context.Context, examID uuid.UUID) (*CandidateProgressSnapshot, error) {
	snapshot := &CandidateProgressSnapshot{
		AnsweredCounts: make(map[int]int64),
		ProctorCounts:  make(map[int]int64),
	}

	var (
		answeredCounts map[int]int64
		proctorCounts  map[int]int64
		answeredErr    error
		proctorErr     error
		wg             sync.WaitGroup
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		answeredCounts, answeredErr = s.monitorRepo.GetAnsweredCounts(ctx, examID)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		proctorCounts, proctorErr = s.monitorRepo.GetProctorCounts(ctx, examID)
	}()

	wg.Wait()

	// Answered counts are critical; proctor counts are best-effort.
	if answeredErr != nil {
		return nil, answeredErr
	}

	if answeredCounts != nil {
		snapshot.AnsweredCounts = answeredCounts
	}

	if proctorErr == nil && proctorCounts != nil {
		snapshot.ProctorCounts = proctorCounts
		for _, count := range proctorCounts {
			snapshot.TotalProctor += count
		}
	}

	return snapshot, nil
}
