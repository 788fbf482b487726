package cron

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	rcron "github.com/robfig/cron/v3"
)

// Service runs named background jobs on a seconds-aware cron scheduler.
// Jobs are registered before Start; descriptor specs like "@every 6h"
// are accepted alongside 6-field cron lines.
type Service struct {
	mu       sync.Mutex
	cron     *rcron.Cron
	entryMap map[string]rcron.EntryID // job name -> cron entry ID
	names    []string
	started  bool
	stopCh   chan struct{}
}

func NewService() *Service {
	return &Service{
		cron:     rcron.New(rcron.WithSeconds()),
		entryMap: make(map[string]rcron.EntryID),
	}
}

func (s *Service) AddJob(name, spec string, fn func()) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.entryMap[name]; ok {
		return fmt.Errorf("job %s already registered", name)
	}

	id, err := s.cron.AddFunc(spec, func() {
		log.Printf("[cron] running job %s", name)
		fn()
	})
	if err != nil {
		return fmt.Errorf("register job %s (%s): %w", name, spec, err)
	}
	s.entryMap[name] = id
	s.names = append(s.names, name)
	return nil
}

// Jobs lists registered job names in registration order.
func (s *Service) Jobs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]string, len(s.names))
	copy(result, s.names)
	return result
}

func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	stopCh := make(chan struct{})
	s.stopCh = stopCh
	jobs := len(s.entryMap)
	s.mu.Unlock()

	s.cron.Start()
	log.Printf("[cron] started with %d jobs", jobs)

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-stopCh:
			return
		}
	}()
}

func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	stopCh := s.stopCh
	s.stopCh = nil
	s.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		log.Printf("[cron] stop timeout waiting for running jobs")
	}
	log.Printf("[cron] stopped")
}
