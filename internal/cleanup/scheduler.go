// Package cleanup prunes staged audio files left behind by the
// normalizer's decode pipeline.
package cleanup

import (
	"log"
	"os"
	"path/filepath"
	"time"
)

// Scheduler periodically removes stale files from the staging directory.
type Scheduler struct {
	stagingDir string
	interval   time.Duration
	maxAge     time.Duration
	stop       chan struct{}
}

// NewScheduler creates a scheduler for the given staging directory.
func NewScheduler(stagingDir string, interval, maxAge time.Duration) *Scheduler {
	return &Scheduler{
		stagingDir: stagingDir,
		interval:   interval,
		maxAge:     maxAge,
		stop:       make(chan struct{}),
	}
}

// Start runs one immediate sweep, then sweeps on the configured
// interval until Stop is called.
func (s *Scheduler) Start() {
	s.sweep()

	ticker := time.NewTicker(s.interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.stop:
				return
			}
		}
	}()

	log.Printf("Staging cleanup started (interval: %s, max age: %s)", s.interval, s.maxAge)
}

// Stop halts the sweep loop.
func (s *Scheduler) Stop() {
	close(s.stop)
}

// sweep removes staged files older than maxAge.
func (s *Scheduler) sweep() {
	cutoff := time.Now().Add(-s.maxAge)
	removed := 0

	err := filepath.Walk(s.stagingDir, func(path string, info os.FileInfo, err error) error {
		if err != nil || info.IsDir() {
			return nil
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(path); err != nil {
				log.Printf("Failed to remove stale staged file %s: %v", path, err)
			} else {
				removed++
			}
		}
		return nil
	})
	if err != nil {
		log.Printf("Staging sweep error: %v", err)
	}
	if removed > 0 {
		log.Printf("Staging sweep removed %d stale files", removed)
	}
}

// EnsureDir creates the staging directory if it does not exist.
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0755)
}
