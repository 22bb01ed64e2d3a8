package jobs

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Store keeps recent jobs in memory. The oldest jobs are evicted once
// maxJobs is reached or when they are older than ttl.
type Store struct {
	lru *expirable.LRU[string, *Job]
}

// NewStore creates a Store.
func NewStore(maxJobs int, ttl time.Duration) *Store {
	if maxJobs <= 0 {
		maxJobs = 256
	}
	return &Store{lru: expirable.NewLRU[string, *Job](maxJobs, nil, ttl)}
}

// Put stores j under its ID.
func (s *Store) Put(j *Job) {
	s.lru.Add(j.ID(), j)
}

// Get returns the job with id.
func (s *Store) Get(id string) (*Job, bool) {
	return s.lru.Get(id)
}

// Len returns the number of retained jobs.
func (s *Store) Len() int {
	return s.lru.Len()
}
