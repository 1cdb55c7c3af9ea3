package ingest

import (
	"sync"
	"time"

	"github.com/google/uuid"

	discovery "github.com/MON3EMPASHA/Semantic-Movie-Discovery-System"
)

// JobLog is an in-memory audit log of ingestion jobs. Jobs are created and
// mutated only by the Orchestrator and retained for inspection; they are
// never reused across records.
type JobLog struct {
	mu   sync.Mutex
	jobs map[string]*discovery.IngestionJob
}

// NewJobLog creates an empty job log.
func NewJobLog() *JobLog {
	return &JobLog{jobs: make(map[string]*discovery.IngestionJob)}
}

// create registers a new pending job for the record.
func (l *JobLog) create(recordID string) *discovery.IngestionJob {
	now := time.Now().UTC()
	job := &discovery.IngestionJob{
		ID:        uuid.NewString(),
		RecordID:  recordID,
		Status:    discovery.JobPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	l.mu.Lock()
	l.jobs[job.ID] = job
	l.mu.Unlock()
	return job
}

// transition moves a job to the given status, recording sources and an
// optional error message.
func (l *JobLog) transition(id string, status discovery.JobStatus, sources []string, errMsg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	job, ok := l.jobs[id]
	if !ok {
		return
	}
	job.Status = status
	job.Error = errMsg
	if sources != nil {
		job.Sources = sources
	}
	job.UpdatedAt = time.Now().UTC()
}

// Get returns a copy of the job with the given id.
func (l *JobLog) Get(id string) (*discovery.IngestionJob, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	job, ok := l.jobs[id]
	if !ok {
		return nil, false
	}
	copied := *job
	copied.Sources = append([]string(nil), job.Sources...)
	return &copied, true
}

// ByRecord returns copies of all jobs recorded for the given record id.
func (l *JobLog) ByRecord(recordID string) []*discovery.IngestionJob {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*discovery.IngestionJob
	for _, job := range l.jobs {
		if job.RecordID == recordID {
			copied := *job
			copied.Sources = append([]string(nil), job.Sources...)
			out = append(out, &copied)
		}
	}
	return out
}
