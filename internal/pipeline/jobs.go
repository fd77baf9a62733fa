package pipeline

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// JobStatus represents the state of an ingestion job.
type JobStatus string

const (
	StatusQueued     JobStatus = "queued"
	StatusParsing    JobStatus = "parsing"
	StatusBuilding   JobStatus = "building"
	StatusChunking   JobStatus = "chunking"
	StatusEmbedding  JobStatus = "embedding"
	StatusCompleted  JobStatus = "completed"
	StatusFailed     JobStatus = "failed"
	StatusPartial    JobStatus = "partial"
	StatusDupSkipped JobStatus = "duplicate_skipped"
)

// Terminal reports whether no further transitions will happen.
func (s JobStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusPartial, StatusDupSkipped:
		return true
	}
	return false
}

// ErrDocumentBusy is returned when a document already has an active job.
var ErrDocumentBusy = errors.New("document already has an active job")

// Job tracks the state of a single document ingestion.
type Job struct {
	mu sync.Mutex

	ID    string `json:"job_id"`
	DocID string `json:"doc_id"`

	Status   JobStatus `json:"status"`
	Phase    string    `json:"phase"`
	Filename string    `json:"filename"`
	Title    string    `json:"title"`

	Progress Progress `json:"progress"`

	ContentHash string    `json:"content_hash,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	// Internal: not serialized.
	fileData []byte
	errors   []string
}

// NewJob creates a queued job. An empty docID gets a fresh one.
func NewJob(docID, filename, title string, data []byte) *Job {
	if docID == "" {
		docID = uuid.NewString()
	}
	now := time.Now()
	return &Job{
		ID:        uuid.NewString(),
		DocID:     docID,
		Status:    StatusQueued,
		Phase:     "queued",
		Filename:  filename,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
		fileData:  data,
	}
}

// Progress tracks processing progress.
type Progress struct {
	Pages         int      `json:"pages"`
	Headings      int      `json:"headings"`
	NodesFlushed  int      `json:"nodes_flushed"`
	ChunksCreated int      `json:"chunks_created"`
	NodesToEmbed  int      `json:"nodes_to_embed"`
	NodesEmbedded int      `json:"nodes_embedded"`
	Errors        []string `json:"errors"`
}

// JobStore is a thread-safe in-memory job registry with TTL eviction. It
// also remembers which document each content hash produced.
type JobStore struct {
	mu     sync.Mutex
	jobs   map[string]*Job
	active map[string]string // doc id -> job id
	hashes map[string]string // content hash -> doc id
	ttl    time.Duration
}

func NewJobStore(ttl time.Duration) *JobStore {
	return &JobStore{
		jobs:   make(map[string]*Job),
		active: make(map[string]string),
		hashes: make(map[string]string),
		ttl:    ttl,
	}
}

// Put registers a job. Only one unfinished job may exist per document.
func (s *JobStore) Put(job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if other, ok := s.active[job.DocID]; ok && other != job.ID {
		if j := s.jobs[other]; j != nil && !j.CurrentStatus().Terminal() {
			return fmt.Errorf("%w: doc %s, job %s", ErrDocumentBusy, job.DocID, other)
		}
	}
	s.jobs[job.ID] = job
	s.active[job.DocID] = job.ID
	return nil
}

func (s *JobStore) Get(id string) *Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.jobs[id]
}

// List returns snapshots of every tracked job.
func (s *JobStore) List() []JobSnapshot {
	s.mu.Lock()
	jobs := make([]*Job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	out := make([]JobSnapshot, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.Snapshot())
	}
	return out
}

// Busy reports whether docID has an unfinished job.
func (s *JobStore) Busy(docID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[s.active[docID]]
	return j != nil && !j.CurrentStatus().Terminal()
}

// RememberHash records that content with hash produced docID.
func (s *JobStore) RememberHash(hash, docID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hashes[hash] = docID
}

// DocForHash returns the document previously built from hash, if any.
func (s *JobStore) DocForHash(hash string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.hashes[hash]
	return id, ok
}

// ForgetDocument drops hash entries pointing at docID.
func (s *JobStore) ForgetDocument(docID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for h, id := range s.hashes {
		if id == docID {
			delete(s.hashes, h)
		}
	}
}

// Cleanup removes finished jobs idle for longer than the TTL.
func (s *JobStore) Cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for id, job := range s.jobs {
		if !job.CurrentStatus().Terminal() || now.Sub(job.updatedAt()) <= s.ttl {
			continue
		}
		delete(s.jobs, id)
		if s.active[job.DocID] == id {
			delete(s.active, job.DocID)
		}
	}
}

// SetStatus updates job status atomically.
func (j *Job) SetStatus(status JobStatus, phase string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.Status = status
	j.Phase = phase
	j.UpdatedAt = time.Now()
}

// CurrentStatus reads the status under the job lock.
func (j *Job) CurrentStatus() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.Status
}

func (j *Job) updatedAt() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.UpdatedAt
}

// AddError records an error.
func (j *Job) AddError(err string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.errors = append(j.errors, err)
	j.Progress.Errors = j.errors
	j.UpdatedAt = time.Now()
}

// Update applies fn to the progress under the job lock.
func (j *Job) Update(fn func(p *Progress)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	fn(&j.Progress)
	j.UpdatedAt = time.Now()
}

// SetContentHash records the hash of the parsed text.
func (j *Job) SetContentHash(h string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ContentHash = h
}

// FileData returns the raw file bytes.
func (j *Job) FileData() []byte {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.fileData
}

// releaseFileData drops the upload once parsed.
func (j *Job) releaseFileData() {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.fileData = nil
}

// JobSnapshot is a read-only, JSON-safe copy of job state.
type JobSnapshot struct {
	ID          string    `json:"job_id"`
	DocID       string    `json:"doc_id"`
	Status      JobStatus `json:"status"`
	Phase       string    `json:"phase"`
	Filename    string    `json:"filename"`
	Title       string    `json:"title"`
	ContentHash string    `json:"content_hash,omitempty"`
	Progress    Progress  `json:"progress"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a JSON-safe copy of the job state.
func (j *Job) Snapshot() JobSnapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	p := j.Progress
	p.Errors = append([]string{}, j.Progress.Errors...)
	return JobSnapshot{
		ID:          j.ID,
		DocID:       j.DocID,
		Status:      j.Status,
		Phase:       j.Phase,
		Filename:    j.Filename,
		Title:       j.Title,
		ContentHash: j.ContentHash,
		Progress:    p,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

// ContentHashHex computes SHA-256 of content and returns hex string.
func ContentHashHex(data []byte) string {
	h := sha256.Sum256(data)
	return fmt.Sprintf("%x", h[:])
}
