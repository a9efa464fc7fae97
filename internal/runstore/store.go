// Package runstore provides append-only, crash-safe, idempotent
// persistence for a single coordination run: manifest events, question
// inbox, answers, metrics, the shared fact pool, and per-wave documents.
package runstore

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// Log file names within a run directory.
const (
	ManifestLog = "manifest.jsonl"
	InboxLog    = "inbox.jsonl"
	AnswersLog  = "answers.jsonl"
	MetricsLog  = "metrics.jsonl"
	poolFile    = "pool.json"
	wavesDir    = "waves"
	artifactDir = "artifacts"
)

// Well-known manifest event types.
const (
	EventRunStarted      = "run_started"
	EventRunCompleted    = "run_completed"
	EventWaveStarted     = "wave_started"
	EventWaveCompleted   = "wave_completed"
	EventDelegationDone  = "delegation_done"
	EventPolicyViolation = "policy_violation"
	EventIterationCeiled = "iteration_ceiling_reached"
)

// Record is one line in an append-only log.
type Record struct {
	EventType      string         `json:"event_type"`
	Payload        map[string]any `json:"payload,omitempty"`
	IdempotencyKey string         `json:"idempotency_key,omitempty"`
	Timestamp      time.Time      `json:"ts"`
}

// Store is the per-run persistence root. Every mutating operation is
// guarded by a single lock held only for the read-modify-write, never
// across an external call.
type Store struct {
	mu    sync.Mutex
	dir   string
	runID string
	// seen tracks idempotency keys per log so replayed appends are
	// dropped instead of duplicated.
	seen map[string]map[string]bool
	now  func() time.Time
}

// Open creates or reopens the store for the given run under root.
// Existing logs are scanned so idempotency survives process restarts.
func Open(root, runID string) (*Store, error) {
	if runID == "" {
		return nil, errors.New("runstore: empty run id")
	}
	dir := filepath.Join(root, "runs", runID)
	for _, d := range []string{dir, filepath.Join(dir, wavesDir), filepath.Join(dir, artifactDir)} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return nil, fmt.Errorf("create run directory: %w", err)
		}
	}

	s := &Store{
		dir:   dir,
		runID: runID,
		seen:  make(map[string]map[string]bool),
		now:   time.Now,
	}
	for _, log := range []string{ManifestLog, InboxLog, AnswersLog, MetricsLog} {
		keys, err := s.scanKeys(log)
		if err != nil {
			return nil, err
		}
		s.seen[log] = keys
	}
	return s, nil
}

// Dir returns the run directory path.
func (s *Store) Dir() string { return s.dir }

// RunID returns the run identifier.
func (s *Store) RunID() string { return s.runID }

func (s *Store) scanKeys(log string) (map[string]bool, error) {
	keys := make(map[string]bool)
	f, err := os.Open(filepath.Join(s.dir, log))
	if err != nil {
		if os.IsNotExist(err) {
			return keys, nil
		}
		return nil, fmt.Errorf("open %s: %w", log, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			// A torn trailing line from a crash is tolerated; anything
			// the scanner yields that doesn't parse is skipped.
			continue
		}
		if rec.IdempotencyKey != "" {
			keys[rec.IdempotencyKey] = true
		}
	}
	return keys, scanner.Err()
}

// AppendManifest appends a manifest event.
func (s *Store) AppendManifest(rec Record) error { return s.appendLog(ManifestLog, rec) }

// AppendInbox appends an inbox record (questions surfaced to the user).
func (s *Store) AppendInbox(rec Record) error { return s.appendLog(InboxLog, rec) }

// AppendAnswer appends an answer record.
func (s *Store) AppendAnswer(rec Record) error { return s.appendLog(AnswersLog, rec) }

// AppendMetric appends a metric record.
func (s *Store) AppendMetric(rec Record) error { return s.appendLog(MetricsLog, rec) }

// appendLog performs an idempotent append: a record whose key was seen
// before is silently dropped. Records without a key are assigned one.
func (s *Store) appendLog(log string, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.IdempotencyKey == "" {
		rec.IdempotencyKey = uuid.New().String()
	}
	if s.seen[log][rec.IdempotencyKey] {
		return nil
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now()
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}

	f, err := os.OpenFile(filepath.Join(s.dir, log), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("open %s: %w", log, err)
	}
	defer f.Close()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append %s: %w", log, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync %s: %w", log, err)
	}

	s.seen[log][rec.IdempotencyKey] = true
	return nil
}

// Records reads every record from the named log in append order.
func (s *Store) Records(log string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(filepath.Join(s.dir, log))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open %s: %w", log, err)
	}
	defer f.Close()

	var records []Record
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var rec Record
		if err := json.Unmarshal(scanner.Bytes(), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, scanner.Err()
}

// LastCompletedWave scans the manifest for the highest wave_completed
// index. Returns -1 when no wave has completed.
func (s *Store) LastCompletedWave() (int, error) {
	records, err := s.Records(ManifestLog)
	if err != nil {
		return -1, err
	}
	last := -1
	for _, rec := range records {
		if rec.EventType != EventWaveCompleted {
			continue
		}
		if n, ok := rec.Payload["wave"].(float64); ok && int(n) > last {
			last = int(n)
		}
	}
	return last, nil
}

// AnsweredQuestionIDs returns the set of question IDs with a recorded
// answer, letting the engine avoid re-asking.
func (s *Store) AnsweredQuestionIDs() (map[string]bool, error) {
	records, err := s.Records(AnswersLog)
	if err != nil {
		return nil, err
	}
	ids := make(map[string]bool)
	for _, rec := range records {
		if id, ok := rec.Payload["question_id"].(string); ok && id != "" {
			ids[id] = true
		}
	}
	return ids, nil
}

// WriteWaveDocs writes the compact and detailed markdown documents for
// a wave index, both atomically.
func (s *Store) WriteWaveDocs(index int, compact, detailed string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	compactPath := filepath.Join(s.dir, wavesDir, fmt.Sprintf("wave_%02d_compact.md", index))
	if err := atomicWriteFile(compactPath, []byte(compact), 0644); err != nil {
		return fmt.Errorf("write compact wave doc: %w", err)
	}
	detailedPath := filepath.Join(s.dir, wavesDir, fmt.Sprintf("wave_%02d_detailed.md", index))
	if err := atomicWriteFile(detailedPath, []byte(detailed), 0644); err != nil {
		return fmt.Errorf("write detailed wave doc: %w", err)
	}
	return nil
}

// WriteArtifact atomically writes a named document under artifacts/.
func (s *Store) WriteArtifact(name string, content []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if name == "" || name != filepath.Base(name) {
		return fmt.Errorf("invalid artifact name %q", name)
	}
	return atomicWriteFile(filepath.Join(s.dir, artifactDir, name), content, 0644)
}

// pool is the on-disk shape of pool.json.
type pool struct {
	Facts []models.Fact `json:"facts"`
}

// MergeFacts merges new facts into the pool and atomically rewrites it.
// Merging is last-writer-appends: a fact whose ID already exists is a
// no-op, and a new fact with identical content+origin as a live
// existing fact marks the old one superseded rather than deleting it.
// Returns how many facts were appended.
func (s *Store) MergeFacts(facts []models.Fact) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadPoolLocked()
	if err != nil {
		return 0, err
	}

	byID := make(map[string]int, len(current.Facts))
	for i, f := range current.Facts {
		byID[f.ID] = i
	}

	added := 0
	for _, fact := range facts {
		if fact.ID == "" {
			fact.ID = models.NewFactID(fact.Content, fact.Origin)
		}
		if _, exists := byID[fact.ID]; exists {
			continue
		}
		for i, old := range current.Facts {
			if old.Live() && old.Content == fact.Content && old.Origin == fact.Origin {
				current.Facts[i].SupersededBy = fact.ID
			}
		}
		current.Facts = append(current.Facts, fact)
		byID[fact.ID] = len(current.Facts) - 1
		added++
	}

	if added == 0 {
		return 0, nil
	}

	content, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("marshal pool: %w", err)
	}
	if err := atomicWriteFile(filepath.Join(s.dir, poolFile), content, 0644); err != nil {
		return 0, fmt.Errorf("write pool: %w", err)
	}
	return added, nil
}

// Facts returns all facts in the pool, superseded ones included.
func (s *Store) Facts() ([]models.Fact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, err := s.loadPoolLocked()
	if err != nil {
		return nil, err
	}
	return current.Facts, nil
}

// LiveFacts returns only facts that have not been superseded.
func (s *Store) LiveFacts() ([]models.Fact, error) {
	all, err := s.Facts()
	if err != nil {
		return nil, err
	}
	var live []models.Fact
	for _, f := range all {
		if f.Live() {
			live = append(live, f)
		}
	}
	return live, nil
}

func (s *Store) loadPoolLocked() (*pool, error) {
	content, err := os.ReadFile(filepath.Join(s.dir, poolFile))
	if err != nil {
		if os.IsNotExist(err) {
			return &pool{}, nil
		}
		return nil, fmt.Errorf("read pool: %w", err)
	}
	var p pool
	if err := json.Unmarshal(content, &p); err != nil {
		return nil, fmt.Errorf("parse pool: %w", err)
	}
	return &p, nil
}
