package runstore

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), "run-1")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func TestAppendIdempotent(t *testing.T) {
	s := openTestStore(t)

	rec := Record{
		EventType:      EventWaveCompleted,
		Payload:        map[string]any{"wave": 0},
		IdempotencyKey: "wave_completed:run-1:0",
	}
	if err := s.AppendManifest(rec); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := s.AppendManifest(rec); err != nil {
		t.Fatalf("second append: %v", err)
	}

	records, err := s.Records(ManifestLog)
	if err != nil {
		t.Fatalf("read records: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("expected exactly 1 stored record, got %d", len(records))
	}
}

func TestAppendIdempotentAcrossReopen(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, "run-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	rec := Record{EventType: "x", IdempotencyKey: "k1"}
	if err := s.AppendMetric(rec); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Reopen: the key must survive the restart.
	s2, err := Open(root, "run-1")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if err := s2.AppendMetric(rec); err != nil {
		t.Fatalf("append after reopen: %v", err)
	}

	records, _ := s2.Records(MetricsLog)
	if len(records) != 1 {
		t.Errorf("expected 1 record after reopen, got %d", len(records))
	}
}

func TestAppendAssignsKey(t *testing.T) {
	s := openTestStore(t)
	if err := s.AppendInbox(Record{EventType: "question"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	records, _ := s.Records(InboxLog)
	if len(records) != 1 || records[0].IdempotencyKey == "" {
		t.Errorf("expected assigned idempotency key, got %+v", records)
	}
}

func TestMergeFactsIdempotent(t *testing.T) {
	s := openTestStore(t)
	fact := models.NewFact("the API uses cursor pagination", "researcher", 0.9)

	added, err := s.MergeFacts([]models.Fact{fact})
	if err != nil {
		t.Fatalf("first merge: %v", err)
	}
	if added != 1 {
		t.Errorf("expected 1 added, got %d", added)
	}

	added, err = s.MergeFacts([]models.Fact{fact})
	if err != nil {
		t.Fatalf("second merge: %v", err)
	}
	if added != 0 {
		t.Errorf("expected 0 added on duplicate merge, got %d", added)
	}

	facts, _ := s.Facts()
	if len(facts) != 1 {
		t.Errorf("pool count changed on duplicate merge: %d", len(facts))
	}
}

func TestMergeFactsSupersedes(t *testing.T) {
	s := openTestStore(t)

	old := models.Fact{ID: "old-id", Content: "deploys run nightly", Origin: "researcher"}
	if _, err := s.MergeFacts([]models.Fact{old}); err != nil {
		t.Fatalf("merge old: %v", err)
	}

	// Same content+origin, different explicit ID: the old fact is
	// superseded, never deleted.
	newer := models.Fact{ID: "new-id", Content: "deploys run nightly", Origin: "researcher"}
	if _, err := s.MergeFacts([]models.Fact{newer}); err != nil {
		t.Fatalf("merge newer: %v", err)
	}

	facts, _ := s.Facts()
	if len(facts) != 2 {
		t.Fatalf("expected 2 facts, got %d", len(facts))
	}
	var oldStored models.Fact
	for _, f := range facts {
		if f.ID == "old-id" {
			oldStored = f
		}
	}
	if oldStored.SupersededBy != "new-id" {
		t.Errorf("old fact should be superseded by new-id, got %q", oldStored.SupersededBy)
	}

	live, _ := s.LiveFacts()
	if len(live) != 1 || live[0].ID != "new-id" {
		t.Errorf("expected only new-id live, got %+v", live)
	}
}

func TestMergeFactsAssignsContentAddressedID(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.MergeFacts([]models.Fact{{Content: "x", Origin: "y"}}); err != nil {
		t.Fatalf("merge: %v", err)
	}
	facts, _ := s.Facts()
	if len(facts) != 1 || facts[0].ID != models.NewFactID("x", "y") {
		t.Errorf("expected content-addressed id, got %+v", facts)
	}
}

func TestWaveDocs(t *testing.T) {
	s := openTestStore(t)
	if err := s.WriteWaveDocs(3, "# compact", "# detailed"); err != nil {
		t.Fatalf("write wave docs: %v", err)
	}

	compact, err := os.ReadFile(filepath.Join(s.Dir(), "waves", "wave_03_compact.md"))
	if err != nil {
		t.Fatalf("read compact: %v", err)
	}
	if string(compact) != "# compact" {
		t.Errorf("unexpected compact content %q", compact)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "waves", "wave_03_detailed.md")); err != nil {
		t.Errorf("detailed doc missing: %v", err)
	}
}

func TestLastCompletedWave(t *testing.T) {
	s := openTestStore(t)

	if last, _ := s.LastCompletedWave(); last != -1 {
		t.Errorf("expected -1 for fresh run, got %d", last)
	}

	for _, n := range []int{0, 2, 1} {
		if err := s.AppendManifest(Record{
			EventType: EventWaveCompleted,
			Payload:   map[string]any{"wave": n},
		}); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	last, err := s.LastCompletedWave()
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if last != 2 {
		t.Errorf("expected highest completed wave 2, got %d", last)
	}
}

func TestAnsweredQuestionIDs(t *testing.T) {
	s := openTestStore(t)
	if err := s.AppendAnswer(Record{
		EventType: "answer",
		Payload:   map[string]any{"question_id": "q1", "text": "use postgres"},
	}); err != nil {
		t.Fatalf("append: %v", err)
	}

	ids, err := s.AnsweredQuestionIDs()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !ids["q1"] || len(ids) != 1 {
		t.Errorf("unexpected answered set: %v", ids)
	}
}

func TestWriteArtifact(t *testing.T) {
	s := openTestStore(t)
	if err := s.WriteArtifact("compact_truth.md", []byte("current state")); err != nil {
		t.Fatalf("write artifact: %v", err)
	}
	content, err := os.ReadFile(filepath.Join(s.Dir(), "artifacts", "compact_truth.md"))
	if err != nil || string(content) != "current state" {
		t.Errorf("artifact not written correctly: %v %q", err, content)
	}

	if err := s.WriteArtifact("../escape.md", []byte("x")); err == nil {
		t.Error("path traversal in artifact name must be rejected")
	}
}

func TestTornTrailingLineTolerated(t *testing.T) {
	root := t.TempDir()
	s, err := Open(root, "run-1")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := s.AppendManifest(Record{EventType: "a", IdempotencyKey: "k"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	// Simulate a crash mid-append.
	path := filepath.Join(s.Dir(), ManifestLog)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	if _, err := f.WriteString(`{"event_type":"torn`); err != nil {
		t.Fatalf("write torn line: %v", err)
	}
	f.Close()

	s2, err := Open(root, "run-1")
	if err != nil {
		t.Fatalf("reopen over torn log: %v", err)
	}
	records, err := s2.Records(ManifestLog)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 1 || records[0].EventType != "a" {
		t.Errorf("expected the intact record only, got %+v", records)
	}
	if !strings.HasSuffix(s2.Dir(), filepath.Join("runs", "run-1")) {
		t.Errorf("unexpected dir %s", s2.Dir())
	}
}
