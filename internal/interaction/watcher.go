package interaction

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/ShayCichocki/dispatch/pkg/models"
)

// answerLine is the on-disk shape of one answers.jsonl record.
type answerLine struct {
	Payload struct {
		QuestionID string `json:"question_id"`
		Text       string `json:"text"`
		AnsweredBy string `json:"answered_by"`
	} `json:"payload"`
	Timestamp time.Time `json:"ts"`
}

// InboxWatcher tails a run's answers.jsonl so answers appended by an
// external process reach the engine without polling. It watches the
// parent directory because the log may not exist yet when the run
// starts.
type InboxWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onAnswer func(models.Answer)
	offset   int64
	done     chan struct{}
}

// NewInboxWatcher starts watching the answers log at path. onAnswer is
// called once per complete appended record, in file order.
func NewInboxWatcher(path string, onAnswer func(models.Answer)) (*InboxWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	w := &InboxWatcher{
		path:     path,
		watcher:  watcher,
		onAnswer: onAnswer,
		done:     make(chan struct{}),
	}

	// Deliver anything already on disk before the event loop takes over.
	w.drain()
	go w.loop()
	return w, nil
}

func (w *InboxWatcher) loop() {
	defer close(w.done)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				w.drain()
			}
		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

// drain reads complete lines appended since the last offset. A partial
// trailing line is left for the next event.
func (w *InboxWatcher) drain() {
	f, err := os.Open(w.path)
	if err != nil {
		return
	}
	defer f.Close()

	if _, err := f.Seek(w.offset, io.SeekStart); err != nil {
		return
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return
	}

	last := bytes.LastIndexByte(data, '\n')
	if last == -1 {
		return
	}
	complete := data[:last+1]
	w.offset += int64(len(complete))

	for _, line := range bytes.Split(complete, []byte{'\n'}) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec answerLine
		if err := json.Unmarshal(line, &rec); err != nil {
			continue
		}
		if rec.Payload.QuestionID == "" {
			continue
		}
		w.onAnswer(models.Answer{
			QuestionID: rec.Payload.QuestionID,
			Text:       rec.Payload.Text,
			AnsweredBy: rec.Payload.AnsweredBy,
			CreatedAt:  rec.Timestamp,
		})
	}
}

// Close stops the watcher and waits for the event loop to exit.
func (w *InboxWatcher) Close() error {
	err := w.watcher.Close()
	<-w.done
	return err
}
