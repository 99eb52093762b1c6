package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/fyrsmithlabs/ragd/internal/ignore"
	"github.com/fyrsmithlabs/ragd/internal/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubmitter struct {
	mu    sync.Mutex
	paths []string
}

func (r *recordingSubmitter) Submit(_ context.Context, u ingest.Upload) (ingest.Handle, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, u.Path)
	return ingest.Handle{DocumentID: "id-" + filepath.Base(u.Path)}, nil
}

func (r *recordingSubmitter) submitted() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.paths...)
}

func TestEligible(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"/drop/report.pdf", true},
		{"/drop/notes.MD", true},
		{"/drop/letter.docx", true},
		{"/drop/plain.txt", true},
		{"/drop/.hidden.txt", false},
		{"/drop/~$letter.docx", false},
		{"/drop/image.png", false},
		{"/drop/noext", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Eligible(tt.path))
		})
	}
}

func TestNew_RequiresDir(t *testing.T) {
	_, err := New("", &recordingSubmitter{})
	assert.ErrorIs(t, err, ErrWatcherFailed)
}

func TestWatcher_SubmitsSettledFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "drop")
	sub := &recordingSubmitter{}
	w, err := New(dir, sub, WithSettle(50*time.Millisecond))
	require.NoError(t, err)
	require.DirExists(t, dir)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	doc := filepath.Join(dir, "report.txt")
	require.NoError(t, os.WriteFile(doc, []byte("first write"), 0o600))
	require.NoError(t, os.WriteFile(doc, []byte("second write, same file"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte("png"), 0o600))

	require.Eventually(t, func() bool { return len(sub.submitted()) == 1 }, 5*time.Second, 10*time.Millisecond)
	// Give a late duplicate a chance to show up.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, []string{doc}, sub.submitted())
}

func TestWatcher_SkipsIgnoredFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ignore.FileName), []byte("draft-*\n"), 0o600))
	m, err := ignore.Load(dir)
	require.NoError(t, err)

	sub := &recordingSubmitter{}
	w, err := New(dir, sub, WithSettle(20*time.Millisecond), WithIgnore(m))
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, w.Start(ctx))
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "draft-plan.txt"), []byte("skip me"), 0o600))
	keep := filepath.Join(dir, "plan.txt")
	require.NoError(t, os.WriteFile(keep, []byte("ingest me"), 0o600))

	require.Eventually(t, func() bool { return len(sub.submitted()) == 1 }, 5*time.Second, 10*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, []string{keep}, sub.submitted())
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), &recordingSubmitter{})
	require.NoError(t, err)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	w.Stop()
}
