package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-backoffice/pkg/jobs"
)

func TestFileJanitorRetriesDeletion(t *testing.T) {
	files := newMemoryStorage()
	_, err := files.Save(context.Background(), "student/stu-1/a.pdf", strings.NewReader("x"), 1, "text/plain")
	require.NoError(t, err)
	files.failPaths["student/stu-1/a.pdf"] = errors.New("busy")

	janitor := NewFileJanitor(files, jobs.QueueConfig{RetryDelay: 10 * time.Millisecond, MaxRetries: 10}, nil)
	janitor.Start(context.Background())
	defer janitor.Stop()

	janitor.Schedule("student/stu-1/a.pdf")
	time.Sleep(15 * time.Millisecond)
	files.mu.Lock()
	delete(files.failPaths, "student/stu-1/a.pdf")
	files.mu.Unlock()

	assert.Eventually(t, func() bool { return files.fileCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestDocumentServiceSchedulesCleanupWhenArchiveRemovalFails(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()
	cleaner := &cleanerStub{}
	f.svc.SetFileCleaner(cleaner)

	uploaded, err := f.svc.Upload(ctx, registrar(), categoryRequest("medical"), pdfUpload("m.pdf"))
	require.NoError(t, err)
	f.files.failPaths[uploaded.Document.FilePath] = errors.New("permission denied")

	_, err = f.svc.SoftDelete(ctx, registrar(), uploaded.Document.ID, true)
	require.NoError(t, err)
	assert.Equal(t, []string{uploaded.Document.FilePath}, cleaner.keys)
}

type cleanerStub struct{ keys []string }

func (c *cleanerStub) Schedule(key string) { c.keys = append(c.keys, key) }
