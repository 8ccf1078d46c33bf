package server

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/livetemplate/listingkit/internal/config"
	"github.com/livetemplate/listingkit/internal/store"
)

func TestWatcherReportsDocumentIDs(t *testing.T) {
	dir := t.TempDir()
	changed := make(chan string, 16)
	w, err := NewWatcher(dir, func(id string) error {
		changed <- id
		return nil
	}, nil)
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "shirt.json"), []byte("{}"), 0644))

	select {
	case id := <-changed:
		assert.Equal(t, "shirt", id)
	case <-time.After(5 * time.Second):
		t.Fatal("no change reported")
	}
}

func TestWatcherStopIsClean(t *testing.T) {
	w, err := NewWatcher(t.TempDir(), func(string) error { return nil }, nil)
	require.NoError(t, err)
	w.Start()
	assert.NoError(t, w.Stop())
}

func TestEnableWatchBroadcastsExternalEdits(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.srv.EnableWatch())

	conn := env.dial(t, "doc=shirt")
	readMessage(t, conn)

	doc := testDoc()
	doc.Content["title"] = "Linen Shirt, now in blue"
	data, err := doc.Marshal()
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(env.store.Path("shirt"), data, 0644))

	// A single write may surface as several events; wait for the new title.
	deadline := time.Now().Add(5 * time.Second)
	for {
		msg := readMessage(t, conn)
		if msg.Type == "render" && strings.Contains(msg.HTML, "now in blue") {
			break
		}
		require.True(t, time.Now().Before(deadline), "no re-render with the external edit")
	}
}

func TestEnableWatchIgnoresOwnWrites(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.srv.EnableWatch())

	doc := testDoc()
	require.NoError(t, env.srv.saveDocument(context.Background(), "shirt", doc))
	assert.True(t, env.srv.recentlyWritten("shirt"))
	assert.False(t, env.srv.recentlyWritten("other"))
}

func TestEnableWatchNeedsFileStore(t *testing.T) {
	sq, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "docs.db"), "documents")
	require.NoError(t, err)
	defer sq.Close()

	srv := New(config.DefaultConfig(), sq)
	defer srv.Close()
	assert.ErrorContains(t, srv.EnableWatch(), "hot reload needs the file store")
}
