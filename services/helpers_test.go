package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/basit/rushupload-backend/mailer"
	"github.com/basit/rushupload-backend/models"
	"github.com/basit/rushupload-backend/quota"
	"github.com/basit/rushupload-backend/storage/storagetest"
	"github.com/basit/rushupload-backend/testutil"
	"github.com/basit/rushupload-backend/upload"
)

type recordingNotifier struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (n *recordingNotifier) Deliver(msg mailer.Message) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

type mapLinkCache struct {
	mu          sync.Mutex
	links       map[string]*models.Link
	invalidated []string
}

func newMapLinkCache() *mapLinkCache {
	return &mapLinkCache{links: make(map[string]*models.Link)}
}

func (c *mapLinkCache) Get(_ context.Context, id string) (*models.Link, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	l, ok := c.links[id]
	return l, ok
}

func (c *mapLinkCache) Set(_ context.Context, link *models.Link) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.links[link.ID] = link
}

func (c *mapLinkCache) Invalidate(_ context.Context, id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.links, id)
	c.invalidated = append(c.invalidated, id)
}

type fixture struct {
	db       *gorm.DB
	store    *storagetest.Fake
	notifier *recordingNotifier
	links    *mapLinkCache
	dist     *DistributionService
	files    *FileService
	tracker  *DownloadTracker
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewTestDB(t)
	store := storagetest.New()
	notifier := &recordingNotifier{}
	links := newMapLinkCache()

	return &fixture{
		db:       db,
		store:    store,
		notifier: notifier,
		links:    links,
		dist:     NewDistributionService(db, quota.NewEnforcer(quota.DefaultTable()), notifier, "https://app.example/"),
		files:    NewFileService(db, links),
		tracker:  NewDownloadTracker(db, store, DailyFingerprinter{}, 5*time.Minute),
	}
}

func (f *fixture) freeUser(t *testing.T, email string, used int64) *models.User {
	t.Helper()
	return testutil.CreateUser(t, f.db, email, models.TierFree, quota.GiB, used)
}

func (f *fixture) usage(t *testing.T, id uuid.UUID) int64 {
	t.Helper()
	var u models.User
	require.NoError(t, f.db.First(&u, "id = ?", id).Error)
	return u.UsedStorage
}

func (f *fixture) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, f.db.Model(model).Count(&n).Error)
	return n
}

func fileFor(owner *models.User, name string, size int64) FileInput {
	return FileInput{
		OriginalName: name,
		StorageKey:   upload.ObjectKey(owner.ID, name),
		Type:         "application/pdf",
		Size:         size,
	}
}
