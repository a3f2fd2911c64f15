package drive

import (
	"sync"
	"time"

	"github.com/CrispStrobe/filen-go/internal/models"
)

// timeNow is swapped in tests to step the cache clock.
var timeNow = time.Now

type folderEntry struct {
	items      []models.Folder
	insertedAt time.Time
}

type fileEntry struct {
	items      []models.File
	insertedAt time.Time
}

// ListingCache memoizes decrypted directory listings per parent uuid.
// Folders and files are cached independently because the resolver often
// needs only the folder half of a level. A single lock guards both maps;
// every hot path around it is network-bound anyway.
type ListingCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	folders map[string]folderEntry
	files   map[string]fileEntry
}

func NewListingCache(ttl time.Duration) *ListingCache {
	return &ListingCache{
		ttl:     ttl,
		folders: make(map[string]folderEntry),
		files:   make(map[string]fileEntry),
	}
}

// GetFolders returns a copy of the cached folder listing, if fresh.
func (c *ListingCache) GetFolders(parent string) ([]models.Folder, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.folders[parent]
	if !ok || c.expired(e.insertedAt) {
		return nil, false
	}
	out := make([]models.Folder, len(e.items))
	copy(out, e.items)
	return out, true
}

// GetFiles returns a copy of the cached file listing, if fresh.
func (c *ListingCache) GetFiles(parent string) ([]models.File, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.files[parent]
	if !ok || c.expired(e.insertedAt) {
		return nil, false
	}
	out := make([]models.File, len(e.items))
	copy(out, e.items)
	return out, true
}

// PutFolders stores a folder listing. The cache takes ownership of items.
func (c *ListingCache) PutFolders(parent string, items []models.Folder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.folders[parent] = folderEntry{items: items, insertedAt: timeNow()}
}

// PutFiles stores a file listing. The cache takes ownership of items.
func (c *ListingCache) PutFiles(parent string, items []models.File) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[parent] = fileEntry{items: items, insertedAt: timeNow()}
}

// Invalidate drops both halves of a parent's listing. Mutations call this
// for the source parent and the destination parent before they return.
func (c *ListingCache) Invalidate(parent string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.folders, parent)
	delete(c.files, parent)
}

func (c *ListingCache) expired(insertedAt time.Time) bool {
	return timeNow().Sub(insertedAt) >= c.ttl
}
