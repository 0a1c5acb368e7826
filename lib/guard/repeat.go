package guard

import (
	"strings"
	"sync"
	"time"

	cache "github.com/go-pkgz/expirable-cache/v3"
)

// repeatCache tracks the last message per (user, room) for duplicate detection.
// Unlike a full history it keeps a single entry per key: identical text bumps the
// counter, any other text resets the streak to one.
type repeatCache struct {
	threshold int
	window    time.Duration
	cache     cache.Cache[string, repeatEntry]
	mu        sync.Mutex
	now       func() time.Time
}

type repeatEntry struct {
	text     string // normalized last message
	count    int
	lastSeen time.Time
}

const defaultMaxRepeatKeys = 10000

func newRepeatCache(threshold int, window time.Duration) *repeatCache {
	if threshold <= 0 {
		return nil // disabled
	}
	return &repeatCache{
		threshold: threshold,
		window:    window,
		cache:     cache.NewCache[string, repeatEntry]().WithMaxKeys(defaultMaxRepeatKeys).WithTTL(window * 2),
		now:       time.Now,
	}
}

// track records the message and returns the current streak length.
// The entry is evicted lazily: anything older than the window starts a new streak.
func (r *repeatCache) track(userID, roomID, text string) int {
	if r == nil {
		return 0
	}
	normalized := strings.ToLower(strings.TrimSpace(text))
	key := userID + ":" + roomID
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, found := r.cache.Get(key)
	if !found || entry.text != normalized || now.Sub(entry.lastSeen) > r.window {
		entry = repeatEntry{text: normalized, count: 1, lastSeen: now}
		r.cache.Set(key, entry, r.window*2)
		return entry.count
	}

	entry.count++
	entry.lastSeen = now
	r.cache.Set(key, entry, r.window*2)
	return entry.count
}

// peek returns the streak length the message would reach without recording it,
// used for check-only requests so dry runs don't pollute live streaks.
func (r *repeatCache) peek(userID, roomID, text string) int {
	if r == nil {
		return 0
	}
	normalized := strings.ToLower(strings.TrimSpace(text))
	key := userID + ":" + roomID
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	entry, found := r.cache.Get(key)
	if !found || entry.text != normalized || now.Sub(entry.lastSeen) > r.window {
		return 1
	}
	return entry.count + 1
}

// exceeded reports if the streak for the given count hits the threshold.
func (r *repeatCache) exceeded(count int) bool {
	return r != nil && count >= r.threshold
}
