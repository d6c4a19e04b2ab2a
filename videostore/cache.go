package videostore

import (
	"github.com/kestrelav/simdup/video"
)

// fifoCache is a bounded video_id -> Candidate cache evicted strictly
// FIFO, not LRU: videos are ingested sequentially and a recently added
// candidate is more likely to match the one currently being processed
// than an old one is to be re-queried. Capacity 0 disables caching.
type fifoCache struct {
	capacity int
	data     map[string]video.Candidate
	order    []string
}

func newFIFOCache(capacity int) *fifoCache {
	if capacity < 0 {
		capacity = 0
	}
	return &fifoCache{
		capacity: capacity,
		data:     make(map[string]video.Candidate, capacity),
	}
}

func (c *fifoCache) get(videoID string) (video.Candidate, bool) {
	if c.capacity == 0 {
		return video.Candidate{}, false
	}
	v, ok := c.data[videoID]
	return v, ok
}

func (c *fifoCache) put(videoID string, v video.Candidate) {
	if c.capacity == 0 {
		return
	}
	if _, exists := c.data[videoID]; exists {
		c.data[videoID] = v
		return
	}
	if len(c.order) >= c.capacity {
		oldest := c.order[0]
		c.order = c.order[1:]
		delete(c.data, oldest)
	}
	c.order = append(c.order, videoID)
	c.data[videoID] = v
}

func (c *fifoCache) evict(videoID string) {
	if _, exists := c.data[videoID]; !exists {
		return
	}
	delete(c.data, videoID)
	for i, id := range c.order {
		if id == videoID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}
