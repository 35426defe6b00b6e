package timeline

import (
	"container/list"

	"github.com/flodgatt/flodgatt/internal/id"
)

// lruCache is a small bidirectional, capacity-bounded (1000-entry) LRU
// from hashtag name to numeric id, built on container/list plus a map
// rather than a third-party LRU package.
type lruCache struct {
	capacity int
	order    *list.List // front = most recently used
	byName   map[string]*list.Element
	byID     map[id.Id]*list.Element
}

type lruEntry struct {
	name string
	id   id.Id
}

func newLRUCache(capacity int) *lruCache {
	return &lruCache{
		capacity: capacity,
		order:    list.New(),
		byName:   make(map[string]*list.Element),
		byID:     make(map[id.Id]*list.Element),
	}
}

func (c *lruCache) put(name string, tagID id.Id) {
	if el, ok := c.byName[name]; ok {
		c.order.MoveToFront(el)
		old := el.Value.(*lruEntry)
		delete(c.byID, old.id)
		old.id = tagID
		c.byID[tagID] = el
		return
	}
	entry := &lruEntry{name: name, id: tagID}
	el := c.order.PushFront(entry)
	c.byName[name] = el
	c.byID[tagID] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.evict(oldest)
		}
	}
}

func (c *lruCache) evict(el *list.Element) {
	entry := el.Value.(*lruEntry)
	delete(c.byName, entry.name)
	delete(c.byID, entry.id)
	c.order.Remove(el)
}

func (c *lruCache) getByName(name string) (id.Id, bool) {
	el, ok := c.byName[name]
	if !ok {
		return 0, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry).id, true
}

func (c *lruCache) getByID(tagID id.Id) (string, bool) {
	el, ok := c.byID[tagID]
	if !ok {
		return "", false
	}
	c.order.MoveToFront(el)
	return el.Value.(*lruEntry).name, true
}
