// Package lru implements the least-recently-used eviction policy.
package lru

import "github.com/IvanBrykalov/contentcache/eviction"

// lru is a classic move-to-front policy. Because every admission and every
// use moves the node to the MRU end, the LRU end always holds the entry
// with the oldest last access, ties going to the one inserted first.
type lru struct {
	h eviction.Hooks
}

type lruPolicy struct{}

// New returns a Policy factory that constructs LRU instances.
func New() eviction.Policy { return lruPolicy{} }

// New implements eviction.Policy.
func (lruPolicy) New(h eviction.Hooks) eviction.StorePolicy { return &lru{h: h} }

// OnAdd places the new entry at MRU.
func (p *lru) OnAdd(n eviction.Node) { p.h.PushFront(n) }

// OnGet promotes the entry to MRU.
func (p *lru) OnGet(n eviction.Node) { p.h.MoveToFront(n) }

// OnUpdate promotes the entry to MRU (a refreshing write counts as a use).
func (p *lru) OnUpdate(n eviction.Node) { p.h.MoveToFront(n) }

// OnRemove is a no-op: pure LRU keeps no state outside the list.
func (p *lru) OnRemove(_ eviction.Node) {}

// Victim walks from the LRU end and returns the first node not keyed exclude.
func (p *lru) Victim(exclude string) eviction.Node {
	for n := p.h.Back(); n != nil; n = p.h.Prev(n) {
		if exclude == "" || n.Key() != exclude {
			return n
		}
	}
	return nil
}
