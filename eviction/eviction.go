// Package eviction defines how a cache.Store orders its entries for
// capacity eviction. The store owns an intrusive MRU↔LRU list and exposes
// it to a policy through Hooks; the policy decides where entries move and
// which one goes first when the store is full.
package eviction

// Node is the minimal view of a store entry a policy needs.
type Node interface {
	Key() string
}

// Hooks expose O(1) list operations on the store's MRU↔LRU list.
//
// Concurrency: all hook calls happen under the store lock.
// Hooks manage only the list; the store owns the key->entry map.
type Hooks interface {
	// MoveToFront promotes the node to MRU.
	MoveToFront(Node)
	// PushFront inserts the node at MRU (used on admission).
	PushFront(Node)
	// Remove detaches the node from the list.
	Remove(Node)
	// Back returns the current LRU node (or nil if empty).
	Back() Node
	// Prev returns the node just more recently used than n (or nil).
	Prev(n Node) Node
	// Len returns the number of resident nodes.
	Len() int
}

// StorePolicy is a policy instance bound to one store's hooks.
// All methods are invoked under the store lock.
//
// Semantics:
//   - OnAdd admits a new node; OnGet/OnUpdate record a use of it.
//   - OnRemove is a notification; the store performs the unlink itself.
//   - Victim returns the node to evict next, skipping the node keyed
//     exclude (pass "" to skip nothing). It returns nil when no candidate
//     exists.
type StorePolicy interface {
	OnAdd(Node)
	OnGet(Node)
	OnUpdate(Node)
	OnRemove(Node)
	Victim(exclude string) Node
}

// Policy is a factory that binds a policy to a store's hooks.
type Policy interface {
	New(Hooks) StorePolicy
}
