// Package tree mirrors the device's directory structure in memory.
//
// Directories are populated lazily: Fetch marks a node as in flight and asks
// the owner to issue the listing command; ApplyListing installs the result.
// Nodes live in an arena and refer to each other by NodeID, so replacing a
// directory's children releases the old subtree back to the free list
// without dangling references.
package tree

import (
	"sort"

	"github.com/opd-ai/pixlfs/protocol"
	"github.com/sirupsen/logrus"
)

// NodeID identifies a node in the arena. The generation makes IDs of released
// nodes invalid once their slot is reused. The zero value is never valid.
type NodeID struct {
	index uint32
	gen   uint32
}

// Valid reports whether the ID was issued by a cache.
func (id NodeID) Valid() bool {
	return id.gen != 0
}

// Node is a snapshot of one remote file or directory.
type Node struct {
	ID       NodeID
	Name     string
	Path     string
	Size     uint32
	IsDir    bool
	Fetched  bool
	Fetching bool
	Parent   NodeID
	Children []NodeID
}

type slot struct {
	node Node
	gen  uint32
	live bool
}

// Cache is the remote tree. It is not safe for concurrent use; the owner
// serializes access.
type Cache struct {
	slots []slot
	free  []uint32
	root  NodeID

	onFetchRequested   func(path string)
	onDirectoryUpdated func(path string)
}

// New returns a cache holding only the unfetched root.
func New() *Cache {
	c := &Cache{}
	c.Clear()
	return c
}

// OnFetchRequested sets the callback fired when a directory needs listing.
func (c *Cache) OnFetchRequested(fn func(path string)) {
	c.onFetchRequested = fn
}

// OnDirectoryUpdated sets the callback fired after a listing is installed.
func (c *Cache) OnDirectoryUpdated(fn func(path string)) {
	c.onDirectoryUpdated = fn
}

// Clear drops every node except a fresh, unfetched root.
func (c *Cache) Clear() {
	// Slots are kept so their generations keep counting up and IDs issued
	// before the clear stay invalid.
	c.free = c.free[:0]
	for i := len(c.slots) - 1; i >= 0; i-- {
		c.slots[i] = slot{gen: c.slots[i].gen}
		c.free = append(c.free, uint32(i))
	}
	c.root = c.alloc(Node{Name: RootPath, Path: RootPath, IsDir: true})
}

// Root returns the sentinel root's ID.
func (c *Cache) Root() NodeID {
	return c.root
}

// Len returns the number of live nodes, root included.
func (c *Cache) Len() int {
	return len(c.slots) - len(c.free)
}

// Node returns a snapshot of the node with the given ID.
func (c *Cache) Node(id NodeID) (Node, bool) {
	n := c.get(id)
	if n == nil {
		return Node{}, false
	}
	out := *n
	out.Children = append([]NodeID(nil), n.Children...)
	return out, true
}

// Lookup resolves a path and returns its node snapshot.
func (c *Cache) Lookup(path string) (Node, bool) {
	id, ok := c.Resolve(path)
	if !ok {
		return Node{}, false
	}
	return c.Node(id)
}

// Children returns snapshots of a directory's children in display order.
func (c *Cache) Children(path string) []Node {
	id, ok := c.Resolve(path)
	if !ok {
		return nil
	}
	parent := c.get(id)
	out := make([]Node, 0, len(parent.Children))
	for _, child := range parent.Children {
		if n, ok := c.Node(child); ok {
			out = append(out, n)
		}
	}
	return out
}

// Resolve finds a node by path with a breadth-first walk from the root.
func (c *Cache) Resolve(path string) (NodeID, bool) {
	want := NormalizePath(path)
	queue := []NodeID{c.root}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		n := c.get(id)
		if n == nil {
			continue
		}
		if NormalizePath(n.Path) == want {
			return id, true
		}
		queue = append(queue, n.Children...)
	}

	return NodeID{}, false
}

// Fetch requests the listing of a directory that has neither been fetched
// nor is being fetched. It returns true when a request was issued.
func (c *Cache) Fetch(path string) bool {
	id, ok := c.Resolve(path)
	if !ok {
		return false
	}
	n := c.get(id)
	if !n.IsDir || n.Fetched || n.Fetching {
		return false
	}

	n.Fetching = true
	c.requestFetch(n.Path)
	return true
}

// Refresh invalidates a directory and requests it again.
func (c *Cache) Refresh(path string) bool {
	id, ok := c.Resolve(path)
	if !ok {
		return false
	}
	n := c.get(id)
	if !n.IsDir {
		return false
	}

	n.Fetched = false
	n.Fetching = true
	c.requestFetch(n.Path)
	return true
}

// FetchFailed clears the in-flight mark after the device refused a listing,
// so a later Fetch can retry.
func (c *Cache) FetchFailed(path string) {
	if id, ok := c.Resolve(path); ok {
		c.get(id).Fetching = false
	}
}

// ApplyListing replaces a directory's children with entries, sorted
// directories first and then by name. A listing for a path that is not in
// the tree is dropped and false is returned.
func (c *Cache) ApplyListing(path string, entries []protocol.DirEntry) bool {
	id, ok := c.resolveDir(path)
	if !ok {
		logrus.WithFields(logrus.Fields{
			"function": "ApplyListing",
			"path":     path,
			"entries":  len(entries),
		}).Warn("Dropping listing for unknown directory")
		return false
	}

	sorted := append([]protocol.DirEntry(nil), entries...)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].IsDir() != sorted[j].IsDir() {
			return sorted[i].IsDir()
		}
		return sorted[i].Name < sorted[j].Name
	})

	for _, child := range c.get(id).Children {
		c.release(child)
	}

	parentPath := c.get(id).Path
	children := make([]NodeID, 0, len(sorted))
	for _, entry := range sorted {
		children = append(children, c.alloc(Node{
			Name:   entry.Name,
			Path:   JoinPath(parentPath, entry.Name),
			Size:   entry.Size,
			IsDir:  entry.IsDir(),
			Parent: id,
		}))
	}

	// alloc may grow the arena, so the parent is looked up again.
	n := c.get(id)
	n.Children = children
	n.Fetched = true
	n.Fetching = false

	logrus.WithFields(logrus.Fields{
		"function": "ApplyListing",
		"path":     parentPath,
		"entries":  len(children),
	}).Debug("Directory listing applied")

	if c.onDirectoryUpdated != nil {
		c.onDirectoryUpdated(parentPath)
	}
	return true
}

// ApplyDrives installs the drive list as the root's children, one synthetic
// directory per drive. It returns the root path of the first drive the
// device reported, which the caller lists next.
func (c *Cache) ApplyDrives(drives []protocol.Drive) (string, bool) {
	entries := make([]protocol.DirEntry, 0, len(drives))
	for _, drv := range drives {
		entries = append(entries, protocol.DirEntry{
			Name: drv.Root(),
			Size: drv.Size,
			Type: protocol.EntryTypeDir,
		})
	}

	c.ApplyListing(RootPath, entries)
	if len(drives) == 0 {
		return "", false
	}
	return drives[0].Root(), true
}

// Walk visits every live node below the root in breadth-first order.
func (c *Cache) Walk(fn func(Node) bool) {
	queue := append([]NodeID(nil), c.get(c.root).Children...)
	for len(queue) > 0 {
		n, ok := c.Node(queue[0])
		queue = queue[1:]
		if !ok {
			continue
		}
		if !fn(n) {
			return
		}
		queue = append(queue, n.Children...)
	}
}

func (c *Cache) requestFetch(path string) {
	logrus.WithFields(logrus.Fields{
		"function": "Fetch",
		"path":     path,
	}).Debug("Requesting directory listing")

	if c.onFetchRequested != nil {
		c.onFetchRequested(path)
	}
}

func (c *Cache) resolveDir(path string) (NodeID, bool) {
	id, ok := c.Resolve(path)
	if !ok || !c.get(id).IsDir {
		return NodeID{}, false
	}
	return id, true
}

func (c *Cache) get(id NodeID) *Node {
	if !id.Valid() || int(id.index) >= len(c.slots) {
		return nil
	}
	s := &c.slots[id.index]
	if !s.live || s.gen != id.gen {
		return nil
	}
	return &s.node
}

func (c *Cache) alloc(n Node) NodeID {
	var index uint32
	if k := len(c.free); k > 0 {
		index = c.free[k-1]
		c.free = c.free[:k-1]
	} else {
		index = uint32(len(c.slots))
		c.slots = append(c.slots, slot{})
	}

	s := &c.slots[index]
	s.gen++
	s.live = true
	n.ID = NodeID{index: index, gen: s.gen}
	s.node = n
	return n.ID
}

// release frees a node and its whole subtree.
func (c *Cache) release(id NodeID) {
	stack := []NodeID{id}
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		n := c.get(top)
		if n == nil {
			continue
		}
		stack = append(stack, n.Children...)

		c.slots[top.index] = slot{gen: c.slots[top.index].gen}
		c.free = append(c.free, top.index)
	}
}
