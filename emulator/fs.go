package emulator

import (
	"errors"
	"sort"
	"strings"
)

var (
	errNotFound = errors.New("no such file or directory")
	errExists   = errors.New("already exists")
	errNotDir   = errors.New("not a directory")
	errIsDir    = errors.New("is a directory")
	errNotEmpty = errors.New("directory not empty")
	errBadPath  = errors.New("malformed path")
)

// node is one file or directory of an emulated drive.
type node struct {
	name     string
	dir      bool
	data     []byte
	children map[string]*node
}

func newDir(name string) *node {
	return &node{name: name, dir: true, children: make(map[string]*node)}
}

func (n *node) size() uint32 {
	if n.dir {
		return 0
	}
	return uint32(len(n.data))
}

// used sums the file bytes below n.
func (n *node) used() uint32 {
	var total uint32
	stack := []*node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		total += cur.size()
		for _, child := range cur.children {
			stack = append(stack, child)
		}
	}
	return total
}

// sortedChildren returns a directory's entries in name order.
func (n *node) sortedChildren() []*node {
	out := make([]*node, 0, len(n.children))
	for _, child := range n.children {
		out = append(out, child)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

type drive struct {
	letter byte
	label  string
	size   uint32
	root   *node
}

// splitPath turns "E:/a/b" into 'E' and ["a", "b"].
func splitPath(p string) (byte, []string, error) {
	if len(p) < 3 || p[1] != ':' || p[2] != '/' {
		return 0, nil, errBadPath
	}
	var parts []string
	for _, part := range strings.Split(p[3:], "/") {
		switch part {
		case "", ".":
			continue
		case "..":
			return 0, nil, errBadPath
		}
		parts = append(parts, part)
	}
	return p[0], parts, nil
}

func (d *Device) driveFor(letter byte) *drive {
	for _, drv := range d.drives {
		if drv.letter == letter {
			return drv
		}
	}
	return nil
}

// lookup resolves a full path.
func (d *Device) lookup(p string) (*node, error) {
	letter, parts, err := splitPath(p)
	if err != nil {
		return nil, err
	}
	drv := d.driveFor(letter)
	if drv == nil {
		return nil, errNotFound
	}

	cur := drv.root
	for _, part := range parts {
		if !cur.dir {
			return nil, errNotDir
		}
		next, ok := cur.children[part]
		if !ok {
			return nil, errNotFound
		}
		cur = next
	}
	return cur, nil
}

// lookupParent resolves the directory that holds p and returns the final
// name. Drive roots have no parent.
func (d *Device) lookupParent(p string) (*node, string, error) {
	letter, parts, err := splitPath(p)
	if err != nil {
		return nil, "", err
	}
	if len(parts) == 0 {
		return nil, "", errBadPath
	}

	parentPath := string(letter) + ":/" + strings.Join(parts[:len(parts)-1], "/")
	parent, err := d.lookup(parentPath)
	if err != nil {
		return nil, "", err
	}
	if !parent.dir {
		return nil, "", errNotDir
	}
	return parent, parts[len(parts)-1], nil
}

func (d *Device) mkdir(p string) error {
	parent, name, err := d.lookupParent(p)
	if err != nil {
		return err
	}
	if existing, ok := parent.children[name]; ok {
		if existing.dir {
			return errExists
		}
		return errNotDir
	}
	parent.children[name] = newDir(name)
	return nil
}

func (d *Device) mkdirAll(p string) error {
	letter, parts, err := splitPath(p)
	if err != nil {
		return err
	}
	cur := string(letter) + ":/"
	for _, part := range parts {
		cur += part
		if err := d.mkdir(cur); err != nil && !errors.Is(err, errExists) {
			return err
		}
		cur += "/"
	}
	return nil
}

// create makes an empty file, truncating an existing one.
func (d *Device) create(p string) (*node, error) {
	parent, name, err := d.lookupParent(p)
	if err != nil {
		return nil, err
	}
	if existing, ok := parent.children[name]; ok {
		if existing.dir {
			return nil, errIsDir
		}
		existing.data = nil
		return existing, nil
	}
	f := &node{name: name}
	parent.children[name] = f
	return f, nil
}

func (d *Device) remove(p string) error {
	parent, name, err := d.lookupParent(p)
	if err != nil {
		return err
	}
	target, ok := parent.children[name]
	if !ok {
		return errNotFound
	}
	if target.dir && len(target.children) > 0 {
		return errNotEmpty
	}
	delete(parent.children, name)
	return nil
}

func (d *Device) rename(oldPath, newPath string) error {
	oldParent, oldName, err := d.lookupParent(oldPath)
	if err != nil {
		return err
	}
	target, ok := oldParent.children[oldName]
	if !ok {
		return errNotFound
	}
	if target.dir && strings.HasPrefix(newPath, strings.TrimSuffix(oldPath, "/")+"/") {
		return errBadPath
	}
	newParent, newName, err := d.lookupParent(newPath)
	if err != nil {
		return err
	}
	if _, ok := newParent.children[newName]; ok {
		return errExists
	}

	delete(oldParent.children, oldName)
	target.name = newName
	newParent.children[newName] = target
	return nil
}
