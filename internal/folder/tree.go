package folder

import (
	"maps"
	"slices"
	"strings"

	"github.com/nhle/mailsetup/internal/treetable"
)

// RootSaveID is the save id of the account root. '*' is a LIST wildcard
// and never part of a mailbox name.
const RootSaveID = "*"

type entry struct {
	folder   Folder
	parent   string
	children []string
}

// Tree is an account's mailbox hierarchy. The root is the empty path and
// stands for the account itself; every other path is a full mailbox
// name. Levels the server did not list are filled with placeholders.
//
// Tree implements treetable.Source[string] and reports every mutation
// to its subscribers after applying it. It is not safe for concurrent
// use.
type Tree struct {
	label           string
	entries         map[string]*entry
	expandedDefault bool
	quiet           bool

	subs    map[int]func(treetable.Event[string])
	nextSub int
}

var _ treetable.Source[string] = (*Tree)(nil)

// NewTree builds a tree labelled label holding folders.
func NewTree(label string, folders []Folder) *Tree {
	t := &Tree{
		label: label,
		subs:  make(map[int]func(treetable.Event[string])),
	}
	t.load(folders)
	return t
}

// Label returns the account label shown on the root row.
func (t *Tree) Label() string { return t.label }

// SetLabel renames the root row.
func (t *Tree) SetLabel(label string) {
	if label == t.label {
		return
	}
	t.label = label
	t.changed("")
}

// Len returns the number of mailboxes, placeholders included.
func (t *Tree) Len() int { return len(t.entries) - 1 }

// Folder returns the mailbox at path.
func (t *Tree) Folder(path string) (Folder, bool) {
	if path == "" {
		return Folder{}, false
	}
	e, ok := t.entries[path]
	if !ok {
		return Folder{}, false
	}
	return e.folder, true
}

// Folders returns the listed mailboxes in display pre-order, without
// placeholders.
func (t *Tree) Folders() []Folder {
	var out []Folder
	t.walk("", func(p string) {
		if p == "" {
			return
		}
		if f := t.entries[p].folder; !f.Placeholder() {
			out = append(out, f)
		}
	})
	return out
}

// Add inserts f, creating placeholders for missing parent levels. A
// mailbox that already exists is updated instead.
func (t *Tree) Add(f Folder) {
	if !validName(f.Name) {
		return
	}
	if e, ok := t.entries[f.Name]; ok {
		t.setData(f.Name, e, f)
		return
	}
	parent := f.ParentName()
	if parent != "" {
		if _, ok := t.entries[parent]; !ok {
			t.Add(placeholder(parent, f.Delimiter))
		}
	}
	t.link(parent, f)
}

// Update replaces the data of an existing mailbox. It reports whether
// the mailbox exists.
func (t *Tree) Update(f Folder) bool {
	e, ok := t.entries[f.Name]
	if !ok || f.Name == "" {
		return false
	}
	t.setData(f.Name, e, f)
	return true
}

// Remove deletes the mailbox at path together with everything below it.
func (t *Tree) Remove(path string) bool {
	e, ok := t.entries[path]
	if !ok || path == "" {
		return false
	}
	pe := t.entries[e.parent]
	pos := slices.Index(pe.children, path)

	t.emit(treetable.Event[string]{Kind: treetable.EventPreChange})
	pe.children = slices.Delete(pe.children, pos, pos+1)
	t.drop(path)
	t.emit(treetable.Event[string]{
		Kind:        treetable.EventRemoved,
		Parent:      e.parent,
		Node:        path,
		OldPosition: pos,
	})
	return true
}

// Replace reconciles the tree with a fresh listing, reporting each
// removal, insertion, and data change separately. Mailboxes that vanished
// but still have listed descendants become placeholders.
func (t *Tree) Replace(folders []Folder) {
	want := desired(folders)

	var gone []string
	t.walk("", func(p string) {
		if p == "" {
			return
		}
		if _, ok := want[p]; !ok {
			gone = append(gone, p)
		}
	})
	// Descendants of a removed mailbox go with it.
	for _, p := range gone {
		if _, ok := t.entries[p]; ok {
			t.Remove(p)
		}
	}

	for _, name := range slices.Sorted(maps.Keys(want)) {
		t.Add(want[name])
	}
}

// Reset discards the tree and loads folders, announcing a single
// rebuild.
func (t *Tree) Reset(folders []Folder) {
	t.emit(treetable.Event[string]{Kind: treetable.EventPreChange})
	t.load(folders)
	t.emit(treetable.Event[string]{Kind: treetable.EventRebuilt})
}

// RequestCollapse asks views to collapse path.
func (t *Tree) RequestCollapse(path string) {
	if _, ok := t.entries[path]; !ok {
		return
	}
	t.emit(treetable.Event[string]{Kind: treetable.EventPreChange})
	t.emit(treetable.Event[string]{Kind: treetable.EventCollapseRequested, Node: path})
}

// SetExpandedDefault changes whether mailboxes start expanded. Every
// node is reported changed so views reapply the default where the user
// has not chosen otherwise.
func (t *Tree) SetExpandedDefault(expanded bool) {
	if expanded == t.expandedDefault {
		return
	}
	t.expandedDefault = expanded
	var paths []string
	t.walk("", func(p string) { paths = append(paths, p) })
	for _, p := range paths {
		t.changed(p)
	}
}

func (t *Tree) load(folders []Folder) {
	t.entries = map[string]*entry{"": {}}
	t.quiet = true
	defer func() { t.quiet = false }()

	for _, f := range folders {
		t.Add(f)
	}
}

func (t *Tree) link(parent string, f Folder) {
	t.emit(treetable.Event[string]{Kind: treetable.EventPreChange})
	t.entries[f.Name] = &entry{folder: f, parent: parent}
	pe := t.entries[parent]
	i, _ := slices.BinarySearchFunc(pe.children, f.Name, compareSiblings)
	pe.children = slices.Insert(pe.children, i, f.Name)
	t.emit(treetable.Event[string]{Kind: treetable.EventInserted, Parent: parent, Node: f.Name})
}

func (t *Tree) setData(path string, e *entry, f Folder) {
	if sameData(e.folder, f) {
		return
	}
	e.folder = f
	t.changed(path)
}

func (t *Tree) changed(path string) {
	t.emit(treetable.Event[string]{Kind: treetable.EventPreChange})
	t.emit(treetable.Event[string]{Kind: treetable.EventDataChanged, Node: path})
}

func (t *Tree) drop(path string) {
	for _, c := range t.entries[path].children {
		t.drop(c)
	}
	delete(t.entries, path)
}

func (t *Tree) walk(p string, fn func(string)) {
	fn(p)
	for _, c := range t.entries[p].children {
		t.walk(c, fn)
	}
}

func (t *Tree) emit(ev treetable.Event[string]) {
	if t.quiet {
		return
	}
	for _, id := range slices.Sorted(maps.Keys(t.subs)) {
		if fn, ok := t.subs[id]; ok {
			fn(ev)
		}
	}
}

// desired maps every mailbox a listing implies, placeholders for
// unlisted parent levels included, to its folder.
func desired(folders []Folder) map[string]Folder {
	want := make(map[string]Folder, len(folders))
	for _, f := range folders {
		if validName(f.Name) {
			want[f.Name] = f
		}
	}
	for _, f := range folders {
		for p := f.ParentName(); p != ""; {
			if _, ok := want[p]; ok {
				break
			}
			ph := placeholder(p, f.Delimiter)
			want[p] = ph
			p = ph.ParentName()
		}
	}
	return want
}

func validName(name string) bool {
	return name != "" && !strings.ContainsAny(name, "*%")
}

// compareSiblings puts INBOX first and orders the rest by name.
func compareSiblings(a, b string) int {
	ai, bi := strings.EqualFold(a, "INBOX"), strings.EqualFold(b, "INBOX")
	switch {
	case ai && !bi:
		return -1
	case bi && !ai:
		return 1
	}
	return strings.Compare(a, b)
}

// Source implementation.

func (t *Tree) Root() (string, bool) { return "", true }

func (t *Tree) Parent(p string) (string, bool) {
	if p == "" {
		return "", false
	}
	e, ok := t.entries[p]
	if !ok {
		return "", false
	}
	return e.parent, true
}

func (t *Tree) FirstChild(p string) (string, bool) {
	e, ok := t.entries[p]
	if !ok || len(e.children) == 0 {
		return "", false
	}
	return e.children[0], true
}

func (t *Tree) NextSibling(p string) (string, bool) {
	e, ok := t.entries[p]
	if !ok || p == "" {
		return "", false
	}
	sibs := t.entries[e.parent].children
	i, found := slices.BinarySearchFunc(sibs, p, compareSiblings)
	if !found || i+1 >= len(sibs) {
		return "", false
	}
	return sibs[i+1], true
}

func (t *Tree) IsRoot(p string) bool { return p == "" }

func (t *Tree) IsExpandable(p string) bool {
	e, ok := t.entries[p]
	return ok && len(e.children) > 0
}

func (t *Tree) ExpandedDefault() bool { return t.expandedDefault }

func (t *Tree) HasSaveID() bool { return true }

func (t *Tree) SaveID(p string) string {
	if p == "" {
		return RootSaveID
	}
	return p
}

func (t *Tree) NodeByID(id string) (string, bool) {
	if id == RootSaveID {
		return "", true
	}
	if _, ok := t.entries[id]; !ok || id == "" {
		return "", false
	}
	return id, true
}

func (t *Tree) Subscribe(fn func(treetable.Event[string])) (cancel func()) {
	id := t.nextSub
	t.nextSub++
	t.subs[id] = fn
	return func() { delete(t.subs, id) }
}
