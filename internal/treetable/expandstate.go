package treetable

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/sirupsen/logrus"
)

// expandStateVersion is the newest document version this package writes
// and accepts.
const expandStateVersion = 2

var (
	ErrStateFormat          = errors.New("treetable: malformed expanded state document")
	ErrStateVersion         = errors.New("treetable: unsupported expanded state version")
	ErrStateDefaultMismatch = errors.New("treetable: expanded state default does not match the model")
	ErrNoSaveIDs            = errors.New("treetable: source has no stable save ids")
)

type stateDocument struct {
	XMLName xml.Name         `xml:"expanded_state"`
	Version string           `xml:"vers,attr,omitempty"`
	Default string           `xml:"default,attr,omitempty"`
	Nodes   []stateNode      `xml:"node"`
	Unknown []unknownElement `xml:",any"`
}

type stateNode struct {
	ID string `xml:"id,attr"`
}

type unknownElement struct {
	XMLName xml.Name
}

// SaveExpandedState writes the save ids of every materialized node
// whose expansion differs from the source default.
func (a *Adapter[P]) SaveExpandedState(w io.Writer) error {
	if !a.src.HasSaveID() {
		return ErrNoSaveIDs
	}

	def := a.src.ExpandedDefault()
	doc := stateDocument{
		Version: strconv.Itoa(expandStateVersion),
		Default: strconv.FormatBool(def),
	}
	if a.root != noNode {
		a.walk(a.root, func(k nodeKey) {
			n := a.reg.get(k)
			// The root starts expanded regardless of the default; only a
			// collapsed, visible root is an override.
			if k == a.root && (n.expanded || !a.rootVisible) {
				return
			}
			if n.expanded == def {
				return
			}
			if id := a.src.SaveID(n.path); id != "" {
				doc.Nodes = append(doc.Nodes, stateNode{ID: id})
			}
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return fmt.Errorf("writing expanded state: %w", err)
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encoding expanded state: %w", err)
	}
	if _, err := io.WriteString(w, "\n"); err != nil {
		return fmt.Errorf("writing expanded state: %w", err)
	}
	return nil
}

// LoadExpandedState applies a document written by SaveExpandedState.
// A document with the wrong root element, a newer version, or a default
// that differs from the source's is rejected as a whole. Ids the source
// cannot resolve are skipped.
func (a *Adapter[P]) LoadExpandedState(r io.Reader) error {
	if !a.src.HasSaveID() {
		return ErrNoSaveIDs
	}

	var doc stateDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("%w: %v", ErrStateFormat, err)
	}

	if doc.Version != "" {
		v, err := strconv.Atoi(doc.Version)
		if err != nil {
			return fmt.Errorf("%w: version %q", ErrStateFormat, doc.Version)
		}
		if v > expandStateVersion {
			return fmt.Errorf("%w: %d", ErrStateVersion, v)
		}
	}

	def := a.src.ExpandedDefault()
	saved, err := strconv.ParseBool(doc.Default)
	if err != nil {
		saved = !def
	}
	if saved != def {
		a.log.WithFields(logrus.Fields{"saved_default": doc.Default, "default": def}).
			Warn("discarding expanded state saved against a different default")
		return ErrStateDefaultMismatch
	}

	for _, u := range doc.Unknown {
		a.log.WithField("element", u.XMLName.Local).Warn("skipping unknown element in expanded state")
	}

	for _, n := range doc.Nodes {
		if n.ID == "" {
			continue
		}
		p, ok := a.src.NodeByID(n.ID)
		if !ok {
			a.log.WithField("id", n.ID).Debug("skipping expanded state for missing node")
			continue
		}
		a.SetExpanded(p, !def)
	}
	return nil
}

// SaveExpandedStateFile writes the expanded state to path, replacing
// any previous file atomically.
func (a *Adapter[P]) SaveExpandedStateFile(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".expanded-*")
	if err != nil {
		return fmt.Errorf("creating temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := a.SaveExpandedState(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp state file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

// LoadExpandedStateFile loads the expanded state from path. A missing
// file leaves every node at the default.
func (a *Adapter[P]) LoadExpandedStateFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("opening state file: %w", err)
	}
	defer f.Close()

	return a.LoadExpandedState(f)
}

// walk visits k's materialized subtree in pre-order.
func (a *Adapter[P]) walk(k nodeKey, fn func(nodeKey)) {
	fn(k)
	for c := a.reg.get(k).firstChild; c != noNode; c = a.reg.get(c).next {
		a.walk(c, fn)
	}
}
