// Package folder models an account's IMAP mailbox hierarchy as a tree
// source for the folders table.
package folder

import (
	"slices"
	"strings"
	"time"

	"github.com/emersion/go-imap/v2"

	"github.com/nhle/mailsetup/internal/model"
)

// Special-use roles shown in the Role column.
const (
	RoleInbox   = "Inbox"
	RoleSent    = "Sent"
	RoleDrafts  = "Drafts"
	RoleTrash   = "Trash"
	RoleJunk    = "Junk"
	RoleArchive = "Archive"
	RoleAll     = "All"
	RoleFlagged = "Flagged"
)

var roleAttrs = []struct {
	attr imap.MailboxAttr
	role string
}{
	{imap.MailboxAttrSent, RoleSent},
	{imap.MailboxAttrDrafts, RoleDrafts},
	{imap.MailboxAttrTrash, RoleTrash},
	{imap.MailboxAttrJunk, RoleJunk},
	{imap.MailboxAttrArchive, RoleArchive},
	{imap.MailboxAttrAll, RoleAll},
	{imap.MailboxAttrFlagged, RoleFlagged},
}

// Folder is one mailbox as reported by LIST, with its STATUS counts when
// the server returned them.
type Folder struct {
	Name       string
	Delimiter  rune
	Attrs      []imap.MailboxAttr
	Messages   uint32
	Unseen     uint32
	Subscribed bool
}

// FromListData converts a LIST response.
func FromListData(d *imap.ListData) Folder {
	f := Folder{
		Name:      d.Mailbox,
		Delimiter: d.Delim,
		Attrs:     slices.Clone(d.Attrs),
	}
	f.Subscribed = f.Has(imap.MailboxAttrSubscribed)
	if d.Status != nil {
		f.SetStatus(d.Status)
	}
	return f
}

// SetStatus copies the message counts out of a STATUS response.
func (f *Folder) SetStatus(s *imap.StatusData) {
	if s.NumMessages != nil {
		f.Messages = *s.NumMessages
	}
	if s.NumUnseen != nil {
		f.Unseen = *s.NumUnseen
	}
}

// FromModel converts a cached folder row.
func FromModel(m model.Folder) Folder {
	f := Folder{
		Name:       m.Name,
		Messages:   m.Messages,
		Unseen:     m.Unseen,
		Subscribed: m.Subscribed,
	}
	if d := []rune(m.Delimiter); len(d) > 0 {
		f.Delimiter = d[0]
	}
	for _, a := range strings.Fields(m.Attrs) {
		f.Attrs = append(f.Attrs, imap.MailboxAttr(a))
	}
	return f
}

// Model returns the folder as a cache row for accountID.
func (f Folder) Model(accountID string, fetched time.Time) model.Folder {
	attrs := make([]string, len(f.Attrs))
	for i, a := range f.Attrs {
		attrs[i] = string(a)
	}
	m := model.Folder{
		AccountID:  accountID,
		Name:       f.Name,
		Attrs:      strings.Join(attrs, " "),
		Messages:   f.Messages,
		Unseen:     f.Unseen,
		Subscribed: f.Subscribed,
		FetchedAt:  fetched,
	}
	if f.Delimiter != 0 {
		m.Delimiter = string(f.Delimiter)
	}
	return m
}

// Has reports whether the folder carries attr. Attributes compare
// case-insensitively.
func (f Folder) Has(attr imap.MailboxAttr) bool {
	return slices.ContainsFunc(f.Attrs, func(a imap.MailboxAttr) bool {
		return strings.EqualFold(string(a), string(attr))
	})
}

// Selectable reports whether the mailbox can be opened.
func (f Folder) Selectable() bool {
	return !f.Has(imap.MailboxAttrNoSelect) && !f.Has(imap.MailboxAttrNonExistent)
}

// Placeholder reports whether the folder stands in for a hierarchy level
// the server did not list.
func (f Folder) Placeholder() bool {
	return f.Has(imap.MailboxAttrNonExistent)
}

// IsInbox reports whether the folder is the account inbox.
func (f Folder) IsInbox() bool {
	return strings.EqualFold(f.Name, "INBOX")
}

// Leaf returns the last hierarchy level of the name.
func (f Folder) Leaf() string {
	if f.Delimiter == 0 {
		return f.Name
	}
	if i := strings.LastIndex(f.Name, string(f.Delimiter)); i >= 0 {
		return f.Name[i+len(string(f.Delimiter)):]
	}
	return f.Name
}

// ParentName returns the name of the enclosing level, or "" for a
// top-level mailbox.
func (f Folder) ParentName() string {
	if f.Delimiter == 0 {
		return ""
	}
	if i := strings.LastIndex(f.Name, string(f.Delimiter)); i > 0 {
		return f.Name[:i]
	}
	return ""
}

// Role returns the special-use role, or "".
func (f Folder) Role() string {
	if f.IsInbox() {
		return RoleInbox
	}
	for _, r := range roleAttrs {
		if f.Has(r.attr) {
			return r.role
		}
	}
	return ""
}

// sameData reports whether two listings of the same mailbox would
// display identically.
func sameData(a, b Folder) bool {
	return a.Messages == b.Messages &&
		a.Unseen == b.Unseen &&
		a.Subscribed == b.Subscribed &&
		a.Delimiter == b.Delimiter &&
		slices.Equal(a.Attrs, b.Attrs)
}

func placeholder(name string, delim rune) Folder {
	return Folder{
		Name:      name,
		Delimiter: delim,
		Attrs:     []imap.MailboxAttr{imap.MailboxAttrNonExistent, imap.MailboxAttrNoSelect},
	}
}
