package model

import "time"

// Folder is the cached result of listing one mailbox. Attrs holds the
// IMAP mailbox attributes separated by spaces.
type Folder struct {
	AccountID  string    `json:"account_id" db:"account_id"`
	Name       string    `json:"name" db:"name"`
	Delimiter  string    `json:"delimiter" db:"delimiter"`
	Attrs      string    `json:"attrs" db:"attrs"`
	Messages   uint32    `json:"messages" db:"messages"`
	Unseen     uint32    `json:"unseen" db:"unseen"`
	Subscribed bool      `json:"subscribed" db:"subscribed"`
	FetchedAt  time.Time `json:"fetched_at" db:"fetched_at"`
}
