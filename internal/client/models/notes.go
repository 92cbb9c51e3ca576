package models

import (
	"slices"

	"github.com/firecat-notes/firecat/internal/visibility"
)

type Author struct {
	Pubkey string `json:"pubkey"`
	Name   string `json:"name,omitempty"`
}

// Notebook is stored at accounts/{notebook}/meta, signed by the notebook key.
type Notebook struct {
	Pubkey      string                `json:"pubkey"`
	Title       string                `json:"title"`
	Description string                `json:"description,omitempty"`
	CoverImage  string                `json:"coverImage,omitempty"`
	Visibility  visibility.Visibility `json:"visibility"`
	CreatedAt   int64                 `json:"createdAt"`
	UpdatedAt   int64                 `json:"updatedAt"`
	Author      Author                `json:"author"`
	PostCount   int                   `json:"postCount"`
}

// Ref returns the index entry describing nb.
func (nb Notebook) Ref() NotebookRef {
	return NotebookRef{Pubkey: nb.Pubkey, Title: nb.Title, Visibility: nb.Visibility, CreatedAt: nb.CreatedAt}
}

type NotebookRef struct {
	Pubkey     string                `json:"pubkey"`
	Title      string                `json:"title"`
	Visibility visibility.Visibility `json:"visibility"`
	CreatedAt  int64                 `json:"createdAt"`
}

type PostReference struct {
	NotebookPubkey string `json:"notebookPubkey"`
	PostPubkey     string `json:"postPubkey"`
}

type ReactionCount struct {
	Likes    int `json:"likes"`
	Comments int `json:"comments"`
}

// Post is stored at accounts/{notebook}/posts/{post}, signed by the notebook
// key and encrypted with the notebook's visibility.
type Post struct {
	Pubkey         string         `json:"pubkey"`
	NotebookPubkey string         `json:"notebookPubkey"`
	Content        string         `json:"content"`
	Images         []string       `json:"images,omitempty"`
	CreatedAt      int64          `json:"createdAt"`
	UpdatedAt      int64          `json:"updatedAt"`
	Author         Author         `json:"author"`
	ReferenceTo    *PostReference `json:"referenceTo,omitempty"`
	ReactionCount  ReactionCount  `json:"reactionCount"`
}

type ReactionType string

const (
	ReactionLike    ReactionType = "like"
	ReactionComment ReactionType = "comment"
)

type MediaType string

const (
	MediaEmoji MediaType = "emoji"
	MediaText  MediaType = "text"
	MediaImage MediaType = "image"
)

type ReactionMedia struct {
	Type MediaType `json:"type"`
	Data string    `json:"data"`
}

type Reaction struct {
	ID         string         `json:"id"`
	PostPubkey string         `json:"postPubkey"`
	Type       ReactionType   `json:"type"`
	Content    string         `json:"content,omitempty"`
	Media      *ReactionMedia `json:"media,omitempty"`
	CreatedAt  int64          `json:"createdAt"`
	Author     Author         `json:"author"`
}

// PublicNotebookEntry is the app-owned discovery record for a public
// notebook. It only points at the notebook; readers resolve the metadata.
type PublicNotebookEntry struct {
	Pubkey    string `json:"pubkey"`
	Author    Author `json:"author"`
	CreatedAt int64  `json:"createdAt"`
}

type UserProfile struct {
	Pubkey string `json:"pubkey"`
	Name   string `json:"name"`
	Bio    string `json:"bio,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// UserIndex is the single private record listing a user's notebooks and
// holding the private keys of every notebook and post they own.
type UserIndex struct {
	Notebooks []NotebookRef     `json:"notebooks"`
	Keys      map[string]string `json:"keys"`
	PostKeys  map[string]string `json:"postKeys"`
}

func NewUserIndex() *UserIndex {
	return &UserIndex{Notebooks: []NotebookRef{}, Keys: map[string]string{}, PostKeys: map[string]string{}}
}

// Normalize replaces nil collections so the index can be mutated safely
// after decoding an older record.
func (ix *UserIndex) Normalize() {
	if ix.Notebooks == nil {
		ix.Notebooks = []NotebookRef{}
	}
	if ix.Keys == nil {
		ix.Keys = map[string]string{}
	}
	if ix.PostKeys == nil {
		ix.PostKeys = map[string]string{}
	}
}

// Upsert adds ref or replaces the entry with the same pubkey in place.
func (ix *UserIndex) Upsert(ref NotebookRef) {
	i := slices.IndexFunc(ix.Notebooks, func(r NotebookRef) bool { return r.Pubkey == ref.Pubkey })
	if i >= 0 {
		ix.Notebooks[i] = ref
		return
	}
	ix.Notebooks = append(ix.Notebooks, ref)
}

// Remove drops the notebook ref and its key. It reports whether a ref was
// present.
func (ix *UserIndex) Remove(pubkey string) bool {
	n := len(ix.Notebooks)
	ix.Notebooks = slices.DeleteFunc(ix.Notebooks, func(r NotebookRef) bool { return r.Pubkey == pubkey })
	delete(ix.Keys, pubkey)
	return len(ix.Notebooks) != n
}

func (ix *UserIndex) Find(pubkey string) (NotebookRef, bool) {
	i := slices.IndexFunc(ix.Notebooks, func(r NotebookRef) bool { return r.Pubkey == pubkey })
	if i < 0 {
		return NotebookRef{}, false
	}
	return ix.Notebooks[i], true
}
