// Package document defines the projection of an externally stored document
// that the search engine indexes, and the change events that keep the index
// in step with the document store.
package document

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/go-playground/validator"
)

type Visibility string

const (
	VisibilityOwner  Visibility = "owner"
	VisibilityPublic Visibility = "public"
	VisibilityShared Visibility = "shared"
)

// Kind is the document category. Intent-based filtering maps onto it.
type Kind string

const (
	KindDocument     Kind = "document"
	KindTask         Kind = "task"
	KindSchedule     Kind = "schedule"
	KindConversation Kind = "conversation"
	KindFile         Kind = "file"
)

// Kinds lists every recognised document kind.
var Kinds = []Kind{KindDocument, KindTask, KindSchedule, KindConversation, KindFile}

// ParseKind validates s as a document kind.
func ParseKind(s string) (Kind, bool) {
	k := Kind(s)
	return k, slices.Contains(Kinds, k)
}

// Entity is a typed named thing mentioned by a document or query, such as a
// person, project or date.
type Entity struct {
	Type string `json:"type"`
	Name string `json:"name" validate:"required"`
}

// Document is the engine's read-only view of a stored document.
type Document struct {
	ID           string     `json:"id" validate:"required,max=256"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Keywords     []string   `json:"keywords"`
	OwnerID      string     `json:"ownerId" validate:"required"`
	Visibility   Visibility `json:"visibility" validate:"omitempty,oneof=owner public shared"`
	AllowedUsers []string   `json:"allowedUsers,omitempty"`
	Kind         Kind       `json:"kind,omitempty" validate:"omitempty,oneof=document task schedule conversation file"`
	Entities     []Entity   `json:"entities,omitempty" validate:"dive"`
	CreatedAt    time.Time  `json:"createdAt"`
}

var validate = validator.New()

// Validate checks the fields the index depends on.
func (d Document) Validate() error {
	if err := validate.Struct(d); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("document %q: field %s failed %q", d.ID, verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("document %q: %w", d.ID, err)
	}
	return nil
}

// EffectiveVisibility treats an unset visibility as owner-only.
func (d Document) EffectiveVisibility() Visibility {
	if d.Visibility == "" {
		return VisibilityOwner
	}
	return d.Visibility
}

// VisibleTo reports whether callerID may see d: the caller owns it, it is
// public, or the caller is on its allow-list.
func (d Document) VisibleTo(callerID string) bool {
	if callerID != "" && callerID == d.OwnerID {
		return true
	}
	switch d.EffectiveVisibility() {
	case VisibilityPublic:
		return true
	case VisibilityShared:
		return callerID != "" && slices.Contains(d.AllowedUsers, callerID)
	default:
		return false
	}
}
