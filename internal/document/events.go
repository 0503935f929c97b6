package document

import (
	"fmt"
	"time"
)

type ChangeOp string

const (
	OpCreate ChangeOp = "create"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// ChangeEvent notifies the engine that a stored document was created,
// updated or deleted. Document may be omitted for create and update, in
// which case the consumer loads it from the document source.
type ChangeEvent struct {
	Op         ChangeOp  `json:"op"`
	DocumentID string    `json:"documentId"`
	Document   *Document `json:"document,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

func (e ChangeEvent) Validate() error {
	switch e.Op {
	case OpCreate, OpUpdate, OpDelete:
	default:
		return fmt.Errorf("unknown change op %q", e.Op)
	}
	if e.DocumentID == "" && e.Document == nil {
		return fmt.Errorf("change event %s has no document id", e.Op)
	}
	if e.Document != nil && e.DocumentID != "" && e.Document.ID != e.DocumentID {
		return fmt.Errorf("change event id %q does not match document id %q", e.DocumentID, e.Document.ID)
	}
	return nil
}

// ID returns the affected document id.
func (e ChangeEvent) ID() string {
	if e.DocumentID != "" {
		return e.DocumentID
	}
	if e.Document != nil {
		return e.Document.ID
	}
	return ""
}
