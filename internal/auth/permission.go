package auth

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/executor"
)

// VisibilityFilter admits a document when the caller owns it, it is public,
// or the caller is on its allow-list.
var VisibilityFilter = executor.PermissionFunc(func(_ context.Context, doc document.Document, callerID string) (bool, error) {
	return doc.VisibleTo(callerID), nil
})
