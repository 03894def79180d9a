package storage

import (
	"fmt"

	"github.com/ruteri/document-registry/interfaces"
)

// objectName returns the backend-relative name of a stored object.
func objectName(id interfaces.ContentID, contentType interfaces.ContentType) string {
	return fmt.Sprintf("%s/%x", contentType, id[:])
}

// shortID is the content ID prefix used in log lines.
func shortID(id interfaces.ContentID) string {
	return fmt.Sprintf("%x", id[:8])
}
