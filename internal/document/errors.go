package document

import "errors"

var (
	ErrDocumentNotFound       = errors.New("document: not found")
	ErrDocumentAlreadyDeleted = errors.New("document: already in trash")
	ErrDocumentNotDeleted     = errors.New("document: not deleted")
)
