package notes

import "errors"

var ErrNoteNotFound = errors.New("note not found")
