package article

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an article does not exist or belongs to a
// different owner. The two cases are deliberately indistinguishable so that
// one user can never probe for another user's articles.
var ErrNotFound = errors.New("article not found")

// ErrInvalidStage is returned when a stage outside the closed set is supplied.
var ErrInvalidStage = errors.New("invalid stage")

// ErrStorageUnavailable wraps failures of the backing store. Mutations fail
// closed and the caller reports a transient error.
var ErrStorageUnavailable = errors.New("storage unavailable")

// DuplicateError reports that an owner already saved a URL. It carries the
// existing record so replies can reference it.
type DuplicateError struct {
	Existing Article
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("article already saved: %s", e.Existing.URL)
}

// IsDuplicate reports whether err is a DuplicateError and returns the
// existing article when it is.
func IsDuplicate(err error) (Article, bool) {
	var dup *DuplicateError
	if errors.As(err, &dup) {
		return dup.Existing, true
	}
	return Article{}, false
}
