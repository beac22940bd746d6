package nl2mongo

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingInput         = errors.New("missing 'user_input' or 'db_name' in request")
	ErrUnclassifiableIntent = errors.New("sorry, I couldn't understand your request")
)

type InvalidDatabaseError struct {
	Name      string
	Available []string
}

func (e *InvalidDatabaseError) Error() string {
	return fmt.Sprintf("invalid db_name %q, available: [%s]", e.Name, strings.Join(e.Available, ", "))
}

// CollectionNotFoundError reports a schema target that does not exist or
// has no documents to sample.
type CollectionNotFoundError struct {
	Database   string
	Collection string
}

func (e *CollectionNotFoundError) Error() string {
	return fmt.Sprintf("collection %q not found or empty in %s", e.Collection, e.Database)
}
