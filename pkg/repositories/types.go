package repositories

import "fmt"

type ErrNotFound struct {
	SessionID string
}

func (e *ErrNotFound) Error() string {
	if e.SessionID == "" {
		return "not found"
	}
	return fmt.Sprintf("match %s not found", e.SessionID)
}

func IsNotFound(err error) bool {
	_, ok := err.(*ErrNotFound)
	return ok
}
