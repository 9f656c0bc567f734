package core

import "github.com/google/uuid"

// ResolveID normalizes an externally supplied identifier into the store key
// form. A malformed id fails with ErrInvalidIdentifier before any store
// lookup; ErrNotFound is only possible after a lookup against the resolved
// key. Raw request input never reaches a filter without passing through here.
func ResolveID(raw string) (string, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return "", ErrInvalidIdentifier
	}
	return id.String(), nil
}

func newID() string {
	return uuid.New().String()
}
