package a

import (
	"errors"
	"fmt"
)

var errNotFound = errors.New("not found")

func bad() error {
	return fmt.Errorf("loading change: %v", errNotFound) // want "error formatted with %v"
}

func badString(id int, err error) error {
	return fmt.Errorf("change %d: %s", id, err) // want "error formatted with %s"
}

func good(err error) error {
	return fmt.Errorf("loading change: %w", err)
}

func goodPercent(err error) error {
	return fmt.Errorf("100%%: %w", err)
}

func goodNonError(name string) error {
	return fmt.Errorf("branch %v is locked", name)
}

func goodMessage(err error) error {
	return fmt.Errorf("merge failed: %s", err.Error())
}

func goodIndexed(err error) error {
	return fmt.Errorf("%[1]v", err)
}
