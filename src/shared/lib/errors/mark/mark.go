package mark

import "github.com/cockroachdb/errors"

// Wrap tags handledErr with newMarkingError so callers can branch on it with markers.Is
func Wrap(handledErr error, newMarkingError error, msg string) error {
	newErr := errors.Mark(handledErr, newMarkingError)
	return errors.Wrap(newErr, msg)
}

func Message(newMarkingError error, msg string) error {
	err := errors.New(msg)
	return errors.Mark(err, newMarkingError)
}
