package common

import "errors"

// Error classes shared by every protocol module. Module sentinels are created
// with NewError so callers can match either the specific sentinel or its class.
var (
	ErrAdmissionDenied   = errors.New("admission denied")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidState      = errors.New("invalid state")
	ErrScheduleViolation = errors.New("schedule violation")
	ErrConfigInvalid     = errors.New("config invalid")
)

var classes = []error{
	ErrAdmissionDenied,
	ErrUnauthorized,
	ErrInvalidState,
	ErrScheduleViolation,
	ErrConfigInvalid,
}

type classifiedError struct {
	msg   string
	class error
}

func (e *classifiedError) Error() string { return e.msg }

func (e *classifiedError) Is(target error) bool { return target == e.class }

// NewError returns a sentinel error belonging to class.
func NewError(class error, msg string) error {
	return &classifiedError{msg: msg, class: class}
}

// Class returns the taxonomy class of err, or nil when err is unclassified.
func Class(err error) error {
	if err == nil {
		return nil
	}
	for _, class := range classes {
		if errors.Is(err, class) {
			return class
		}
	}
	return nil
}

// ClassName renders the class of err as a short machine readable label.
func ClassName(err error) string {
	switch Class(err) {
	case ErrAdmissionDenied:
		return "admission_denied"
	case ErrUnauthorized:
		return "unauthorized"
	case ErrInvalidState:
		return "invalid_state"
	case ErrScheduleViolation:
		return "schedule_violation"
	case ErrConfigInvalid:
		return "config_invalid"
	}
	if err == nil {
		return "ok"
	}
	return "internal"
}
