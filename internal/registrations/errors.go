package registrations

// Kind classifies a registration error; the HTTP layer maps kinds to status
// codes.
type Kind int

const (
	KindValidation Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindUpstream
	KindInternal
)

// Error carries a single-sentence, user-facing message and a classification.
// The wrapped cause stays in logs; it never reaches the caller.
type Error struct {
	Kind    Kind
	Message string
	cause   error
}

func (e *Error) Error() string { return e.Message }

func (e *Error) Unwrap() error { return e.cause }

func errValidation(msg string) *Error {
	return &Error{Kind: KindValidation, Message: msg}
}

func errUnauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

func errForbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

func errNotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

func errConflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

func errUpstream(msg string, cause error) *Error {
	return &Error{Kind: KindUpstream, Message: msg, cause: cause}
}

func errInternal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, cause: cause}
}
