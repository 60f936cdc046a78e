package storage

import "errors"

// Sentinel errors raised by Repository. Wrapped in [*Error] before
// returning to callers so errors.Is/errors.As both work.
var (
	// ErrNotFound means no row matched the requested id or content hash.
	ErrNotFound = errors.New("item not found")

	// ErrClosed means the repository was already closed.
	ErrClosed = errors.New("repository closed")

	// ErrCorrupted means a rollback itself failed; the connection has been
	// closed and must be reopened before further use.
	ErrCorrupted = errors.New("repository corrupted")
)

// Error is the uniform error type returned by Repository's public methods.
//
// Use [errors.As] to recover the item id a failing operation concerned:
//
//	var sErr *storage.Error
//	if errors.As(err, &sErr) {
//	    log.Printf("op %s failed for item %s: %v", sErr.Op, sErr.ItemID, sErr.Err)
//	}
type Error struct {
	// Op names the Repository method that failed (e.g. "insert", "delete").
	Op string

	// ItemID is the row id the operation concerned, when known.
	ItemID string

	// Err is the underlying cause.
	Err error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	msg := e.Op
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}

	if e.ItemID != "" {
		msg += " (item_id=" + e.ItemID + ")"
	}

	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}

	return e.Err
}

// errOpt configures an [*Error] built by [wrap].
type errOpt func(*Error)

func withItemID(id string) errOpt {
	return func(e *Error) { e.ItemID = id }
}

// wrap builds a [*Error] for op, attaching context from opts. Returns nil if
// err is nil.
func wrap(op string, err error, opts ...errOpt) error {
	if err == nil {
		return nil
	}

	e := &Error{Op: op, Err: err}
	for _, opt := range opts {
		opt(e)
	}

	return e
}
