package cellindex

import cierrors "github.com/nonibytes/cellindex/cellindex/errors"

type (
	Error     = cierrors.Error
	ErrorKind = cierrors.ErrorKind
)

const (
	ErrIO           = cierrors.ErrIO
	ErrSQL          = cierrors.ErrSQL
	ErrConfig       = cierrors.ErrConfig
	ErrPredicate    = cierrors.ErrPredicate
	ErrTypeMismatch = cierrors.ErrTypeMismatch
	ErrUnknownField = cierrors.ErrUnknownField
	ErrData         = cierrors.ErrData
	ErrNotFound     = cierrors.ErrNotFound
	ErrInternal     = cierrors.ErrInternal
)

// IsKind reports whether err carries an *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool { return cierrors.IsKind(err, kind) }

// kinded returns err unchanged when it already carries a kind, and wraps it
// with kind otherwise.
func kinded(kind ErrorKind, msg string, err error) error {
	if cierrors.KindOf(err) != "" {
		return err
	}
	return cierrors.Wrap(kind, msg, err)
}
