package errors

import "errors"

var (
	// ErrStoreUnavailable the backing data store could not be reached or failed the query.
	ErrStoreUnavailable = errors.New("progress store unavailable")

	// ErrInvalidTransition a submitted form was asked to go back to draft.
	ErrInvalidTransition = errors.New("submitted form cannot be reverted to draft")

	// ErrUnmappedFormType a form type has no phase in the phase map.
	ErrUnmappedFormType = errors.New("form type has no phase mapping")

	// ErrPartialReconciliation some progress rows were rewritten and some were not.
	// Retrying the whole fix is safe.
	ErrPartialReconciliation = errors.New("progress reconciliation partially applied")
)
