package store

import "errors"

var (
	// ErrItemUnavailable is returned when a request targets an item that does
	// not exist or is no longer available.
	ErrItemUnavailable = errors.New("item not found or not available")

	// ErrRequestNotFound is returned when no request has the given id.
	ErrRequestNotFound = errors.New("request not found")

	// ErrRequestResolved is returned when resolving a request that was
	// already approved or rejected.
	ErrRequestResolved = errors.New("request already resolved")

	// ErrNotItemDonor is returned when a donor resolves a request for an item
	// listed by someone else.
	ErrNotItemDonor = errors.New("request is for another donor's item")

	// ErrItemDonated is returned when changing the status of a donated item.
	ErrItemDonated = errors.New("item already donated")

	// ErrInvalidStatus is returned for an unknown item status.
	ErrInvalidStatus = errors.New("invalid status")
)
