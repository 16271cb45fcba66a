package cdp

import "errors"

var (
	// ErrNotConnected is returned when a caller borrows the attachment
	// while it is down.
	ErrNotConnected = errors.New("not connected to debug target")

	errNoTarget = errors.New("no suitable debug target found")
)
