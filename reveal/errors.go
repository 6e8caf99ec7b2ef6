/*
Copyright © 2025 Seednode <seednode@seedno.de>
*/

package reveal

import "errors"

// Rejection reasons. A rejected submission never changes state.
var (
	ErrEmptyInput       = errors.New("empty input")
	ErrInvalidInput     = errors.New("invalid input")
	ErrNotSecret        = errors.New("not a secret word")
	ErrSubmissionClosed = errors.New("submission closed")
	ErrUnavailable      = errors.New("no list loaded")
	ErrAlreadyComplete  = errors.New("all entries already revealed")
)
