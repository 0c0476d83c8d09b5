package service

import "errors"

// ErrInvalidInput marks malformed client input
var ErrInvalidInput = errors.New("invalid input")
