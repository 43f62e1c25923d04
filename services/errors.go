package services

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidInput  = errors.New("invalid input")
	ErrRunInProgress = errors.New("normalization run already in progress")
)

// PageError benennt die Page-Datei, an der ein Batch-Lauf gescheitert ist.
type PageError struct {
	Path string
	Err  error
}

func (e *PageError) Error() string {
	return fmt.Sprintf("page %s: %v", e.Path, e.Err)
}

func (e *PageError) Unwrap() error { return e.Err }
