package storage

import "errors"

var (
	// ErrNoSnapshot means no baseline was ever saved.
	ErrNoSnapshot = errors.New("no stored snapshot")
	// ErrCorruptSnapshot means the stored baseline could not be decoded.
	ErrCorruptSnapshot = errors.New("stored snapshot is corrupt")
)
