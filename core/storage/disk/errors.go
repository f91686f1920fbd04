package disk

import "errors"

var (
	ErrIO              = errors.New("i/o error")
	ErrDBFileExists    = errors.New("database file already exists")
	ErrDBFileNotFound  = errors.New("database file not found")
	ErrInvalidPage     = errors.New("page id out of range")
	ErrBadPageBuffer   = errors.New("page buffer size does not match file page size")
	ErrDeserialization = errors.New("error deserializing file header")
	ErrSerialization   = errors.New("error serializing file header")
)
