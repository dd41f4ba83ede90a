package storage

import "errors"

var (
	ErrOptimisticLock = errors.New("optimistic lock conflict")
	ErrRecordExists   = errors.New("stock record already exists")
)
