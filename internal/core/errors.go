package core

import "errors"

var (
	ErrInvalidAmount     = errors.New("invalid amount")
	ErrInvalidIdentity   = errors.New("invalid identity")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrProtectedIdentity = errors.New("protected identity")
	ErrPersistence       = errors.New("persistence failure")
	ErrInvalidStoreKey   = errors.New("invalid store key")
)
