package domain

import "errors"

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrBadSchema     = errors.New("unsupported schema version")
	ErrGatewayOwned  = errors.New("status owned by gateway")
)
