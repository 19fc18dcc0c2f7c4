package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrAlreadyClosed       = errors.New("position already closed")
	ErrZeroPriceOrQuantity = errors.New("price and quantity must be positive")
	ErrInvalidSignal       = errors.New("unrecognised signal")
	ErrInsufficientFunds   = errors.New("insufficient free balance")
	ErrPersistence         = errors.New("persistence failure")
	ErrWSDisconnect        = errors.New("websocket disconnected")
	ErrNetwork             = errors.New("network error")
)
