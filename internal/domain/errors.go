package domain

import "errors"

var (
	ErrSlotFull        = errors.New("slot capacity exhausted")
	ErrInvalidRange    = errors.New("slot end time must be after start time")
	ErrSlotOverlap     = errors.New("trainer already has a slot in this interval")
	ErrSlotNotFound    = errors.New("slot not found")
	ErrSlotOccupied    = errors.New("slot has active holds or confirmed bookings")
	ErrHoldNotFound    = errors.New("hold not found or already resolved")
	ErrIntentNotFound  = errors.New("payment intent not found")
	ErrIntentExists    = errors.New("payment intent already opened for this hold")
	ErrBookingNotFound = errors.New("booking not found")
	ErrGatewayTimeout  = errors.New("payment gateway unreachable")
	ErrDuplicateEvent  = errors.New("gateway event already processed")
)
