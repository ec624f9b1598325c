package hv

import "errors"

var (
	ErrInvalidOp      = errors.New("invalid debug operation")
	ErrBufferTooSmall = errors.New("entry buffer too small")
	ErrNotMapped      = errors.New("address not mapped")
	ErrInvalidVcpu    = errors.New("invalid vcpu")
	ErrInvalidSlot    = errors.New("invalid translation register slot")
)
