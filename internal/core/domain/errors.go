package domain

import "errors"

var (
	ErrPeerNotFound     = errors.New("peer not found")
	ErrRoomNotFound     = errors.New("room not found")
	ErrPairKeyNotFound  = errors.New("pair key not found")
	ErrPairKeyExists    = errors.New("pair key already exists")
	ErrPairKeySpaceFull = errors.New("pair key space exhausted")
	ErrMalformedMessage = errors.New("malformed message")
	ErrInvalidRecipient = errors.New("invalid recipient")
	ErrSendQueueFull    = errors.New("send queue full")
	ErrPeerClosed       = errors.New("peer closed")
)
