package framing

import "errors"

var (
	// ErrMalformedLength 长度前缀不是合法的 varint
	ErrMalformedLength = errors.New("framing: malformed length prefix")
)
