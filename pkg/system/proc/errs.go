package proc

import "errors"

var (
	// ErrNoStat indicates that a /proc stat file was empty or malformed.
	ErrNoStat = errors.New("proc: malformed or empty stat")

	// ErrShortStat indicates that a /proc stat file had fewer fields than expected.
	ErrShortStat = errors.New("proc: short stat")
)
