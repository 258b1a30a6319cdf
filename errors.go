// Package fls is the root of the masternode payment consensus core: the
// dynamic reward engine, the collateral and payment-history indices, the
// masternode registry, and the payment selector/validator that together
// decide which masternode gets paid on each block.
package fls

import "fmt"

// ErrorKind identifies the class of failure a core operation can
// produce. Callers branch on the kind, not on the message text, to
// decide whether to retry, score a peer, or accept conservatively.
type ErrorKind int

const (
	// ErrTransient covers conditions that are expected to clear on
	// their own: a busy database, an interrupted UTXO cursor, a peer
	// that sent data we've already seen.
	ErrTransient ErrorKind = iota
	// ErrMalformedInput covers structurally invalid peer data: wrong
	// key sizes, bad signatures on a non-legacy protocol version.
	ErrMalformedInput
	// ErrStale covers data that was once valid but has been
	// superseded: an older announce, a duplicate ping.
	ErrStale
	// ErrOutOfWindow covers timestamps outside an acceptable range
	// (sigTime too old or too far in the future).
	ErrOutOfWindow
	// ErrInsufficient covers a validator that lacks enough local state
	// to judge a block and must accept conservatively.
	ErrInsufficient
	// ErrFatal covers failures that disable a whole feature for the
	// session (cannot open rewards.db, cannot read mncache.dat header)
	// without halting the node.
	ErrFatal
)

func (k ErrorKind) String() string {
	switch k {
	case ErrTransient:
		return "transient"
	case ErrMalformedInput:
		return "malformed input"
	case ErrStale:
		return "stale"
	case ErrOutOfWindow:
		return "out of window"
	case ErrInsufficient:
		return "insufficient data"
	case ErrFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Error is the shared error type returned by core operations. DoSScore
// is non-zero only when the caller should punish the peer that
// supplied the offending data; it is meaningless outside the network
// message handlers.
type Error struct {
	Kind    ErrorKind
	DoSScore int
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds an *Error with no DoS score attached.
func NewError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// NewDoSError builds an *Error carrying a peer misbehavior score.
func NewDoSError(kind ErrorKind, score int, msg string) *Error {
	return &Error{Kind: kind, DoSScore: score, Message: msg}
}
