package masternode

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/decenomy/FLS/chaincfg"
)

// State is a masternode's position in its lifecycle state machine.
type State int

const (
	PreEnabled State = iota
	Enabled
	Expired
	Removed
	VinSpent
)

func (s State) String() string {
	switch s {
	case PreEnabled:
		return "pre-enabled"
	case Enabled:
		return "enabled"
	case Expired:
		return "expired"
	case Removed:
		return "removed"
	case VinSpent:
		return "vin-spent"
	default:
		return "unknown"
	}
}

// terminal reports whether s never transitions further within this
// process lifetime, per spec.md §3's monotone-toward-terminal
// invariant.
func (s State) terminal() bool {
	return s == Removed || s == VinSpent
}

// Ping is the most recent accepted liveness message for a masternode.
type Ping struct {
	Outpoint  wire.OutPoint
	BlockHash chainhash.Hash
	SigTime   int64
	Signature []byte
}

// Masternode is one registered network participant (spec.md §3).
type Masternode struct {
	Outpoint        wire.OutPoint
	Script          []byte
	OperatorPubKey  []byte
	CollateralPubKey []byte
	Address         string
	ProtocolVersion int32
	SigTime         int64
	Signature       []byte

	LastPing Ping
	state    State
}

// New constructs a masternode in the PreEnabled state, the state every
// accepted announce starts in.
func New(outpoint wire.OutPoint, script, operatorPubKey, collateralPubKey []byte, addr string, protocolVersion int32, sigTime int64, sig []byte) *Masternode {
	return &Masternode{
		Outpoint:         outpoint,
		Script:           script,
		OperatorPubKey:   operatorPubKey,
		CollateralPubKey: collateralPubKey,
		Address:          addr,
		ProtocolVersion:  protocolVersion,
		SigTime:          sigTime,
		Signature:        sig,
		state:            PreEnabled,
	}
}

// State returns the masternode's current lifecycle state without
// recomputing it; call Check first to refresh it against now.
func (m *Masternode) State() State { return m.state }

// IsPingedWithin reports whether LastPing.SigTime is within seconds of
// relativeTo (now, unless a specific reference timestamp is given to
// compare against a prior sigTime as CheckAndUpdate does).
func (m *Masternode) IsPingedWithin(seconds int64, relativeTo int64) bool {
	if m.LastPing.SigTime == 0 {
		return false
	}
	return relativeTo-m.LastPing.SigTime < seconds
}

// Check recomputes state from the masternode's last ping time. VinSpent
// and Removed are terminal and are never recomputed once reached
// through MarkVinSpent or a prior Check; every other transition is
// re-derived from scratch each call, matching CMasternode::Check:
// removal age first, then expiration age, then the PreEnabled->Enabled
// promotion once the first ping confirms liveness.
func (m *Masternode) Check(now int64, params *chaincfg.Params) {
	if m.state.terminal() {
		return
	}

	if !m.IsPingedWithin(params.RemovalSeconds, now) {
		m.state = Removed
		return
	}
	if !m.IsPingedWithin(params.ExpirationSeconds, now) {
		m.state = Expired
		return
	}
	if m.LastPing.SigTime-m.SigTime < params.MinMNPingSeconds {
		m.state = PreEnabled
		return
	}
	m.state = Enabled
}

// MarkVinSpent transitions m to the terminal VinSpent state, called
// when the collateral index observes the collateral output being
// spent. It is idempotent and overrides any other state.
func (m *Masternode) MarkVinSpent() {
	m.state = VinSpent
}

// Restore reverses MarkVinSpent after a reorg disconnects the spending
// block, returning the masternode to Enabled as spec.md's reorg
// scenario (#3) requires. It has no effect once Removed.
func (m *Masternode) Restore() {
	if m.state == VinSpent {
		m.state = Enabled
	}
}
