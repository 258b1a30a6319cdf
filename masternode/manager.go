package masternode

import (
	"sort"
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/decred/dcrd/lru"

	fls "github.com/decenomy/FLS"
	"github.com/decenomy/FLS/chaincfg"
)

// seenCacheSize bounds the seen-broadcast/seen-ping LRU caches used to
// avoid reprocessing and re-relaying duplicates.
const seenCacheSize = 10000

// Registry is the Masternode Registry (C5). It implements the
// "single owning store, dense-index" redesign from spec.md §9 in
// place of the original triple-indexed-by-reference scheme: one
// owning map keyed by outpoint under cs, and two pure key-to-outpoint
// indices each under their own leaf lock, so all three invariants
// (|vMasternodes| == |mapTxInMasternodes| == |mapPubKeyMasternodes|
// and |mapScriptMasternodes| <= |vMasternodes|) still hold without
// aliased heap records.
type Registry struct {
	params *chaincfg.Params

	csStore sync.RWMutex
	store   map[wire.OutPoint]*Masternode

	csScript sync.RWMutex
	byScript map[string]wire.OutPoint

	csPubKey sync.RWMutex
	byPubKey map[string]wire.OutPoint

	// processMu serializes ProcessAnnounce/ProcessPing/ProcessGetList
	// so a malicious peer cannot interleave state mutations across
	// messages, matching the single processMessage mutex in
	// masternodeman.cpp.
	processMu sync.Mutex

	seenBroadcast lru.Cache
	seenPing      lru.Cache
	pingSalt      string

	lastDseg map[int32]int64 // per-peer ProcessGetList throttle
}

// NewRegistry constructs an empty Registry.
func NewRegistry(params *chaincfg.Params) *Registry {
	return &Registry{
		params:        params,
		store:         make(map[wire.OutPoint]*Masternode),
		byScript:      make(map[string]wire.OutPoint),
		byPubKey:      make(map[string]wire.OutPoint),
		seenBroadcast: lru.NewCache(seenCacheSize),
		seenPing:      lru.NewCache(seenCacheSize),
		lastDseg:      make(map[int32]int64),
	}
}

// Add inserts mn if it is Enabled and not already known. If a
// different masternode already occupies mn.Script, it is evicted (the
// newer broadcast wins). Returns whether mn was newly added.
func (r *Registry) Add(mn *Masternode) bool {
	if mn.State() != Enabled {
		return false
	}

	r.csStore.Lock()
	if _, exists := r.store[mn.Outpoint]; exists {
		r.csStore.Unlock()
		return false
	}
	r.store[mn.Outpoint] = mn
	r.csStore.Unlock()

	r.csScript.Lock()
	if prevOp, occupied := r.byScript[string(mn.Script)]; occupied && prevOp != mn.Outpoint {
		r.byScript[string(mn.Script)] = mn.Outpoint
		r.csScript.Unlock()
		r.removeOutpointOnly(prevOp)
	} else {
		r.byScript[string(mn.Script)] = mn.Outpoint
		r.csScript.Unlock()
	}

	r.csPubKey.Lock()
	r.byPubKey[string(mn.OperatorPubKey)] = mn.Outpoint
	r.csPubKey.Unlock()

	return true
}

// removeOutpointOnly erases op from the store and pubkey index without
// touching the script index, used when Add evicts a prior occupant of
// a script whose new occupant already owns the script-index slot.
func (r *Registry) removeOutpointOnly(op wire.OutPoint) {
	r.csStore.Lock()
	mn, ok := r.store[op]
	delete(r.store, op)
	r.csStore.Unlock()
	if !ok {
		return
	}

	r.csPubKey.Lock()
	delete(r.byPubKey, string(mn.OperatorPubKey))
	r.csPubKey.Unlock()
}

// Remove erases op from every index and transitions its masternode to
// VinSpent in the owning store, observed when the collateral index
// reports the output spent.
func (r *Registry) Remove(op wire.OutPoint) {
	r.csStore.Lock()
	mn, ok := r.store[op]
	r.csStore.Unlock()
	if !ok {
		return
	}
	mn.MarkVinSpent()
	r.eraseAll(op, mn)
}

func (r *Registry) eraseAll(op wire.OutPoint, mn *Masternode) {
	r.csStore.Lock()
	delete(r.store, op)
	r.csStore.Unlock()

	r.csScript.Lock()
	if cur, ok := r.byScript[string(mn.Script)]; ok && cur == op {
		delete(r.byScript, string(mn.Script))
	}
	r.csScript.Unlock()

	r.csPubKey.Lock()
	delete(r.byPubKey, string(mn.OperatorPubKey))
	r.csPubKey.Unlock()
}

// Restore re-admits a masternode whose collateral spend was
// disconnected: the reverse of Remove/MarkVinSpent for spec.md's
// collateral-reorg scenario. It is a no-op if op is unknown.
func (r *Registry) Restore(op wire.OutPoint) {
	r.csStore.RLock()
	mn, ok := r.store[op]
	r.csStore.RUnlock()
	if !ok {
		return
	}
	mn.Restore()

	r.csScript.Lock()
	r.byScript[string(mn.Script)] = op
	r.csScript.Unlock()

	r.csPubKey.Lock()
	r.byPubKey[string(mn.OperatorPubKey)] = op
	r.csPubKey.Unlock()
}

// FindByOutpoint, FindByScript, FindByPubKey are the three O(1)
// lookups the registry exposes.
func (r *Registry) FindByOutpoint(op wire.OutPoint) (*Masternode, bool) {
	r.csStore.RLock()
	defer r.csStore.RUnlock()
	mn, ok := r.store[op]
	return mn, ok
}

func (r *Registry) FindByScript(script []byte) (*Masternode, bool) {
	r.csScript.RLock()
	op, ok := r.byScript[string(script)]
	r.csScript.RUnlock()
	if !ok {
		return nil, false
	}
	return r.FindByOutpoint(op)
}

func (r *Registry) FindByPubKey(pubKey []byte) (*Masternode, bool) {
	r.csPubKey.RLock()
	op, ok := r.byPubKey[string(pubKey)]
	r.csPubKey.RUnlock()
	if !ok {
		return nil, false
	}
	return r.FindByOutpoint(op)
}

// Snapshot returns every known masternode, for callers that need a
// consistent-enough view (the selector, invariant checks).
func (r *Registry) Snapshot() []*Masternode {
	r.csStore.RLock()
	defer r.csStore.RUnlock()
	out := make([]*Masternode, 0, len(r.store))
	for _, mn := range r.store {
		out = append(out, mn)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Outpoint.String() < out[j].Outpoint.String() })
	return out
}

// CountEnabled returns the number of masternodes currently Enabled.
func (r *Registry) CountEnabled() int {
	n := 0
	for _, mn := range r.Snapshot() {
		if mn.State() == Enabled {
			n++
		}
	}
	return n
}

// CheckAndRemove refreshes every masternode's state against now, then
// deletes entries in {Removed, VinSpent}, and, if forceExpired is set,
// Expired entries too.
func (r *Registry) CheckAndRemove(now int64, forceExpired bool) {
	for _, mn := range r.Snapshot() {
		mn.Check(now, r.params)
		switch mn.State() {
		case Removed, VinSpent:
			r.eraseAll(mn.Outpoint, mn)
		case Expired:
			if forceExpired {
				r.eraseAll(mn.Outpoint, mn)
			}
		}
	}
}

// PingSalt returns the registry's current runtime ping-hash salt, for
// a node that needs to sign its own outgoing ping with the same salt
// ProcessPing will verify it against.
func (r *Registry) PingSalt() string {
	return r.pingSalt
}

// UpdatePingSalt replaces the runtime ping-hash salt. Per spec.md §9's
// second open question, a salt change invalidates every previously
// cached ping hash, so the seen-ping cache is cleared.
func (r *Registry) UpdatePingSalt(salt string) {
	if salt == r.pingSalt {
		return
	}
	r.pingSalt = salt
	r.seenPing = lru.NewCache(seenCacheSize)
}

// ProcessAnnounce validates and applies a received MNBROADCAST. It
// serializes with ProcessPing/ProcessGetList on processMu.
// collateralValue is the actual amount the announce's collateral
// outpoint carries, resolved by the caller's UTXO/transaction lookup
// (the announce itself never carries it); confirmations,
// minConfirmations, confirmedHeight, and weekBlocks are likewise
// resolved by the caller against the live chain state before calling
// in, since the registry itself holds no chain view.
func (r *Registry) ProcessAnnounce(b *Broadcast, now int64, tipHeight int32, magic string, signer fls.MessageSigner, confirmations, minConfirmations, confirmedHeight int32, collateralValue int64, weekBlocks int32) (accept, pending bool, dosScore int, err error) {
	r.processMu.Lock()
	defer r.processMu.Unlock()

	hash := chainhash.HashH([]byte(b.Address + b.Outpoint.String()))
	if r.seenBroadcast.Contains(hash) {
		return false, false, 0, fls.NewError(fls.ErrStale, "duplicate announce", nil)
	}

	existing, _ := r.FindByOutpoint(b.Outpoint)

	ok, score, cErr := b.CheckAndUpdate(existing, now, tipHeight, r.params, magic, signer)
	if !ok {
		return false, false, score, cErr
	}

	collateralOK, isPending := CheckInputsAndAdd(b, confirmations, minConfirmations, confirmedHeight, collateralValue, weekBlocks)
	if isPending {
		return false, true, 0, nil
	}
	if !collateralOK {
		return false, false, 0, fls.NewError(fls.ErrMalformedInput, "collateral value does not match the schedule", nil)
	}

	mn := New(b.Outpoint, b.Script, b.OperatorPubKey, b.CollateralPubKey, b.Address, b.ProtocolVersion, b.SigTime, b.Signature)
	mn.LastPing = b.Ping
	mn.Check(now, r.params)
	r.Add(mn)

	r.seenBroadcast.Add(hash)
	return true, false, 0, nil
}

// ProcessPing validates and applies a received MNPING against the
// masternode it names.
func (r *Registry) ProcessPing(p *Ping, now int64, tipHeight int32, signer fls.MessageSigner, blockKnownOnMainChain bool, blockDepth int32) (accept bool, dosScore int, err error) {
	r.processMu.Lock()
	defer r.processMu.Unlock()

	hash := p.Hash(r.pingSalt)
	if r.seenPing.Contains(hash) {
		return false, 0, fls.NewError(fls.ErrStale, "duplicate ping", nil)
	}

	mn, ok := r.FindByOutpoint(p.Outpoint)
	if !ok {
		return false, 0, fls.NewError(fls.ErrInsufficient, "ping for unknown masternode", nil)
	}

	accept, score, err := p.CheckAndUpdate(mn, now, tipHeight, r.params, r.pingSalt, signer, blockKnownOnMainChain, blockDepth, false)
	if accept {
		r.seenPing.Add(hash)
	}
	return accept, score, err
}

// ProcessGetList throttles peerID to one full list per DsegSeconds,
// then returns every Enabled masternode's announce-worthy data for the
// caller to push. A non-zero filter restricts the response to that
// single outpoint.
func (r *Registry) ProcessGetList(peerID int32, now int64, filter wire.OutPoint) (mns []*Masternode, throttled bool) {
	r.processMu.Lock()
	defer r.processMu.Unlock()

	var zero wire.OutPoint
	if filter == zero {
		last, ok := r.lastDseg[peerID]
		if ok && now-last < r.params.DsegSeconds {
			return nil, true
		}
		r.lastDseg[peerID] = now
	}

	var out []*Masternode
	for _, mn := range r.Snapshot() {
		if mn.State() != Enabled {
			continue
		}
		if filter != zero && mn.Outpoint != filter {
			continue
		}
		out = append(out, mn)
	}
	return out, false
}
