package payment

import (
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"

	fls "github.com/decenomy/FLS"
	"github.com/decenomy/FLS/chaincfg"
	"github.com/decenomy/FLS/collateral"
	"github.com/decenomy/FLS/masternode"
	"github.com/decenomy/FLS/paymenthistory"
)

// Candidate is one masternode scored for payment selection.
type Candidate struct {
	Masternode *masternode.Masternode
	Score      int64
}

// Select runs the C6 payment-selector algorithm against pindexPrev and
// returns the eligible set (ordered oldest-paid first) and the best
// candidate, its head. utxo supplies collateral confirmation depth;
// history supplies seconds-since-payment; chain resolves block
// timestamps for that computation.
func Select(
	registry *masternode.Registry,
	pindexPrev fls.BlockIndex,
	chain fls.ChainView,
	collIdx *collateral.Index,
	history *paymenthistory.Index,
	utxo fls.UTXOSource,
	params *chaincfg.Params,
	now int64,
) (best *masternode.Masternode, eligible []Candidate) {
	enabled := enabledOf(registry)
	n := len(enabled)
	if n == 0 {
		return nil, nil
	}

	candidates := applySigTimeFilter(enabled, n, now)

	candidates = filterByDepth(candidates, utxo, pindexPrev.Height()+1, int32(n))

	scored := make([]Candidate, 0, len(candidates))
	for _, mn := range candidates {
		scored = append(scored, Candidate{
			Masternode: mn,
			Score:      secondsSincePayment(mn, pindexPrev, chain, history),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	setSize := n * 5 / 100
	if setSize < 10 {
		setSize = 10
	}
	if setSize > len(scored) {
		setSize = len(scored)
	}
	eligible = scored[:setSize]
	if len(eligible) == 0 {
		return nil, nil
	}
	return eligible[0].Masternode, eligible
}

func enabledOf(registry *masternode.Registry) []*masternode.Masternode {
	var out []*masternode.Masternode
	for _, mn := range registry.Snapshot() {
		if mn.State() == masternode.Enabled {
			out = append(out, mn)
		}
	}
	return out
}

// applySigTimeFilter excludes masternodes whose announce is newer than
// n*60 seconds ago, retrying without the filter (once) if it leaves
// fewer than n/3 candidates — the network-ramp carve-out.
func applySigTimeFilter(enabled []*masternode.Masternode, n int, now int64) []*masternode.Masternode {
	window := int64(n) * 60
	var filtered []*masternode.Masternode
	for _, mn := range enabled {
		if now-mn.SigTime >= window {
			filtered = append(filtered, mn)
		}
	}
	if len(filtered) < n/3 {
		return enabled
	}
	return filtered
}

// filterByDepth requires each candidate's collateral to have
// confirmation depth >= n at height.
func filterByDepth(candidates []*masternode.Masternode, utxo fls.UTXOSource, height int32, n int32) []*masternode.Masternode {
	var out []*masternode.Masternode
	for _, mn := range candidates {
		if utxo.CoinDepthAtHeight(mn.Outpoint, height) >= n {
			out = append(out, mn)
		}
	}
	return out
}

// oneMonthSeconds is the "strictly greater than one month" floor the
// deterministic hash-derived substitute must clear for un-indexable
// masternodes (spec.md §4.6 step 4).
const oneMonthSeconds = 30 * 24 * 60 * 60

func secondsSincePayment(
	mn *masternode.Masternode,
	pindexPrev fls.BlockIndex,
	chain fls.ChainView,
	history *paymenthistory.Index,
) int64 {
	lastPaidHeight, ok := history.GetLastPaidBlock(mn.Script, pindexPrev.Height())
	if !ok {
		return pindexPrev.Time() - mn.SigTime
	}

	lastPaidIdx, found := chain.AtHeight(lastPaidHeight)
	if !found {
		return hashDerivedFallback(mn)
	}
	return pindexPrev.Time() - lastPaidIdx.Time()
}

// hashDerivedFallback reproduces the original's deterministic
// substitute for an un-indexable masternode: a value strictly greater
// than one month, derived from a hash of the masternode's identity so
// it is stable across calls and nodes.
func hashDerivedFallback(mn *masternode.Masternode) int64 {
	h := chainhash.HashH([]byte(mn.Outpoint.String()))
	compact := int64(h[0]) | int64(h[1])<<8 | int64(h[2])<<16
	return oneMonthSeconds + 1 + compact
}
