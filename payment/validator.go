package payment

import (
	"github.com/btcsuite/btcd/btcutil"

	fls "github.com/decenomy/FLS"
	"github.com/decenomy/FLS/chaincfg"
	"github.com/decenomy/FLS/collateral"
	"github.com/decenomy/FLS/masternode"
	"github.com/decenomy/FLS/paymenthistory"
	"github.com/decenomy/FLS/reward"
)

// Validate runs the C7 payment-validator algorithm (spec.md §4.7)
// against block, which is connecting on top of pindexPrev. chainSynced
// and registrySynced are judged separately since the registry can lag
// the chain's own IBD state.
func Validate(
	block *fls.Block,
	pindexPrev fls.BlockIndex,
	chain fls.ChainView,
	registry *masternode.Registry,
	collIdx *collateral.Index,
	history *paymenthistory.Index,
	utxo fls.UTXOSource,
	params *chaincfg.Params,
	chainSynced bool,
	registrySynced bool,
	now int64,
) (accept bool, err error) {
	if !chainSynced {
		return true, nil
	}

	height := pindexPrev.Height() + 1
	payee, found := paymenthistory.PaidPayee(block, height, masternodePaymentInt)
	if !found {
		return false, nil
	}

	if !collIdx.HasCollateral(payee) {
		return false, nil
	}

	if registry.CountEnabled() == 0 || !registrySynced {
		return true, nil
	}

	_, eligible := Select(registry, pindexPrev, chain, collIdx, history, utxo, params, now)
	if len(eligible) == 0 {
		return true, nil
	}

	minDepth := int32(-1)
	for _, c := range eligible {
		d := history.BlocksSincePayment(c.Masternode.Script, pindexPrev.Height(), collIdx.CollateralHeight(c.Masternode.Script), true)
		if minDepth == -1 || d < minDepth {
			minDepth = d
		}
	}

	collateralHeight := collIdx.CollateralHeight(payee)
	lastPaidDepth := history.BlocksSincePayment(payee, pindexPrev.Height(), collateralHeight, true)
	if lastPaidDepth < 0 {
		lastPaidDepth = pindexPrev.Height() - collateralHeight
	}

	if lastPaidDepth < minDepth {
		return false, nil
	}
	return true, nil
}

func masternodePaymentInt(h int32) int64 {
	return int64(reward.MasternodePayment(h))
}

// FillBlockPayee adjusts a freshly-assembled coinbase (proof-of-work)
// or coinstake (proof-of-stake) output list to carry the masternode
// payment due at height to payee, per spec.md §4.7's producer-side
// rule. blockValue is the caller's already-computed GetBlockValue(h).
func FillBlockPayee(txOuts []fls.TxOut, isProofOfStake bool, height int32, blockValue btcutil.Amount, payee []byte) []fls.TxOut {
	payment := reward.MasternodePayment(height)
	if payment <= 0 || len(payee) == 0 {
		return txOuts
	}

	out := append([]fls.TxOut(nil), txOuts...)

	if !isProofOfStake {
		out[0].Value = blockValue - payment
		return append(out, fls.TxOut{Value: payment, ScriptPubKey: payee})
	}

	// The coinstake's output 0 is the empty marker output; outputs from
	// 1 on are the stake reward, possibly split across several outputs
	// by the staking wallet. The masternode payment is subtracted from
	// those split outputs, evenly, with the remainder on the last one.
	splitStart := 1
	if splitStart >= len(out) {
		return out
	}
	splits := int64(len(out) - splitStart)
	share := int64(payment) / splits
	remainder := int64(payment) - share*splits
	for i := splitStart; i < len(out); i++ {
		sub := share
		if i == len(out)-1 {
			sub += remainder
		}
		out[i].Value -= btcutil.Amount(sub)
	}
	return append(out, fls.TxOut{Value: payment, ScriptPubKey: payee})
}
