package reward

import "github.com/btcsuite/btcd/btcutil"

// COIN is the number of smallest units in one whole coin.
const COIN = btcutil.Amount(1e8)

// band is one entry of a piecewise-constant step function over block
// height: heights in [Height, next band's Height) map to Amount.
type band struct {
	Height int32
	Amount btcutil.Amount
}

// subsidyBands is the base-subsidy schedule, grounded on
// original_source/src/rewards.cpp's GetBlockSubsidy: a run of bands
// 100,000 to 400,000 blocks wide stepping the reward down from 45 COIN to a
// 2 COIN floor, with an initial swap-emission override for the first
// 15 blocks.
var subsidyBands = []band{
	{1, 45 * COIN}, {100001, 40 * COIN}, {500001, 35 * COIN},
	{800001, 30 * COIN}, {1000001, 25 * COIN}, {1300001, 20 * COIN},
	{1600001, 15 * COIN}, {2000001, 10 * COIN}, {2300001, 8 * COIN},
	{2600001, 6 * COIN}, {2900001, 4 * COIN}, {3300001, 3 * COIN},
	{3600001, 2 * COIN},
}

// collateralBands is the masternode-collateral schedule, grounded on
// original_source/src/masternode.cpp's GetMasternodeNodeCollateral.
var collateralBands = []band{
	{1, 1500 * COIN}, {100001, 2000 * COIN}, {300001, 2500 * COIN},
	{500001, 3000 * COIN}, {700001, 4000 * COIN}, {900001, 5000 * COIN},
	{1000001, 6000 * COIN}, {1200001, 7000 * COIN}, {1300001, 8000 * COIN},
	{1500001, 9000 * COIN}, {1600001, 10000 * COIN}, {1800001, 12000 * COIN},
	{1900001, 14000 * COIN}, {2100001, 16000 * COIN}, {2300001, 18000 * COIN},
	{2400001, 20000 * COIN}, {2700001, 25000 * COIN}, {2900001, 30000 * COIN},
	{3100001, 35000 * COIN}, {3200001, 40000 * COIN},
}

// initialSwapHeight and initialSwapAmount override the regular bands
// for the first few blocks to carry out the one-time token swap.
const initialSwapHeight = 15
const initialSwapAmount = 13_000_000 * COIN

// minMasternodePaymentHeight is the height below which no masternode
// payment is due at all (spec.md §4.1).
const minMasternodePaymentHeight = 2000

// masternodeShareNum/masternodeShareDen express the 65% masternode
// share as spec.md §4.1 defines it: masternodePayment(h) = baseSubsidy(h) * 65 / 100.
const masternodeShareNum = 65
const masternodeShareDen = 100

func stepLookup(bands []band, h int32) btcutil.Amount {
	amount := bands[0].Amount
	for _, b := range bands {
		if h < b.Height {
			break
		}
		amount = b.Amount
	}
	return amount
}

// BaseSubsidy returns the base per-block subsidy at height h, before
// any dynamic-reward adjustment and before the masternode share is
// subtracted.
func BaseSubsidy(h int32) btcutil.Amount {
	if h >= 1 && h <= initialSwapHeight {
		return initialSwapAmount
	}
	return stepLookup(subsidyBands, h)
}

// Collateral returns the masternode collateral amount required at
// height h.
func Collateral(h int32) btcutil.Amount {
	return stepLookup(collateralBands, h)
}

// MasternodePayment returns the masternode's share of the base subsidy
// at height h, or zero before the payment-activation height.
func MasternodePayment(h int32) btcutil.Amount {
	if h < minMasternodePaymentHeight {
		return 0
	}
	return BaseSubsidy(h) * masternodeShareNum / masternodeShareDen
}

// NextCollateralChange returns the number of blocks until the
// collateral amount next changes, and the amount it changes to. It
// returns (-1, 0) if height is at or past the last scheduled band.
func NextCollateralChange(h int32) (blocksUntil int32, newAmount btcutil.Amount) {
	for _, b := range collateralBands {
		if b.Height > h {
			return b.Height - h, b.Amount
		}
	}
	return -1, 0
}
