package reward

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBaseSubsidyBands(t *testing.T) {
	cases := []struct {
		height int32
		want   int64
	}{
		{1, int64(13_000_000 * COIN)},
		{16, int64(45 * COIN)},
		{100001, int64(40 * COIN)},
		{800001, int64(30 * COIN)},
		{2000001, int64(10 * COIN)},
		{3600001, int64(2 * COIN)},
		{9_000_000, int64(2 * COIN)},
	}
	for _, c := range cases {
		require.Equal(t, c.want, int64(BaseSubsidy(c.height)), "height %d", c.height)
	}
}

func TestBaseSubsidyInitialSwap(t *testing.T) {
	require.Equal(t, int64(13_000_000*COIN), int64(BaseSubsidy(1)))
	require.Equal(t, int64(13_000_000*COIN), int64(BaseSubsidy(15)))
	require.Equal(t, int64(45*COIN), int64(BaseSubsidy(16)))
}

func TestMasternodePayment(t *testing.T) {
	require.Equal(t, int64(0), int64(MasternodePayment(1999)))
	require.Equal(t, int64(25*COIN)*65/100, int64(MasternodePayment(1_000_001)))
}

func TestCollateralBands(t *testing.T) {
	require.Equal(t, int64(1500*COIN), int64(Collateral(1)))
	require.Equal(t, int64(2000*COIN), int64(Collateral(100001)))
	require.Equal(t, int64(40000*COIN), int64(Collateral(3_200_001)))
	require.Equal(t, int64(40000*COIN), int64(Collateral(5_000_000)))
}

func TestNextCollateralChange(t *testing.T) {
	blocks, amount := NextCollateralChange(1)
	require.Equal(t, int32(100000), blocks)
	require.Equal(t, int64(2000*COIN), int64(amount))

	blocks, amount = NextCollateralChange(3_200_001)
	require.Equal(t, int32(-1), blocks)
	require.Equal(t, int64(0), int64(amount))
}
