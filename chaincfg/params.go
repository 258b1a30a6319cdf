// Package chaincfg defines the network-specific constants the payment
// consensus core needs: message-start bytes, the default P2P port, the
// reward-adjustment cadence, target block spacing, upgrade activation
// heights, and the burn-address set. It follows the same one-struct-
// per-network shape as github.com/btcsuite/btcd/chaincfg.
package chaincfg

import "fmt"

// Upgrade names a network upgrade that the core gates behavior on.
type Upgrade int

const (
	// UpgradeDynamicRewards activates the epoch-based subsidy
	// recomputation in the dynamic reward engine.
	UpgradeDynamicRewards Upgrade = iota
	// UpgradeStakeModifierV2 activates the signature-hash message
	// format for masternode announces and pings, in addition to the
	// legacy string-concatenation format which remains accepted.
	UpgradeStakeModifierV2
)

// ConsensusUpgrade pairs an upgrade identifier with the height it
// activates at.
type ConsensusUpgrade struct {
	Upgrade        Upgrade
	ActivationHeight int32
}

// Params groups the network parameters the core consumes. One value is
// instantiated per network (mainnet and regtest; there is no testnet
// value), mirroring
// btcsuite-btcd/chaincfg.Params.
type Params struct {
	// Name is a human-readable network identifier, e.g. "mainnet".
	Name string

	// Net is the four-byte P2P message-start magic for this network.
	Net [4]byte

	// DefaultPort is the TCP port masternode announces must advertise;
	// any other port is rejected.
	DefaultPort string

	// RewardAdjustmentInterval (I in spec.md §4.2) is the number of
	// blocks between dynamic-reward epoch boundaries.
	RewardAdjustmentInterval int32

	// TargetSpacing is the intended number of seconds between blocks.
	TargetSpacing int64

	// TimeSlotLength returns the stake time-slot length in seconds at
	// a given height (it can itself be subject to a network upgrade,
	// hence the function rather than a constant).
	TimeSlotLength func(height int32) int64

	// Upgrades lists every gated behavior change this network has
	// scheduled, keyed by Upgrade.
	Upgrades []ConsensusUpgrade

	// BurnAddresses maps an address string to the height at which
	// coins sent to it stop counting toward circulating supply.
	BurnAddresses map[string]int32

	// PubKeyHashAddrID is the version byte prefixed to a hash160 before
	// base58check-encoding it into this network's P2PKH address form,
	// the same field name and role as btcsuite/btcd/chaincfg.Params'.
	// It is what lets the dynamic reward engine turn a coin's
	// scriptPubKey back into the address string BurnAddresses is keyed
	// by.
	PubKeyHashAddrID byte

	// MaxReorgDepth is this network's reorg horizon. No code in this
	// module reads it: GetLastPaidBlockSlow takes its walk bound as an
	// argument, and the collateral index does not consult it.
	MaxReorgDepth int32

	// TotalSupplyTargetEmission is the annual emission rate, as a
	// percentage, the dynamic reward engine targets against total
	// money supply.
	TotalSupplyTargetEmission int64

	// CirculatingSupplyTargetEmission is the annual emission rate, as a
	// percentage, the dynamic reward engine targets against adjusted
	// circulating supply.
	CirculatingSupplyTargetEmission int64

	// MinMNPingSeconds is the minimum time between accepted pings for
	// a single masternode, and the threshold a PreEnabled masternode
	// must clear to become Enabled.
	MinMNPingSeconds int64

	// ExpirationSeconds is how long a masternode may go without a
	// ping before it is marked Expired.
	ExpirationSeconds int64

	// RemovalSeconds is how long a masternode may go without a ping
	// before it is dropped from the registry entirely.
	RemovalSeconds int64

	// DsegSeconds throttles how often a single peer may request a
	// full masternode list.
	DsegSeconds int64

	// MaxPingBlockLag bounds how far below the tip a ping's referenced
	// blockHash may be before it is rejected.
	MaxPingBlockLag int32

	// MasternodeMinConfirmations is the minimum number of confirmations
	// an announce's collateral outpoint must have before the announce
	// is applied (CheckInputsAndAdd defers, rather than rejects, while
	// short of it).
	MasternodeMinConfirmations int32

	// MinPeerMNAnnounce is the highest announce ProtocolVersion that is
	// not punished for a bad signature; an announce at or below it fails
	// signature checks for version-skew reasons the peer cannot help,
	// so no DoS score is applied, matching
	// CMasternodeBroadcast::CheckAndUpdate's nDos gating in the
	// original node.
	MinPeerMNAnnounce int32

	// Misbehavior holds the DoS scores applied for each class of
	// rejected network message; exposed as configuration so tests can
	// pin behavior without patching source.
	Misbehavior MisbehaviorScores
}

// MisbehaviorScores are the peer-punishment constants spec.md §4.5
// calls out as policy, not protocol: malformed keys, bad signatures on
// modern-version announces, mismatched vin/pubkey, and bad ping
// signatures on a known masternode.
type MisbehaviorScores struct {
	MalformedKey     int
	BadSignature     int
	MismatchedVinKey int
	BadPingSignature int
}

// NetworkUpgradeActive reports whether the named upgrade has activated
// by the given height.
func (p *Params) NetworkUpgradeActive(height int32, u Upgrade) bool {
	for _, cu := range p.Upgrades {
		if cu.Upgrade == u {
			return height >= cu.ActivationHeight
		}
	}
	return false
}

// UpgradeHeight returns the activation height for u, or false if the
// network never schedules it.
func (p *Params) UpgradeHeight(u Upgrade) (int32, bool) {
	for _, cu := range p.Upgrades {
		if cu.Upgrade == u {
			return cu.ActivationHeight, true
		}
	}
	return 0, false
}

// BurnAddressActive reports whether addr is a burn address whose
// activation height has already passed at height.
func (p *Params) BurnAddressActive(addr string, height int32) bool {
	activation, ok := p.BurnAddresses[addr]
	if !ok {
		return false
	}
	return activation < height
}

// WeekBlocks returns the number of blocks in one week at this
// network's target spacing, used to tolerate an imminent collateral
// denomination change when validating an announce's collateral value.
func (p *Params) WeekBlocks() int32 {
	return int32(7 * 24 * 60 * 60 / p.TargetSpacing)
}

// ValidatePort checks that port matches the network's required default
// port, the same check CMasternodeBroadcast::CheckDefaultPort performs
// on every announce.
func (p *Params) ValidatePort(port string) error {
	if port != p.DefaultPort {
		return fmt.Errorf("invalid port %s for network %s, only %s is supported",
			port, p.Name, p.DefaultPort)
	}
	return nil
}

// MainNetParams are the production network parameters. Collateral
// amounts, subsidy bands, and the initial swap emission live in
// package reward since they are pure functions of height, not network
// configuration.
var MainNetParams = Params{
	Name:                     "mainnet",
	Net:                      [4]byte{0xa3, 0xd0, 0xcd, 0x9f},
	DefaultPort:              "51472",
	RewardAdjustmentInterval: 2880,
	TargetSpacing:            60,
	TimeSlotLength:           func(int32) int64 { return 60 },
	Upgrades: []ConsensusUpgrade{
		{Upgrade: UpgradeStakeModifierV2, ActivationHeight: 1},
		{Upgrade: UpgradeDynamicRewards, ActivationHeight: 1_200_000},
	},
	BurnAddresses:                   map[string]int32{},
	PubKeyHashAddrID:                0x1e,
	MaxReorgDepth:                   100,
	TotalSupplyTargetEmission:       5,
	CirculatingSupplyTargetEmission: 6,
	MinMNPingSeconds:                10 * 60,
	ExpirationSeconds:               180 * 60,
	RemovalSeconds:                  230 * 60,
	DsegSeconds:                     3 * 60 * 60,
	MaxPingBlockLag:                 24,
	MasternodeMinConfirmations:      15,
	MinPeerMNAnnounce:               90024,
	Misbehavior: MisbehaviorScores{
		MalformedKey:     100,
		BadSignature:     100,
		MismatchedVinKey: 33,
		BadPingSignature: 33,
	},
}

// RegressionNetParams relaxes timing assumptions for local integration
// tests: a short adjustment interval and an immediately-active dynamic
// rewards upgrade so tests don't need to mine a million blocks.
var RegressionNetParams = Params{
	Name:                     "regtest",
	Net:                      [4]byte{0xfa, 0xbf, 0xb5, 0xda},
	DefaultPort:              "51475",
	RewardAdjustmentInterval: 100,
	TargetSpacing:            60,
	TimeSlotLength:           func(int32) int64 { return 60 },
	Upgrades: []ConsensusUpgrade{
		{Upgrade: UpgradeStakeModifierV2, ActivationHeight: 0},
		{Upgrade: UpgradeDynamicRewards, ActivationHeight: 0},
	},
	BurnAddresses:                   map[string]int32{},
	PubKeyHashAddrID:                0x8b,
	MaxReorgDepth:                   10,
	TotalSupplyTargetEmission:       5,
	CirculatingSupplyTargetEmission: 6,
	MinMNPingSeconds:                60,
	ExpirationSeconds:               600,
	RemovalSeconds:                  900,
	DsegSeconds:                     60,
	MaxPingBlockLag:                 24,
	MasternodeMinConfirmations:      1,
	MinPeerMNAnnounce:               90024,
	Misbehavior: MisbehaviorScores{
		MalformedKey:     100,
		BadSignature:     100,
		MismatchedVinKey: 33,
		BadPingSignature: 33,
	},
}
