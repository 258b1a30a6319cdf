// Package wire defines the masternode-specific P2P message structures
// this core exchanges with peers: MNBROADCAST, MNPING, GETMNLIST, and
// SYNCSTATUSCOUNT. Each type follows the same Message-interface shape
// as github.com/btcsuite/btcd/wire's message types (BtcEncode/BtcDecode,
// Command, MaxPayloadLength), and reuses wire.OutPoint/chainhash.Hash
// directly rather than reinventing transaction-output addressing.
package wire

import (
	"encoding/binary"
	"io"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	btcwire "github.com/btcsuite/btcd/wire"
)

// Command strings, matching the original protocol's short message
// names: masternode broadcast, masternode ping, "dseg" (masternode
// list request), and sync-status-count.
const (
	CmdMNBroadcast       = "mnb"
	CmdMNPing            = "mnp"
	CmdGetMNList         = "dseg"
	CmdMNSyncStatusCount = "ssc"
)

// outpointTxVersion is the transaction-version value passed to
// btcwire.ReadOutPoint/WriteOutPoint; this protocol predates witness
// outpoints, so it is always the base version.
const outpointTxVersion = 1

// maxScriptSize bounds the varint-prefixed script/key fields this
// package accepts, matching the original protocol's MAX_SCRIPT_SIZE
// sanity limit on any single field.
const maxScriptSize = 16384

func writeVarBytes(w io.Writer, b []byte) error {
	return btcwire.WriteVarBytes(w, 0, b)
}

func readVarBytes(r io.Reader, fieldName string) ([]byte, error) {
	return btcwire.ReadVarBytes(r, 0, maxScriptSize, fieldName)
}

func writeHash(w io.Writer, h chainhash.Hash) error {
	_, err := w.Write(h[:])
	return err
}

func readHash(r io.Reader, h *chainhash.Hash) error {
	_, err := io.ReadFull(r, h[:])
	return err
}

// readOutPoint reads the bitcoin protocol encoding for an OutPoint from
// r, matching the format written by btcwire.WriteOutPoint.
func readOutPoint(r io.Reader, pver uint32, version int32, op *btcwire.OutPoint) error {
	if _, err := io.ReadFull(r, op.Hash[:]); err != nil {
		return err
	}
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return err
	}
	op.Index = binary.LittleEndian.Uint32(buf[:])
	return nil
}

func writeInt32(w io.Writer, v int32) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func readInt32(r io.Reader, v *int32) error {
	return binary.Read(r, binary.LittleEndian, v)
}

func writeInt64(w io.Writer, v int64) error {
	return binary.Write(w, binary.LittleEndian, v)
}

func readInt64(r io.Reader, v *int64) error {
	return binary.Read(r, binary.LittleEndian, v)
}

// MsgMNPing carries a masternode's liveness signature: the collateral
// outpoint identifying it, the tip block it last saw, the signing
// time, and the signature itself.
type MsgMNPing struct {
	Outpoint  btcwire.OutPoint
	BlockHash chainhash.Hash
	SigTime   int64
	Signature []byte
}

func (msg *MsgMNPing) BtcDecode(r io.Reader, pver uint32) error {
	if err := readOutPoint(r, pver, outpointTxVersion, &msg.Outpoint); err != nil {
		return err
	}
	if err := readHash(r, &msg.BlockHash); err != nil {
		return err
	}
	if err := readInt64(r, &msg.SigTime); err != nil {
		return err
	}
	sig, err := readVarBytes(r, "MsgMNPing.Signature")
	if err != nil {
		return err
	}
	msg.Signature = sig
	return nil
}

func (msg *MsgMNPing) BtcEncode(w io.Writer, pver uint32) error {
	if err := btcwire.WriteOutPoint(w, pver, outpointTxVersion, &msg.Outpoint); err != nil {
		return err
	}
	if err := writeHash(w, msg.BlockHash); err != nil {
		return err
	}
	if err := writeInt64(w, msg.SigTime); err != nil {
		return err
	}
	return writeVarBytes(w, msg.Signature)
}

func (msg *MsgMNPing) Command() string { return CmdMNPing }

func (msg *MsgMNPing) MaxPayloadLength(pver uint32) uint32 {
	// outpoint (36) + block hash (32) + sigTime (8) + varint-prefixed sig.
	return 36 + 32 + 8 + 9 + maxScriptSize
}

// MsgMNBroadcast carries a masternode announce: its advertised address,
// collateral outpoint, both public keys, protocol version, signing
// time, signature, and the ping it was bundled with.
type MsgMNBroadcast struct {
	Address          string
	Outpoint         btcwire.OutPoint
	ScriptSig        []byte
	CollateralPubKey []byte
	OperatorPubKey   []byte
	ProtocolVersion  int32
	SigTime          int64
	Signature        []byte
	Ping             MsgMNPing
}

func (msg *MsgMNBroadcast) BtcDecode(r io.Reader, pver uint32) error {
	addr, err := btcwire.ReadVarString(r, pver)
	if err != nil {
		return err
	}
	msg.Address = addr

	if err := readOutPoint(r, pver, outpointTxVersion, &msg.Outpoint); err != nil {
		return err
	}

	scriptSig, err := readVarBytes(r, "MsgMNBroadcast.ScriptSig")
	if err != nil {
		return err
	}
	msg.ScriptSig = scriptSig

	collateralKey, err := readVarBytes(r, "MsgMNBroadcast.CollateralPubKey")
	if err != nil {
		return err
	}
	msg.CollateralPubKey = collateralKey

	operatorKey, err := readVarBytes(r, "MsgMNBroadcast.OperatorPubKey")
	if err != nil {
		return err
	}
	msg.OperatorPubKey = operatorKey

	if err := readInt32(r, &msg.ProtocolVersion); err != nil {
		return err
	}
	if err := readInt64(r, &msg.SigTime); err != nil {
		return err
	}

	sig, err := readVarBytes(r, "MsgMNBroadcast.Signature")
	if err != nil {
		return err
	}
	msg.Signature = sig

	return msg.Ping.BtcDecode(r, pver)
}

func (msg *MsgMNBroadcast) BtcEncode(w io.Writer, pver uint32) error {
	if err := btcwire.WriteVarString(w, pver, msg.Address); err != nil {
		return err
	}
	if err := btcwire.WriteOutPoint(w, pver, outpointTxVersion, &msg.Outpoint); err != nil {
		return err
	}
	if err := writeVarBytes(w, msg.ScriptSig); err != nil {
		return err
	}
	if err := writeVarBytes(w, msg.CollateralPubKey); err != nil {
		return err
	}
	if err := writeVarBytes(w, msg.OperatorPubKey); err != nil {
		return err
	}
	if err := writeInt32(w, msg.ProtocolVersion); err != nil {
		return err
	}
	if err := writeInt64(w, msg.SigTime); err != nil {
		return err
	}
	if err := writeVarBytes(w, msg.Signature); err != nil {
		return err
	}
	return msg.Ping.BtcEncode(w, pver)
}

func (msg *MsgMNBroadcast) Command() string { return CmdMNBroadcast }

func (msg *MsgMNBroadcast) MaxPayloadLength(pver uint32) uint32 {
	// address + outpoint + scriptSig + two keys + version + sigTime + signature + ping.
	return 256 + 36 + (9 + maxScriptSize) + 2*(9+maxScriptSize) + 4 + 8 + (9 + maxScriptSize) + (&MsgMNPing{}).MaxPayloadLength(pver)
}

// MsgGetMNList requests the current masternode list. A zero-value
// Outpoint means "send the full list"; a non-zero one restricts the
// response to that single masternode.
type MsgGetMNList struct {
	Outpoint btcwire.OutPoint
}

func (msg *MsgGetMNList) BtcDecode(r io.Reader, pver uint32) error {
	return readOutPoint(r, pver, outpointTxVersion, &msg.Outpoint)
}

func (msg *MsgGetMNList) BtcEncode(w io.Writer, pver uint32) error {
	return btcwire.WriteOutPoint(w, pver, outpointTxVersion, &msg.Outpoint)
}

func (msg *MsgGetMNList) Command() string { return CmdGetMNList }

func (msg *MsgGetMNList) MaxPayloadLength(pver uint32) uint32 { return 36 }

// MsgMNSyncStatusCount is sent in response to a full-list GETMNLIST
// request, reporting progress against one sync-item category.
type MsgMNSyncStatusCount struct {
	ItemID int32
	Count  int32
}

func (msg *MsgMNSyncStatusCount) BtcDecode(r io.Reader, pver uint32) error {
	if err := readInt32(r, &msg.ItemID); err != nil {
		return err
	}
	return readInt32(r, &msg.Count)
}

func (msg *MsgMNSyncStatusCount) BtcEncode(w io.Writer, pver uint32) error {
	if err := writeInt32(w, msg.ItemID); err != nil {
		return err
	}
	return writeInt32(w, msg.Count)
}

func (msg *MsgMNSyncStatusCount) Command() string { return CmdMNSyncStatusCount }

func (msg *MsgMNSyncStatusCount) MaxPayloadLength(pver uint32) uint32 { return 8 }
