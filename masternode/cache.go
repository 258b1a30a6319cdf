package masternode

import (
	"bytes"
	"encoding/binary"
	"io"
	"os"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	fls "github.com/decenomy/FLS"
)

// cacheMagic is the 16-byte magic string every mncache.dat file starts
// with, matching CMasternodeDB::CMasternodeDB's strMagicMessage.
const cacheMagic = "masternodecache\x00"

// ReadResult mirrors CMasternodeDB::ReadResult: the caller decides
// whether to recreate the registry (IncorrectFormat/FileError) or
// merely reject this load attempt (IncorrectHash/IncorrectMagic*).
type ReadResult int

const (
	Ok ReadResult = iota
	FileError
	IncorrectHash
	IncorrectMagicMessage
	IncorrectMagicNumber
	IncorrectFormat
)

// record is the wire shape of one persisted masternode, enough to
// reconstruct it without re-running announce validation.
type record struct {
	Outpoint  wire.OutPoint
	Script    []byte
	// ScriptSig mirrors Broadcast.ScriptSig's wire slot for format
	// parity, but every persisted masternode reached this state only by
	// passing CheckAndUpdate's empty-scriptSig rejection, so it is
	// always written empty and discarded on read.
	ScriptSig        []byte
	OperatorPubKey   []byte
	CollateralPubKey []byte
	Address          string
	ProtocolVersion  int32
	SigTime          int64
	Signature        []byte
	LastPing         Ping
	State            State
}

// Write serializes the registry's current masternode set to path in
// the mncache.dat container format: 16-byte magic, 4-byte network
// magic, the serialized record list, then a trailing 32-byte content
// hash over everything before it.
func Write(path string, netMagic [4]byte, r *Registry) error {
	var body bytes.Buffer

	records := r.Snapshot()
	if err := binary.Write(&body, binary.LittleEndian, uint32(len(records))); err != nil {
		return fls.NewError(fls.ErrFatal, "writing masternode cache record count", err)
	}
	for _, mn := range records {
		rec := record{
			Outpoint:         mn.Outpoint,
			Script:           mn.Script,
			OperatorPubKey:   mn.OperatorPubKey,
			CollateralPubKey: mn.CollateralPubKey,
			Address:          mn.Address,
			ProtocolVersion:  mn.ProtocolVersion,
			SigTime:          mn.SigTime,
			Signature:        mn.Signature,
			LastPing:         mn.LastPing,
			State:            mn.State(),
		}
		if err := writeRecord(&body, rec); err != nil {
			return fls.NewError(fls.ErrFatal, "writing masternode cache record", err)
		}
	}

	var out bytes.Buffer
	out.WriteString(cacheMagic)
	out.Write(netMagic[:])
	out.Write(body.Bytes())

	contentHash := chainhash.HashH(out.Bytes())
	out.Write(contentHash[:])

	return os.WriteFile(path, out.Bytes(), 0o600)
}

// Load reads path and, on success, replaces dst's contents with the
// deserialized masternode set. It never punishes a peer; a bad file
// simply means the registry starts empty, matching spec.md scenario 6.
func Load(path string, netMagic [4]byte, dst *Registry) ReadResult {
	data, err := os.ReadFile(path)
	if err != nil {
		return FileError
	}

	minLen := len(cacheMagic) + 4 + 32
	if len(data) < minLen {
		return IncorrectFormat
	}

	magic := data[:len(cacheMagic)]
	if string(magic) != cacheMagic {
		return IncorrectMagicMessage
	}
	offset := len(cacheMagic)

	fileNetMagic := data[offset : offset+4]
	offset += 4
	if !bytes.Equal(fileNetMagic, netMagic[:]) {
		return IncorrectMagicNumber
	}

	body := data[:len(data)-32]
	wantHash := data[len(data)-32:]
	gotHash := chainhash.HashH(body)
	if !bytes.Equal(gotHash[:], wantHash) {
		return IncorrectHash
	}

	reader := bytes.NewReader(data[offset : len(data)-32])
	var count uint32
	if err := binary.Read(reader, binary.LittleEndian, &count); err != nil {
		return IncorrectFormat
	}

	store := make(map[wire.OutPoint]*Masternode, count)
	byScript := make(map[string]wire.OutPoint, count)
	byPubKey := make(map[string]wire.OutPoint, count)
	for i := uint32(0); i < count; i++ {
		rec, err := readRecord(reader)
		if err != nil {
			return IncorrectFormat
		}
		mn := New(rec.Outpoint, rec.Script, rec.OperatorPubKey, rec.CollateralPubKey, rec.Address, rec.ProtocolVersion, rec.SigTime, rec.Signature)
		mn.LastPing = rec.LastPing
		mn.state = rec.State
		store[mn.Outpoint] = mn
		byScript[string(mn.Script)] = mn.Outpoint
		byPubKey[string(mn.OperatorPubKey)] = mn.Outpoint
	}

	dst.csStore.Lock()
	dst.store = store
	dst.csStore.Unlock()

	dst.csScript.Lock()
	dst.byScript = byScript
	dst.csScript.Unlock()

	dst.csPubKey.Lock()
	dst.byPubKey = byPubKey
	dst.csPubKey.Unlock()

	return Ok
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func writeRecord(w io.Writer, rec record) error {
	if err := binary.Write(w, binary.LittleEndian, rec.Outpoint.Hash); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, rec.Outpoint.Index); err != nil {
		return err
	}
	if err := writeBytes(w, rec.Script); err != nil {
		return err
	}
	if err := writeBytes(w, rec.ScriptSig); err != nil {
		return err
	}
	if err := writeBytes(w, rec.OperatorPubKey); err != nil {
		return err
	}
	if err := writeBytes(w, rec.CollateralPubKey); err != nil {
		return err
	}
	if err := writeBytes(w, []byte(rec.Address)); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, rec.ProtocolVersion); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, rec.SigTime); err != nil {
		return err
	}
	if err := writeBytes(w, rec.Signature); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, rec.LastPing.Outpoint.Hash); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, rec.LastPing.Outpoint.Index); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, rec.LastPing.BlockHash); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, rec.LastPing.SigTime); err != nil {
		return err
	}
	if err := writeBytes(w, rec.LastPing.Signature); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, int32(rec.State))
}

func readRecord(r io.Reader) (record, error) {
	var rec record
	if err := binary.Read(r, binary.LittleEndian, &rec.Outpoint.Hash); err != nil {
		return rec, err
	}
	if err := binary.Read(r, binary.LittleEndian, &rec.Outpoint.Index); err != nil {
		return rec, err
	}
	var err error
	if rec.Script, err = readBytes(r); err != nil {
		return rec, err
	}
	if rec.ScriptSig, err = readBytes(r); err != nil {
		return rec, err
	}
	if rec.OperatorPubKey, err = readBytes(r); err != nil {
		return rec, err
	}
	if rec.CollateralPubKey, err = readBytes(r); err != nil {
		return rec, err
	}
	var addr []byte
	if addr, err = readBytes(r); err != nil {
		return rec, err
	}
	rec.Address = string(addr)
	if err := binary.Read(r, binary.LittleEndian, &rec.ProtocolVersion); err != nil {
		return rec, err
	}
	if err := binary.Read(r, binary.LittleEndian, &rec.SigTime); err != nil {
		return rec, err
	}
	if rec.Signature, err = readBytes(r); err != nil {
		return rec, err
	}
	if err := binary.Read(r, binary.LittleEndian, &rec.LastPing.Outpoint.Hash); err != nil {
		return rec, err
	}
	if err := binary.Read(r, binary.LittleEndian, &rec.LastPing.Outpoint.Index); err != nil {
		return rec, err
	}
	if err := binary.Read(r, binary.LittleEndian, &rec.LastPing.BlockHash); err != nil {
		return rec, err
	}
	if err := binary.Read(r, binary.LittleEndian, &rec.LastPing.SigTime); err != nil {
		return rec, err
	}
	if rec.LastPing.Signature, err = readBytes(r); err != nil {
		return rec, err
	}
	var state int32
	if err := binary.Read(r, binary.LittleEndian, &state); err != nil {
		return rec, err
	}
	rec.State = State(state)
	return rec, nil
}
