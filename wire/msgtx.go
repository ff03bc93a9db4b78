// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
)

// TxKind describes the class of a transaction.  Most transactions are normal
// transfers; the remaining kinds relax the value-conservation rule in ways
// the network validates itself.
type TxKind uint8

const (
	// TxKindNormal is an ordinary value transfer.
	TxKindNormal TxKind = 0x00

	// TxKindFaucet is a test-network-only self-mint used to fund a wallet.
	TxKindFaucet TxKind = 0x10

	// TxKindMint creates new value of a custom denomination.
	TxKindMint TxKind = 0x20
)

// txKindStrings maps transaction kinds to their names.
var txKindStrings = map[TxKind]string{
	TxKindNormal: "normal",
	TxKindFaucet: "faucet",
	TxKindMint:   "mint",
}

// String returns the TxKind in human-readable form.
func (k TxKind) String() string {
	if s, ok := txKindStrings[k]; ok {
		return s
	}
	return fmt.Sprintf("unknown kind (%d)", uint8(k))
}

// MarshalJSON encodes the kind as its name.
func (k TxKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name.
func (k *TxKind) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	for kind, name := range txKindStrings {
		if name == s {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown transaction kind %q", s)
}

const (
	// MaxTxInputs is the maximum number of inputs a transaction may spend.
	MaxTxInputs = 255

	// MaxTxOutputs is the maximum number of outputs a transaction may
	// create.  Output indexes must fit in a uint8.
	MaxTxOutputs = 256

	// SigSize is the serialized size of one input signature.
	SigSize = 64
)

// Well-formedness violations.
var (
	ErrNoOutputs       = errors.New("transaction has no outputs")
	ErrTooManyInputs   = errors.New("transaction has too many inputs")
	ErrTooManyOutputs  = errors.New("transaction has too many outputs")
	ErrDuplicateInput  = errors.New("transaction spends an input twice")
	ErrZeroValueOutput = errors.New("transaction output has zero value")
)

// MsgTx is a full transaction body: the coins it consumes, the outputs it
// creates, the fee paid in the base denomination, an arbitrary data payload,
// the covenant scripts satisfying each input's spending condition, and one
// signature slot per input.
type MsgTx struct {
	Kind      TxKind     `json:"kind"`
	Inputs    []CoinID   `json:"inputs"`
	Outputs   []CoinData `json:"outputs"`
	Fee       Amount     `json:"fee"`
	Data      HexBytes   `json:"data"`
	Covenants []HexBytes `json:"covenants"`
	Sigs      []HexBytes `json:"sigs"`
}

// AddInput appends a spent coin to the transaction's input list.
func (tx *MsgTx) AddInput(id CoinID) {
	tx.Inputs = append(tx.Inputs, id)
}

// AddOutput appends an output to the transaction's output list.
func (tx *MsgTx) AddOutput(out CoinData) {
	tx.Outputs = append(tx.Outputs, out)
}

// OutputCoinID returns the coin identifier of the transaction's output at
// the given index.
func (tx *MsgTx) OutputCoinID(index uint8) CoinID {
	return NewCoinID(tx.TxHash(), index)
}

// TxHash computes the transaction's content hash: the blake2b hash of the
// transaction serialized without signatures.  Signing therefore does not
// change a transaction's identity.
func (tx *MsgTx) TxHash() Hash {
	var buf bytes.Buffer
	buf.Grow(tx.SerializeSizeNoSigs())
	tx.serializeNoSigs(&buf)
	return HashB(buf.Bytes())
}

// serializeNoSigs writes the canonical signature-free serialization.  All
// integers are little-endian and all variable-length fields are preceded by
// a uint32 length.
func (tx *MsgTx) serializeNoSigs(buf *bytes.Buffer) {
	buf.WriteByte(byte(tx.Kind))
	writeUint32(buf, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf.Write(in.TxHash[:])
		buf.WriteByte(in.Index)
	}
	writeUint32(buf, uint32(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		buf.Write(out.Covhash[:])
		writeUint64(buf, uint64(out.Value))
		buf.Write(out.Denom[:])
		writeVarBytes(buf, out.AdditionalData)
	}
	writeUint64(buf, uint64(tx.Fee))
	writeVarBytes(buf, tx.Data)
	writeUint32(buf, uint32(len(tx.Covenants)))
	for _, cov := range tx.Covenants {
		writeVarBytes(buf, cov)
	}
}

// SerializeSizeNoSigs returns the serialized size of the transaction without
// its signatures.
func (tx *MsgTx) SerializeSizeNoSigs() int {
	// Kind 1 + input count 4 + output count 4 + fee 8 + data length 4 +
	// covenant count 4.
	n := 1 + 4 + 4 + 8 + 4 + 4
	n += len(tx.Inputs) * (HashSize + 1)
	for _, out := range tx.Outputs {
		n += HashSize + 8 + DenomSize + 4 + len(out.AdditionalData)
	}
	n += len(tx.Data)
	for _, cov := range tx.Covenants {
		n += 4 + len(cov)
	}
	return n
}

// SerializeSize returns the full serialized size of the transaction,
// including signatures.  Fee estimation for a not-yet-signed transaction
// should instead use SerializeSizeNoSigs plus SigSize per input.
func (tx *MsgTx) SerializeSize() int {
	n := tx.SerializeSizeNoSigs() + 4
	for _, sig := range tx.Sigs {
		n += 4 + len(sig)
	}
	return n
}

// Copy creates a deep copy of the transaction so that the original does not
// get modified when the copy is manipulated.
func (tx *MsgTx) Copy() *MsgTx {
	newTx := &MsgTx{
		Kind:    tx.Kind,
		Inputs:  make([]CoinID, len(tx.Inputs)),
		Outputs: make([]CoinData, len(tx.Outputs)),
		Fee:     tx.Fee,
	}
	copy(newTx.Inputs, tx.Inputs)
	for i, out := range tx.Outputs {
		newTx.Outputs[i] = out
		newTx.Outputs[i].AdditionalData = append(HexBytes(nil), out.AdditionalData...)
	}
	newTx.Data = append(HexBytes(nil), tx.Data...)
	for _, cov := range tx.Covenants {
		newTx.Covenants = append(newTx.Covenants, append(HexBytes(nil), cov...))
	}
	for _, sig := range tx.Sigs {
		newTx.Sigs = append(newTx.Sigs, append(HexBytes(nil), sig...))
	}
	return newTx
}

// CheckWellFormed performs the context-free sanity checks every transaction
// must pass before it is worth signing or broadcasting.
func (tx *MsgTx) CheckWellFormed() error {
	if len(tx.Outputs) == 0 {
		return ErrNoOutputs
	}
	if len(tx.Inputs) > MaxTxInputs {
		return ErrTooManyInputs
	}
	if len(tx.Outputs) > MaxTxOutputs {
		return ErrTooManyOutputs
	}
	seen := make(map[CoinID]struct{}, len(tx.Inputs))
	for _, in := range tx.Inputs {
		if _, ok := seen[in]; ok {
			return ErrDuplicateInput
		}
		seen[in] = struct{}{}
	}
	for _, out := range tx.Outputs {
		if out.Value == 0 {
			return ErrZeroValueOutput
		}
	}
	return nil
}

// TotalOutputs sums the transaction's output values per denomination.  The
// fee is not included.
func (tx *MsgTx) TotalOutputs() map[Denom]Amount {
	sums := make(map[Denom]Amount)
	for _, out := range tx.Outputs {
		sums[out.Denom] += out.Value
	}
	return sums
}

func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func writeVarBytes(buf *bytes.Buffer, b []byte) {
	writeUint32(buf, uint32(len(b)))
	buf.Write(b)
}
