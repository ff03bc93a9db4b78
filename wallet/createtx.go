// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/covsuite/covwallet/coinstore"
	"github.com/covsuite/covwallet/covscript"
	"github.com/covsuite/covwallet/internal/zero"
	"github.com/covsuite/covwallet/wire"
)

// PrepareTx builds a fully balanced transaction satisfying the request:
// for every denomination not exempted via Nobalance, input values equal
// output values plus the fee (the fee is always paid in the base
// denomination).  Coins are selected largest-first from the wallet's
// spendable set, surplus returns as change outputs appended after the
// caller's outputs, and the transaction is signed when a key is available
// (an explicit override, or the wallet's own key while unlocked) and
// returned unsigned otherwise.
//
// Preparation mutates no durable state.  Selected coins are leased for a
// short window so concurrent preparations cannot pick them, but nothing
// moves to pending-spent until the transaction is actually submitted.
func (w *Wallet) PrepareTx(req *PrepareTxRequest) (*wire.MsgTx, error) {
	if len(req.Outputs) == 0 {
		return nil, ErrEmptyOutputs
	}
	for _, out := range req.Outputs {
		if out.Value == 0 {
			return nil, wire.ErrZeroValueOutput
		}
	}
	signer, err := w.resolveSigner(req.SigningKey)
	if err != nil {
		return nil, err
	}
	if signer != nil {
		defer zero.PrivKey(signer)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrWalletClosed
	}

	kind := wire.TxKindNormal
	if req.Kind != nil {
		kind = *req.Kind
	}

	// The new-coin placeholder denomination is never balanced.
	nobalance := make(map[wire.Denom]bool, len(req.Nobalance)+1)
	for _, denom := range req.Nobalance {
		nobalance[denom] = true
	}
	nobalance[wire.DenomNewCoin] = true

	// Resolve the fixed inputs the caller insists on consuming.
	inputs := make([]wire.CoinID, 0, len(req.Inputs))
	fixed := make(map[wire.CoinID]bool, len(req.Inputs))
	have := make(map[wire.Denom]wire.Amount)
	for _, id := range req.Inputs {
		if fixed[id] {
			return nil, fmt.Errorf("%w: duplicate fixed input %v",
				ErrInvalidTransaction, id)
		}
		rec, ok := w.store.GetCoin(id)
		if !ok {
			return nil, fmt.Errorf("%w: fixed input %v is not spendable",
				ErrInvalidTransaction, id)
		}
		fixed[id] = true
		inputs = append(inputs, id)
		have[rec.Data.Denom] += rec.Data.Value
	}

	// Group the remaining spendable coins by denomination.  Spendable
	// already excludes pending-spent and leased coins and sorts
	// largest-first, so selection below is deterministic.
	avail := make(map[wire.Denom][]coinstore.Credit)
	for _, credit := range w.store.Spendable(time.Now()) {
		if fixed[credit.ID] {
			continue
		}
		avail[credit.Data.Denom] = append(avail[credit.Data.Denom], credit)
	}

	outTotal := make(map[wire.Denom]wire.Amount)
	for _, out := range req.Outputs {
		outTotal[out.Denom] += out.Value
	}

	// Selection and fee estimation iterate together: the fee depends on
	// the transaction size, which grows with every selected input, which
	// may in turn grow the fee past what the selected inputs cover.  The
	// size estimate always includes one prospective change output per
	// balanced denomination so a change output materializing at the end
	// cannot invalidate the fee.
	var selected []wire.CoinID
	for {
		fee := w.estimateFee(req, kind, inputs, have, outTotal, nobalance)
		denom, needed, short := firstDeficit(outTotal, have, fee, nobalance)
		if !short {
			tx := w.assemble(req, kind, inputs, have, outTotal, nobalance, fee)
			if err := tx.CheckWellFormed(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrInvalidTransaction, err)
			}
			if signer != nil {
				for i := range tx.Inputs {
					covscript.SignInput(tx, i, signer)
				}
			}
			if len(selected) > 0 {
				w.store.LeaseOutputs(selected,
					time.Now().Add(w.policy.LeaseDuration))
			}
			log.Debugf("Wallet %s prepared transaction %v (%d inputs, "+
				"%d outputs, fee %d)", w.name, tx.TxHash(),
				len(tx.Inputs), len(tx.Outputs), tx.Fee)
			return tx, nil
		}

		coins := avail[denom]
		if len(coins) == 0 {
			return nil, &InsufficientFundsError{
				Denom:     denom,
				Needed:    needed,
				Available: have[denom],
			}
		}
		next := coins[0]
		avail[denom] = coins[1:]
		inputs = append(inputs, next.ID)
		selected = append(selected, next.ID)
		have[next.Data.Denom] += next.Data.Value
	}
}

// resolveSigner picks the key that will sign the prepared transaction: an
// explicit hex-seed override if the request carries one, the wallet's own
// key if unlocked, or nil for an unsigned result.
func (w *Wallet) resolveSigner(override string) (ed25519.PrivateKey, error) {
	if override != "" {
		seed, err := hex.DecodeString(override)
		if err != nil || len(seed) != ed25519.SeedSize {
			return nil, ErrBadSeed
		}
		priv := ed25519.NewKeyFromSeed(seed)
		zero.Bytes(seed)
		return priv, nil
	}
	key, err := w.vault.SignerKey()
	if err != nil {
		return nil, nil
	}
	return key, nil
}

// firstDeficit returns the lowest balanced denomination whose inputs do not
// yet cover outputs plus fee, together with the required value.
func firstDeficit(outTotal, have map[wire.Denom]wire.Amount, fee wire.Amount,
	nobalance map[wire.Denom]bool) (wire.Denom, wire.Amount, bool) {

	for _, denom := range balancedDenoms(outTotal, have, fee, nobalance) {
		needed := outTotal[denom]
		if denom == wire.DenomBase {
			needed += fee
		}
		if have[denom] < needed {
			return denom, needed, true
		}
	}
	return wire.Denom{}, 0, false
}

// balancedDenoms returns, in stable order, every denomination that value
// conservation applies to: those with desired outputs or contributed
// inputs, plus the base denomination whenever a fee is due.
func balancedDenoms(outTotal, have map[wire.Denom]wire.Amount, fee wire.Amount,
	nobalance map[wire.Denom]bool) []wire.Denom {

	seen := make(map[wire.Denom]bool, len(outTotal)+len(have)+1)
	var denoms []wire.Denom
	add := func(denom wire.Denom) {
		if !seen[denom] && !nobalance[denom] {
			seen[denom] = true
			denoms = append(denoms, denom)
		}
	}
	for denom := range outTotal {
		add(denom)
	}
	for denom := range have {
		add(denom)
	}
	if fee > 0 {
		add(wire.DenomBase)
	}
	sort.Slice(denoms, func(i, j int) bool {
		return bytes.Compare(denoms[i][:], denoms[j][:]) < 0
	})
	return denoms
}

// estimateFee prices the transaction at its current shape, assuming one
// change output per balanced denomination and one signature per input.
func (w *Wallet) estimateFee(req *PrepareTxRequest, kind wire.TxKind,
	inputs []wire.CoinID, have, outTotal map[wire.Denom]wire.Amount,
	nobalance map[wire.Denom]bool) wire.Amount {

	tx := &wire.MsgTx{
		Kind:      kind,
		Inputs:    inputs,
		Outputs:   append([]wire.CoinData(nil), req.Outputs...),
		Data:      req.Data,
		Covenants: w.covenantsFor(req, true),
	}
	for _, denom := range balancedDenoms(outTotal, have, 1, nobalance) {
		tx.AddOutput(wire.CoinData{Covhash: w.covhash, Value: 1, Denom: denom})
	}

	size := tx.SerializeSizeNoSigs() + 4 +
		len(tx.Inputs)*(4+wire.SigSize) + int(req.FeeBallast)
	return w.policy.FeePerByte * wire.Amount(size)
}

// assemble builds the final transaction for a selection that covers every
// balanced denomination: caller outputs first, then one change output per
// denomination with surplus, addressed back to this wallet.
func (w *Wallet) assemble(req *PrepareTxRequest, kind wire.TxKind,
	inputs []wire.CoinID, have, outTotal map[wire.Denom]wire.Amount,
	nobalance map[wire.Denom]bool, fee wire.Amount) *wire.MsgTx {

	tx := &wire.MsgTx{
		Kind:      kind,
		Inputs:    append([]wire.CoinID(nil), inputs...),
		Outputs:   append([]wire.CoinData(nil), req.Outputs...),
		Fee:       fee,
		Data:      req.Data,
		Covenants: w.covenantsFor(req, len(inputs) > 0),
	}
	for _, denom := range balancedDenoms(outTotal, have, fee, nobalance) {
		needed := outTotal[denom]
		if denom == wire.DenomBase {
			needed += fee
		}
		if surplus := have[denom] - needed; surplus > 0 {
			tx.AddOutput(wire.CoinData{
				Covhash: w.covhash,
				Value:   surplus,
				Denom:   denom,
			})
		}
	}
	return tx
}

// covenantsFor returns the covenant scripts the transaction carries: the
// caller's extras plus, when the wallet contributes inputs, its own spend
// covenant.
func (w *Wallet) covenantsFor(req *PrepareTxRequest, withOwn bool) []wire.HexBytes {
	covenants := append([]wire.HexBytes(nil), req.Covenants...)
	if !withOwn {
		return covenants
	}
	for _, cov := range covenants {
		if bytes.Equal(cov, w.script) {
			return covenants
		}
	}
	return append(covenants, wire.HexBytes(w.script))
}
