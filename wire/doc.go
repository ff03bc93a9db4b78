// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package wire implements the chain's primitive types and their canonical
serialization.

The types here mirror what the network itself validates: coins are identified
by the hash of their originating transaction plus an output index, outputs are
locked to a covenant hash, and transaction identity is the blake2b hash of the
transaction serialized without its signatures.  Higher level packages
(coinstore, wallet) build on these primitives but never re-implement the
serialization.
*/
package wire
