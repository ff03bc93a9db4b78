// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/covsuite/covwallet/internal/prompt"
	"github.com/covsuite/covwallet/internal/zero"
	"github.com/covsuite/covwallet/wallet"
)

// createWallet interactively creates a new wallet and persists it, printing
// the resulting address.  The daemon exits afterwards; the wallet is served
// on the next regular start.
func createWallet(cfg *config, manager *wallet.Manager) error {
	reader := bufio.NewReader(os.Stdin)

	name := cfg.WalletName
	if name == "" {
		var err error
		name, err = prompt.ProvideName(reader)
		if err != nil {
			return err
		}
	}

	passphrase, err := prompt.ProvidePassphrase()
	if err != nil {
		return err
	}
	defer zero.Bytes(passphrase)

	seed, err := prompt.ProvideSeed(reader)
	if err != nil {
		return err
	}
	defer zero.Bytes(seed)

	w, err := manager.Create(name, passphrase, seed)
	if err != nil {
		return err
	}

	if len(passphrase) == 0 {
		fmt.Println("Warning: no passphrase given, the wallet key is " +
			"stored in cleartext.")
	}
	fmt.Printf("Wallet %q created on %v with address %s\n",
		w.Name(), w.Network(), w.Address())
	return nil
}
