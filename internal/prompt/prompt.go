// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package prompt provides the interactive prompts used during wallet
// creation.
package prompt

import (
	"bufio"
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// ProvidePassphrase prompts for the passphrase protecting a new wallet's
// key.  An empty passphrase (confirmed) selects cleartext mode.
func ProvidePassphrase() ([]byte, error) {
	for {
		fmt.Print("Enter passphrase for the new wallet (empty for none): ")
		pass, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return nil, err
		}
		fmt.Print("\n")
		pass = bytes.TrimSpace(pass)

		fmt.Print("Confirm passphrase: ")
		confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err != nil {
			return nil, err
		}
		fmt.Print("\n")
		confirm = bytes.TrimSpace(confirm)

		if !bytes.Equal(pass, confirm) {
			fmt.Println("The entered passphrases do not match.")
			continue
		}
		if len(pass) == 0 {
			return nil, nil
		}
		return pass, nil
	}
}

// ProvideSeed prompts for an existing key seed to import.  An empty line
// means no import: a fresh key will be generated instead.
func ProvideSeed(reader *bufio.Reader) ([]byte, error) {
	for {
		fmt.Print("Enter existing key seed to import (hex, empty to " +
			"generate a new key): ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(strings.ToLower(line))
		if line == "" {
			return nil, nil
		}

		seed, err := hex.DecodeString(line)
		if err != nil || len(seed) != ed25519.SeedSize {
			fmt.Printf("Invalid seed specified.  Must be a hexadecimal "+
				"value of exactly %d bytes.\n", ed25519.SeedSize)
			continue
		}
		return seed, nil
	}
}

// ProvideName prompts for the new wallet's name.
func ProvideName(reader *bufio.Reader) (string, error) {
	fmt.Print("Enter a name for the new wallet: ")
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
