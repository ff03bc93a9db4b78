// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"runtime"

	"github.com/covsuite/covwallet/chain"
	"github.com/covsuite/covwallet/wallet"
	"github.com/covsuite/covwallet/wire"
)

func main() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	if err := walletMain(); err != nil {
		os.Exit(1)
	}
}

// walletMain is a work-around main function that is required since deferred
// functions (such as log flushing) are not called with calls to os.Exit.
// Instead, main runs this function and checks for a non-nil error, at which
// point any defers have already run, and if the error is non-nil, the
// program can be exited with an error exit status.
func walletMain() error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() {
		if logRotator != nil {
			logRotator.Close()
		}
	}()

	log.Infof("Version %s", version())

	manager, err := wallet.OpenManager(wallet.ManagerConfig{
		DataDir: cfg.walletDir,
		Network: cfg.network,
		Policy: wallet.Policy{
			FeePerByte:  wire.Amount(cfg.FeePerByte),
			ExpiryDelta: cfg.ExpiryDelta,
		},
	})
	if err != nil {
		log.Errorf("Cannot open wallet manager: %v", err)
		return err
	}
	defer manager.Close()

	if cfg.Create {
		return createWallet(cfg, manager)
	}

	interrupt := interruptListener()
	if interruptRequested(interrupt) {
		return nil
	}

	client := chain.NewHTTPClient(cfg.NodeAddr)
	syncer := chain.NewSyncer(chain.SyncerConfig{
		Client:       client,
		Targets:      manager.SyncTargets,
		TickInterval: cfg.SyncInterval,
	})
	syncer.Start()
	log.Infof("Synchronizing %d wallets against %s every %v",
		len(manager.Names()), cfg.NodeAddr, cfg.SyncInterval)

	<-interrupt
	syncer.Stop()
	log.Info("Shutdown complete")
	return nil
}
