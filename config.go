// Copyright (c) 2023 The covsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	flags "github.com/jessevdk/go-flags"

	"github.com/covsuite/covwallet/wire"
)

const (
	defaultConfigFilename = "covwallet.conf"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "covwallet.log"
	defaultWalletDirname  = "wallets"
	defaultSyncInterval   = 30 * time.Second
	defaultNodeAddr       = "http://localhost:21814"
)

var (
	defaultAppDataDir = btcutil.AppDataDir("covwallet", false)
	defaultConfigFile = filepath.Join(defaultAppDataDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(defaultAppDataDir, defaultLogDirname)
)

// config defines the configuration options for covwallet.
//
// See loadConfig for details on the configuration load process.
type config struct {
	// General application behavior
	ShowVersion bool   `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile  string `short:"C" long:"configfile" description:"Path to configuration file"`
	AppDataDir  string `short:"A" long:"appdata" description:"Application data directory for wallet config, logs, and wallet records"`
	TestNet     bool   `long:"testnet" description:"Use the test network (default mainnet)"`
	DebugLevel  string `short:"d" long:"debuglevel" description:"Logging level {trace, debug, info, warn, error, critical}"`
	LogDir      string `long:"logdir" description:"Directory to log output"`
	Create      bool   `long:"create" description:"Create a new wallet and exit"`
	WalletName  string `long:"walletname" description:"Name of the wallet to create (with --create)"`

	// Network client options
	NodeAddr     string        `short:"c" long:"nodeaddr" description:"Base URL of the network node's wallet-facing endpoints"`
	SyncInterval time.Duration `long:"syncinterval" description:"Interval between chain synchronization passes"`

	// Transaction policy options
	FeePerByte  uint64 `long:"feeperbyte" description:"Fee rate in base units per serialized byte"`
	ExpiryDelta uint64 `long:"expirydelta" description:"Blocks before an unconfirmed submission is abandoned"`

	// Derived fields, set during loadConfig.
	network   wire.NetID
	walletDir string
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(defaultAppDataDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// loadConfig initializes and parses the config using a config file and
// command line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
func loadConfig() (*config, []string, error) {
	// Default config.
	cfg := config{
		ConfigFile:   defaultConfigFile,
		AppDataDir:   defaultAppDataDir,
		DebugLevel:   defaultLogLevel,
		LogDir:       defaultLogDir,
		NodeAddr:     defaultNodeAddr,
		SyncInterval: defaultSyncInterval,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.
	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			os.Exit(0)
		}
		preParser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	if preCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, version())
		os.Exit(0)
	}

	// Load additional config from file.
	parser := flags.NewParser(&cfg, flags.Default)
	configFilePath := cleanAndExpandPath(preCfg.ConfigFile)
	err = flags.NewIniParser(parser).ParseFile(configFilePath)
	if err != nil {
		if _, ok := err.(*os.PathError); !ok {
			fmt.Fprintln(os.Stderr, err)
			parser.WriteHelp(os.Stderr)
			return nil, nil, err
		}
		// Missing config files are only an error when one was given
		// explicitly.
		if preCfg.ConfigFile != defaultConfigFile {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			return nil, nil, err
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			parser.WriteHelp(os.Stderr)
		}
		return nil, nil, err
	}

	// Choose the active network.
	cfg.network = wire.MainNet
	netDirname := "mainnet"
	if cfg.TestNet {
		cfg.network = wire.TestNet
		netDirname = "testnet"
	}

	// Expand and network-qualify the data and log paths so simultaneous
	// mainnet and testnet daemons do not share state.
	cfg.AppDataDir = cleanAndExpandPath(cfg.AppDataDir)
	cfg.LogDir = cleanAndExpandPath(cfg.LogDir)
	cfg.LogDir = filepath.Join(cfg.LogDir, netDirname)
	cfg.walletDir = filepath.Join(cfg.AppDataDir, netDirname,
		defaultWalletDirname)

	// Validate debug log level.
	if !validLogLevel(cfg.DebugLevel) {
		err := fmt.Errorf("the specified debug level [%v] is invalid",
			cfg.DebugLevel)
		fmt.Fprintln(os.Stderr, err)
		parser.WriteHelp(os.Stderr)
		return nil, nil, err
	}

	if cfg.SyncInterval <= 0 {
		err := fmt.Errorf("syncinterval must be positive")
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	// Initialize log rotation.  After the log rotation has been
	// initialized, the logger variables may be used.
	initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename))
	setLogLevels(cfg.DebugLevel)

	return &cfg, remainingArgs, nil
}
