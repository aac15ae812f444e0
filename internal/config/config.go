// Copyright (C) 2024 Creditor Corp. Group.
// See LICENSE for copying information.

// Package config loads etcher configuration from defaults, an optional config file and
// ETCHER_ prefixed environment variables.
package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/spf13/viper"

	"github.com/BoostyLabs/runelaunch/bitcoin"
)

const (
	// EnvPrefix is the prefix of environment variables that override config values.
	EnvPrefix = "ETCHER"
	// DefaultCommitConfirmations is the number of confirmations the commit needs before reveal.
	DefaultCommitConfirmations = 6
	// DefaultFeeRate is the fee rate in satoshi per 1000 virtual bytes used when a request has none.
	DefaultFeeRate = 20_000

	chainCodeSize = 32
)

var (
	// ErrKeysNotSet defines that the signer public keys are not fetched yet.
	ErrKeysNotSet = errors.New("signer keys are not set")
	// ErrKeysAlreadySet defines that the signer public keys may be set only once.
	ErrKeysAlreadySet = errors.New("signer keys are already set")
)

// Keys holds public key material of the remote signer.
type Keys struct {
	Schnorr   *btcec.PublicKey
	ECDSA     *btcec.PublicKey
	ChainCode []byte
}

// Config holds etcher configuration.
type Config struct {
	Network             bitcoin.Network
	KeyName             string
	Identity            []byte
	RetryInterval       time.Duration
	CommitConfirmations uint32
	DefaultFeeRate      int64 // in satoshi per 1000 vbytes.
	MaxPages            int

	ElectrumServer string
	ElectrumSSL    bool
	OrdURL         string
	StoragePath    string
	MetricsAddr    string
	LogLevel       string
	LogJSON        bool
	SignerSeed     []byte

	mu   sync.RWMutex
	keys *Keys
}

// KeyNameFor returns the signer key name used on the network.
func KeyNameFor(network bitcoin.Network) string {
	switch network {
	case bitcoin.NetworkMainnet:
		return "key_1"
	case bitcoin.NetworkTestnet:
		return "test_key_1"
	default:
		return "dfx_test_key"
	}
}

// RetryIntervalFor returns the reveal retry interval used on the network.
func RetryIntervalFor(network bitcoin.Network) time.Duration {
	if network == bitcoin.NetworkRegtest {
		return time.Minute
	}

	return time.Hour
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("network", string(bitcoin.NetworkRegtest))
	v.SetDefault("identity", "")
	v.SetDefault("commit_confirmations", DefaultCommitConfirmations)
	v.SetDefault("default_fee_rate", DefaultFeeRate)
	v.SetDefault("max_pages", 0)
	v.SetDefault("electrum.server", "127.0.0.1:50001")
	v.SetDefault("electrum.ssl", false)
	v.SetDefault("ord.url", "http://127.0.0.1:80")
	v.SetDefault("storage.path", "")
	v.SetDefault("metrics.addr", ":9090")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.json", false)
	v.SetDefault("signer.seed", "")
	v.SetDefault("signer.schnorr_public_key", "")
	v.SetDefault("signer.ecdsa_public_key", "")
	v.SetDefault("signer.chain_code", "")
}

// Load reads configuration. An empty path searches for etcher.yaml in the working directory
// and falls back to defaults when it is missing.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("etcher")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	network, err := bitcoin.ParseNetwork(v.GetString("network"))
	if err != nil {
		return nil, err
	}

	identity, err := hexValue(v, "identity")
	if err != nil {
		return nil, err
	}

	seed, err := hexValue(v, "signer.seed")
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Network:             network,
		KeyName:             KeyNameFor(network),
		Identity:            identity,
		RetryInterval:       RetryIntervalFor(network),
		CommitConfirmations: v.GetUint32("commit_confirmations"),
		DefaultFeeRate:      v.GetInt64("default_fee_rate"),
		MaxPages:            v.GetInt("max_pages"),
		ElectrumServer:      v.GetString("electrum.server"),
		ElectrumSSL:         v.GetBool("electrum.ssl"),
		OrdURL:              v.GetString("ord.url"),
		StoragePath:         v.GetString("storage.path"),
		MetricsAddr:         v.GetString("metrics.addr"),
		LogLevel:            v.GetString("log.level"),
		LogJSON:             v.GetBool("log.json"),
		SignerSeed:          seed,
	}
	if v.IsSet("key_name") {
		cfg.KeyName = v.GetString("key_name")
	}
	if v.IsSet("retry_interval") {
		cfg.RetryInterval = v.GetDuration("retry_interval")
	}
	if cfg.CommitConfirmations == 0 {
		return nil, errors.New("commit_confirmations must be positive")
	}
	if cfg.RetryInterval <= 0 {
		return nil, errors.New("retry_interval must be positive")
	}

	schnorrRaw, err := hexValue(v, "signer.schnorr_public_key")
	if err != nil {
		return nil, err
	}
	ecdsaRaw, err := hexValue(v, "signer.ecdsa_public_key")
	if err != nil {
		return nil, err
	}
	chainCode, err := hexValue(v, "signer.chain_code")
	if err != nil {
		return nil, err
	}
	if len(schnorrRaw) == 0 || len(ecdsaRaw) == 0 {
		return cfg, nil
	}

	keys, err := parseKeys(schnorrRaw, ecdsaRaw, chainCode)
	if err != nil {
		return nil, err
	}

	return cfg, cfg.SetKeys(keys)
}

// hexValue decodes hex string stored under key. Unquoted yaml digits are decoded as numbers
// and lose leading zeros, so only string values are accepted.
func hexValue(v *viper.Viper, key string) ([]byte, error) {
	value := v.Get(key)
	if value == nil {
		return nil, nil
	}

	str, ok := value.(string)
	if !ok {
		return nil, fmt.Errorf("invalid %s: hex value must be a quoted string, got %T", key, value)
	}

	raw, err := hex.DecodeString(str)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}

	return raw, nil
}

func parseKeys(schnorrRaw, ecdsaRaw, chainCode []byte) (Keys, error) {
	parse := func(name string, raw []byte) (*btcec.PublicKey, error) {
		key, err := btcec.ParsePubKey(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s public key: %w", name, err)
		}

		return key, nil
	}

	schnorrKey, err := parse("schnorr", schnorrRaw)
	if err != nil {
		return Keys{}, err
	}

	ecdsaKey, err := parse("ecdsa", ecdsaRaw)
	if err != nil {
		return Keys{}, err
	}

	if len(chainCode) != chainCodeSize {
		return Keys{}, fmt.Errorf("invalid chain code: want %d bytes, got %d", chainCodeSize, len(chainCode))
	}

	return Keys{Schnorr: schnorrKey, ECDSA: ecdsaKey, ChainCode: chainCode}, nil
}

// SetKeys stores signer public keys, keys may be set only once.
func (c *Config) SetKeys(keys Keys) error {
	if keys.Schnorr == nil || keys.ECDSA == nil {
		return errors.New("both schnorr and ecdsa public keys are required")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.keys != nil {
		return ErrKeysAlreadySet
	}

	c.keys = &keys

	return nil
}

// Keys returns signer public keys.
func (c *Config) Keys() (Keys, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.keys == nil {
		return Keys{}, ErrKeysNotSet
	}

	return *c.keys, nil
}
