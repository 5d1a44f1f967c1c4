package wallet

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/locutus75/opencoin-historic/config"
	"github.com/locutus75/opencoin-historic/network"
	"github.com/locutus75/opencoin-historic/storage"
)

// walletDir is the wallet store directory inside the data directory.
const walletDir = "wallet"

// OpenStore opens the wallet store selected by cfg. A non-empty password
// seals every record.
func OpenStore(cfg config.Config, password string, logger *logrus.Logger) (storage.Store, error) {
	codec := storage.Codec{Compression: storage.CompressZstd, Password: password}
	dir := filepath.Join(cfg.DataDir, walletDir)
	switch cfg.WalletBackend {
	case config.BackendMemory:
		return storage.NewMemStore(), nil
	case config.BackendFile:
		return storage.NewFileStore(dir, codec)
	case "", config.BackendBadger:
		return storage.OpenBadgerStore(dir, codec, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.WalletBackend)
	}
}

// Open creates a wallet from cfg. The issuer of cfg.CurrencyID is reached
// over JSON-RPC at cfg.IssuerLocation unless OPENCOIN_URL overrides it.
func Open(cfg config.Config, password string, logger *logrus.Logger) (*Wallet, error) {
	store, err := OpenStore(cfg, password, logger)
	if err != nil {
		return nil, err
	}
	w, err := New(store, Options{Logger: logger})
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	client, err := issuerClient(cfg, logger)
	switch {
	case err == nil:
		w.AddIssuer(cfg.CurrencyID, client)
	case errors.Is(err, network.ErrInvalidLocation) && cfg.IssuerLocation == "":
		w.log().Warn("no issuer location configured")
	default:
		_ = store.Close()
		return nil, err
	}
	return w, nil
}

func issuerClient(cfg config.Config, logger *logrus.Logger) (*network.Client, error) {
	env := map[string]string{
		network.EnvURL:      os.Getenv(network.EnvURL),
		network.EnvUser:     os.Getenv(network.EnvUser),
		network.EnvPassword: os.Getenv(network.EnvPassword),
	}
	flags := &network.ClientConfig{Logger: logger, TraceMessages: cfg.TraceMessages}
	ccfg, err := network.ResolveConfig(flags, env, cfg.IssuerLocation)
	if err != nil {
		return nil, err
	}
	if ccfg.URL, err = network.ResolveLocation(ccfg.URL, nil); err != nil {
		return nil, err
	}
	return network.NewClient(*ccfg), nil
}
