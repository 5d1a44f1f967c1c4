package issuer

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/locutus75/opencoin-historic/authorizer"
	"github.com/locutus75/opencoin-historic/config"
	"github.com/locutus75/opencoin-historic/currency"
	"github.com/locutus75/opencoin-historic/ledger"
	"github.com/locutus75/opencoin-historic/mint"
	"github.com/locutus75/opencoin-historic/network"
	"github.com/locutus75/opencoin-historic/protocol"
)

// Endpoint serves an issuer and its mint as one network.IssuerService.
type Endpoint struct {
	Issuer *Issuer
	Mint   *mint.Mint

	keyring ledger.Keyring
}

var _ network.IssuerService = (*Endpoint)(nil)

// AskLatestCDD implements network.IssuerService.
func (e *Endpoint) AskLatestCDD(_ context.Context) (*currency.CDD, error) {
	return e.Issuer.LatestCDD()
}

// FetchMintKeys implements network.IssuerService.
func (e *Endpoint) FetchMintKeys(_ context.Context, denominations []string) ([]*currency.MintKeyCertificate, error) {
	return e.Issuer.FetchMintKeys(denominations)
}

// FetchMintKey implements network.IssuerService.
func (e *Endpoint) FetchMintKey(_ context.Context, keyID string) (*currency.MintKeyCertificate, error) {
	return e.Issuer.MintKey(keyID)
}

// RequestTransfer implements network.IssuerService.
func (e *Endpoint) RequestTransfer(ctx context.Context, req *protocol.TransferRequest) (*protocol.TransferResponse, error) {
	return e.Mint.RequestTransfer(ctx, req), nil
}

// ResumeTransfer implements network.IssuerService.
func (e *Endpoint) ResumeTransfer(ctx context.Context, transactionID string) (*protocol.TransferResponse, error) {
	return e.Mint.ResumeTransfer(ctx, transactionID), nil
}

// CertifyMint rotates the mint keys and, when the ledger keeps a keyring,
// saves the new key state there.
func (e *Endpoint) CertifyMint(validity time.Duration) ([]*currency.MintKeyCertificate, error) {
	mkcs, err := e.Issuer.CertifyMint(e.Mint, validity)
	if err != nil {
		return nil, err
	}
	if err := e.saveKeys(); err != nil {
		return nil, err
	}
	return mkcs, nil
}

func (e *Endpoint) saveKeys() error {
	if e.keyring == nil {
		return nil
	}
	if err := e.Issuer.SaveKeys(e.keyring); err != nil {
		return err
	}
	return saveMintKeys(e.keyring, e.Mint)
}

// Close closes the issuer ledger.
func (e *Endpoint) Close() error { return e.Issuer.Close() }

// ledgerFile is the bbolt file of the issuer ledger inside the data directory.
const ledgerFile = "issuer/ledger.db"

// OpenLedger opens the ledger backend selected by cfg.
func OpenLedger(cfg config.Config) (ledger.Ledger, error) {
	switch cfg.LedgerBackend {
	case config.BackendMemory:
		return ledger.NewMemLedger(), nil
	case "", config.BackendBolt:
		return ledger.OpenBoltLedger(filepath.Join(cfg.DataDir, filepath.FromSlash(ledgerFile)))
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.LedgerBackend)
	}
}

// Open creates an issuer on the ledger selected by cfg.
func Open(cfg config.Config, logger *logrus.Logger) (*Issuer, error) {
	l, err := OpenLedger(cfg)
	if err != nil {
		return nil, err
	}
	i, err := New(l, Options{Logger: logger})
	if err != nil {
		_ = l.Close()
		return nil, err
	}
	return i, nil
}

// OpenEndpoint sets up a complete currency from cfg: an issuer with a master
// key and currency description, and a mint with certified keys that reports
// to it. When the ledger also implements ledger.Queue the mint keeps its
// delayed transfers there. When it implements ledger.Keyring the key state
// is saved there on first start and restored on every later one, so coins
// and pending transfers survive a restart.
func OpenEndpoint(cfg config.Config, authority authorizer.Authority, logger *logrus.Logger) (*Endpoint, error) {
	i, err := Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	ep, err := setup(cfg, i, authority, logger)
	if err != nil {
		_ = i.Close()
		return nil, err
	}
	return ep, nil
}

func setup(cfg config.Config, i *Issuer, authority authorizer.Authority, logger *logrus.Logger) (*Endpoint, error) {
	mcfg := mint.Config{
		Authority: authority,
		KeyBits:   cfg.KeyBits,
		Logger:    logger,
	}
	if q, ok := i.Ledger().(ledger.Queue); ok {
		mcfg.Queue = q
	}
	m := mint.New(mcfg)
	if a, ok := authority.(*authorizer.Authorizer); ok {
		if err := m.AddAuthKey(a.PublicKey()); err != nil {
			return nil, err
		}
	}
	ep := &Endpoint{Issuer: i, Mint: m}

	if kr, ok := i.Ledger().(ledger.Keyring); ok {
		ep.keyring = kr
		restored, err := i.LoadKeys(kr)
		if err != nil {
			return nil, err
		}
		if restored {
			if err := i.restoreMint(kr, m); err != nil {
				return nil, err
			}
			return ep, nil
		}
	}

	if err := i.CreateMasterKeys(cfg.KeyBits); err != nil {
		return nil, err
	}
	if _, err := i.MakeCDD(cfg.CurrencyName, cfg.CurrencyID, cfg.Denominations, cfg.MintLocation, cfg.IssuerLocation); err != nil {
		return nil, err
	}
	if _, err := ep.CertifyMint(cfg.KeyValidity); err != nil {
		return nil, err
	}
	return ep, nil
}
