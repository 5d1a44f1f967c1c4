// Package issuer is the root of trust of a currency. It owns the master key,
// publishes currency descriptions, certifies mint keys and keeps the ledger
// of spent serials that the mint reports every transfer to.
package issuer

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/locutus75/opencoin-historic/blindkey"
	"github.com/locutus75/opencoin-historic/currency"
	"github.com/locutus75/opencoin-historic/ledger"
	"github.com/locutus75/opencoin-historic/mint"
)

// Options configures an Issuer.
type Options struct {
	Logger *logrus.Logger
	Now    func() time.Time
}

// Issuer holds the master key, the published currency descriptions and every
// mint key certificate it has signed.
type Issuer struct {
	mu      sync.RWMutex
	master  *blindkey.PrivateKey
	cdds    []*currency.CDD
	mkcs    map[string]*currency.MintKeyCertificate
	current map[string]string // denomination -> key id

	ledger      ledger.Ledger
	unavailable atomic.Bool
	logger      *logrus.Logger
	now         func() time.Time
}

var _ mint.Recorder = (*Issuer)(nil)

// New creates an issuer recording transactions in l.
func New(l ledger.Ledger, opts Options) (*Issuer, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: ledger", ErrNilParam)
	}
	i := &Issuer{
		mkcs:    make(map[string]*currency.MintKeyCertificate),
		current: make(map[string]string),
		ledger:  l,
		logger:  opts.Logger,
		now:     opts.Now,
	}
	if i.logger == nil {
		i.logger = logrus.New()
		i.logger.SetOutput(io.Discard)
	}
	if i.now == nil {
		i.now = time.Now
	}
	return i, nil
}

func (i *Issuer) log() *logrus.Entry {
	return i.logger.WithField("component", "issuer")
}

// Ledger returns the ledger the issuer records transactions in.
func (i *Issuer) Ledger() ledger.Ledger { return i.ledger }

// Close closes the ledger.
func (i *Issuer) Close() error { return i.ledger.Close() }

// CreateMasterKeys generates the master key that signs currency descriptions
// and mint key certificates.
func (i *Issuer) CreateMasterKeys(bits int) error {
	key, err := blindkey.GenerateKey(bits)
	if err != nil {
		return fmt.Errorf("issuer: master key: %w", err)
	}
	i.mu.Lock()
	i.master = key
	i.mu.Unlock()
	i.log().WithField("key_id", key.Public().KeyID()).Info("master key created")
	return nil
}

// SetMasterKey installs an existing master key.
func (i *Issuer) SetMasterKey(key *blindkey.PrivateKey) error {
	if key == nil {
		return fmt.Errorf("%w: master key", ErrNilParam)
	}
	i.mu.Lock()
	i.master = key
	i.mu.Unlock()
	return nil
}

// MasterPublicKey returns the public master key, or nil before
// CreateMasterKeys.
func (i *Issuer) MasterPublicKey() *blindkey.PublicKey {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if i.master == nil {
		return nil
	}
	return i.master.Public()
}

// MakeCDD signs and publishes a new currency description. Earlier
// descriptions are superseded, never modified.
func (i *Issuer) MakeCDD(name, id string, denominations []string, mintLocation, issuerLocation string) (*currency.CDD, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.master == nil {
		return nil, ErrNoMasterKey
	}

	cdd := &currency.CDD{
		CurrencyName:          name,
		CurrencyID:            id,
		Denominations:         append([]string(nil), denominations...),
		MintServiceLocation:   mintLocation,
		IssuerServiceLocation: issuerLocation,
		MasterPublicKey:       i.master.Public(),
	}
	if err := cdd.Validate(); err != nil {
		return nil, err
	}
	if err := i.master.SignContainer(cdd); err != nil {
		return nil, fmt.Errorf("issuer: sign cdd: %w", err)
	}
	i.cdds = append(i.cdds, cdd)

	i.log().WithFields(logrus.Fields{
		"currency":      id,
		"denominations": len(denominations),
	}).Info("currency description published")
	return cdd, nil
}

// LatestCDD returns the most recently published currency description.
func (i *Issuer) LatestCDD() (*currency.CDD, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	if len(i.cdds) == 0 {
		return nil, ErrNoCDD
	}
	return i.cdds[len(i.cdds)-1], nil
}

// SignMintKeys certifies mint public keys, keyed by denomination, for the
// window [validFrom, validTo). A zero validTo leaves the window open. The
// certified keys become current for their denominations; certificates of
// earlier keys stay retrievable with MintKey.
func (i *Issuer) SignMintKeys(keys map[string]*blindkey.PublicKey, validFrom, validTo time.Time) ([]*currency.MintKeyCertificate, error) {
	if !validTo.IsZero() && !validTo.After(validFrom) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidValidity, validFrom, validTo)
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.master == nil {
		return nil, ErrNoMasterKey
	}
	if len(i.cdds) == 0 {
		return nil, ErrNoCDD
	}
	cdd := i.cdds[len(i.cdds)-1]

	denominations := make([]string, 0, len(keys))
	for d := range keys {
		denominations = append(denominations, d)
	}
	sort.Strings(denominations)

	mkcs := make([]*currency.MintKeyCertificate, 0, len(keys))
	for _, d := range denominations {
		pub := keys[d]
		if pub == nil {
			return nil, fmt.Errorf("%w: key for denomination %s", ErrNilParam, d)
		}
		if !cdd.HasDenomination(d) {
			return nil, fmt.Errorf("%w: %q", currency.ErrUnknownDenomination, d)
		}
		if err := pub.Validate(); err != nil {
			return nil, fmt.Errorf("issuer: mint key for %s: %w", d, err)
		}
		mkc := &currency.MintKeyCertificate{
			KeyID:        pub.KeyID(),
			CurrencyID:   cdd.CurrencyID,
			Denomination: d,
			PublicKey:    pub,
			ValidFrom:    validFrom,
			ValidTo:      validTo,
		}
		if err := i.master.SignContainer(mkc); err != nil {
			return nil, fmt.Errorf("issuer: sign mint key %s: %w", mkc.KeyID, err)
		}
		mkcs = append(mkcs, mkc)
	}

	for _, mkc := range mkcs {
		i.mkcs[mkc.KeyID] = mkc
		i.current[mkc.Denomination] = mkc.KeyID
	}
	i.log().WithField("count", len(mkcs)).Info("mint keys certified")
	return mkcs, nil
}

// CurrentMKCs returns the current certificate per denomination.
func (i *Issuer) CurrentMKCs() map[string]*currency.MintKeyCertificate {
	i.mu.RLock()
	defer i.mu.RUnlock()
	out := make(map[string]*currency.MintKeyCertificate, len(i.current))
	for d, id := range i.current {
		out[d] = i.mkcs[id]
	}
	return out
}

// FetchMintKeys returns the current certificates of the given denominations
// in the order asked, or of every denomination in currency order when none
// are given.
func (i *Issuer) FetchMintKeys(denominations []string) ([]*currency.MintKeyCertificate, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	if len(denominations) == 0 {
		if len(i.cdds) == 0 {
			return nil, ErrNoCDD
		}
		denominations = i.cdds[len(i.cdds)-1].Denominations
	}
	out := make([]*currency.MintKeyCertificate, 0, len(denominations))
	for _, d := range denominations {
		id, ok := i.current[d]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownDenomination, d)
		}
		out = append(out, i.mkcs[id])
	}
	return out, nil
}

// MintKey returns the certificate of a key id, current or not.
func (i *Issuer) MintKey(keyID string) (*currency.MintKeyCertificate, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	mkc, ok := i.mkcs[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, keyID)
	}
	return mkc, nil
}

// SetAvailable switches the ledger endpoint on or off. While off,
// RecordTransaction answers mint.ErrUnavailable and the mint delays its
// transfers.
func (i *Issuer) SetAvailable(ok bool) {
	i.unavailable.Store(!ok)
	i.log().WithField("available", ok).Info("ledger availability changed")
}

// RecordTransaction implements mint.Recorder.
func (i *Issuer) RecordTransaction(ctx context.Context, rec *ledger.Record) (*ledger.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", mint.ErrUnavailable, err)
	}
	if i.unavailable.Load() {
		return nil, mint.ErrUnavailable
	}
	out, err := i.ledger.TryRecord(rec)
	if err != nil {
		return nil, err
	}
	i.log().WithFields(logrus.Fields{
		"tid":     out.TransactionID,
		"status":  out.Status,
		"serials": len(out.Serials),
	}).Debug("transaction recorded")
	return out, nil
}

// CertifyMint generates fresh keys at m, certifies them for validity from
// now and installs the certificates. It also attaches the issuer as the
// mint's ledger. A validity of zero leaves the certificates open ended.
func (i *Issuer) CertifyMint(m *mint.Mint, validity time.Duration) ([]*currency.MintKeyCertificate, error) {
	cdd, err := i.LatestCDD()
	if err != nil {
		return nil, err
	}
	if err := m.SetCDD(cdd); err != nil {
		return nil, err
	}
	keys, err := m.NewMintKeys(0)
	if err != nil {
		return nil, err
	}
	from := i.now()
	var to time.Time
	if validity > 0 {
		to = from.Add(validity)
	}
	mkcs, err := i.SignMintKeys(keys, from, to)
	if err != nil {
		return nil, err
	}
	if err := m.InstallCertificates(mkcs); err != nil {
		return nil, err
	}
	m.SetRecorder(i)
	return mkcs, nil
}
