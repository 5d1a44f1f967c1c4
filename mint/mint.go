// Package mint holds the live signing keys of a currency and executes
// transfer requests: it validates them, asks the authorizer, blind-signs the
// requested blanks and has the issuer ledger record the transaction.
//
// Transfers are resolved lazily. A transfer that cannot complete is stored
// pending in a ledger.Queue and re-run on the next request or resume for the
// same transaction id; there is no background worker.
package mint

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"sync"
	"time"

	ec "github.com/bsv-blockchain/go-sdk/primitives/ec"
	"github.com/sirupsen/logrus"

	"github.com/locutus75/opencoin-historic/authorizer"
	"github.com/locutus75/opencoin-historic/blindkey"
	"github.com/locutus75/opencoin-historic/currency"
	"github.com/locutus75/opencoin-historic/ledger"
)

// DefaultKeyBits is the modulus size of mint keys when none is configured.
const DefaultKeyBits = 2048

// Recorder is the issuer ledger endpoint the mint reports to.
type Recorder interface {
	// RecordTransaction resolves rec at the ledger. It returns
	// ErrUnavailable when the issuer cannot answer yet.
	RecordTransaction(ctx context.Context, rec *ledger.Record) (*ledger.Record, error)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, rec *ledger.Record) (*ledger.Record, error)

// RecordTransaction implements Recorder.
func (f RecorderFunc) RecordTransaction(ctx context.Context, rec *ledger.Record) (*ledger.Record, error) {
	return f(ctx, rec)
}

// Config configures a Mint.
type Config struct {
	// Authority authorizes transfers. Nil approves everything.
	Authority authorizer.Authority

	// Recorder is the issuer ledger. It can also be set later with SetRecorder.
	Recorder Recorder

	// Queue keeps transfers between resume polls. Defaults to an in-memory ledger.
	Queue ledger.Queue

	// KeyBits is the modulus size for NewMintKeys. Defaults to DefaultKeyBits.
	KeyBits int

	Logger *logrus.Logger
	Now    func() time.Time
}

// Mint is the signing authority of one currency.
type Mint struct {
	keyMu    sync.RWMutex
	cdd      *currency.CDD
	staged   map[string]*blindkey.PrivateKey
	keys     map[string]*blindkey.PrivateKey
	certs    map[string]*currency.MintKeyCertificate
	current  map[string]string
	authKeys []*ec.PublicKey

	recMu    sync.RWMutex
	recorder Recorder

	authority authorizer.Authority
	queue     ledger.Queue
	keyBits   int
	logger    *logrus.Logger
	now       func() time.Time
	tids      keyedMutex
}

// New creates a mint without keys. SetCDD and NewMintKeys prepare it for
// signing.
func New(cfg Config) *Mint {
	m := &Mint{
		staged:    make(map[string]*blindkey.PrivateKey),
		keys:      make(map[string]*blindkey.PrivateKey),
		certs:     make(map[string]*currency.MintKeyCertificate),
		current:   make(map[string]string),
		recorder:  cfg.Recorder,
		authority: cfg.Authority,
		queue:     cfg.Queue,
		keyBits:   cfg.KeyBits,
		logger:    cfg.Logger,
		now:       cfg.Now,
	}
	if m.queue == nil {
		m.queue = ledger.NewMemLedger()
	}
	if m.keyBits == 0 {
		m.keyBits = DefaultKeyBits
	}
	if m.logger == nil {
		m.logger = logrus.New()
		m.logger.SetOutput(io.Discard)
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

func (m *Mint) log() *logrus.Entry {
	return m.logger.WithField("component", "mint")
}

// SetCDD sets the currency the mint signs for. The document must carry a
// valid self-signature.
func (m *Mint) SetCDD(cdd *currency.CDD) error {
	if cdd == nil {
		return fmt.Errorf("%w: cdd", ErrNilParam)
	}
	if !cdd.Verify() {
		return fmt.Errorf("%w: cdd signature", currency.ErrBadSignature)
	}
	m.keyMu.Lock()
	m.cdd = cdd
	m.keyMu.Unlock()
	return nil
}

// CDD returns the currency description in use.
func (m *Mint) CDD() *currency.CDD {
	m.keyMu.RLock()
	defer m.keyMu.RUnlock()
	return m.cdd
}

// SetRecorder replaces the issuer ledger endpoint.
func (m *Mint) SetRecorder(r Recorder) {
	m.recMu.Lock()
	m.recorder = r
	m.recMu.Unlock()
}

func (m *Mint) getRecorder() Recorder {
	m.recMu.RLock()
	defer m.recMu.RUnlock()
	return m.recorder
}

// AddAuthKey registers the public key of an authorizer whose approvals the
// mint accepts.
func (m *Mint) AddAuthKey(pub *ec.PublicKey) error {
	if pub == nil {
		return fmt.Errorf("%w: authorizer key", ErrNilParam)
	}
	m.keyMu.Lock()
	m.authKeys = append(m.authKeys, pub)
	m.keyMu.Unlock()
	return nil
}

// NewMintKeys generates one signing key per denomination of the currency.
// The keys stay staged until InstallCertificates activates them. bits of
// zero uses the configured size.
func (m *Mint) NewMintKeys(bits int) (map[string]*blindkey.PublicKey, error) {
	cdd := m.CDD()
	if cdd == nil {
		return nil, ErrNoCurrency
	}
	if bits == 0 {
		bits = m.keyBits
	}

	generated := make(map[string]*blindkey.PrivateKey, len(cdd.Denominations))
	out := make(map[string]*blindkey.PublicKey, len(cdd.Denominations))
	for _, d := range cdd.Denominations {
		k, err := blindkey.GenerateKey(bits)
		if err != nil {
			return nil, fmt.Errorf("mint: key for denomination %s: %w", d, err)
		}
		generated[k.Public().KeyID()] = k
		out[d] = k.Public()
	}

	m.keyMu.Lock()
	for id, k := range generated {
		m.staged[id] = k
	}
	m.keyMu.Unlock()

	m.log().WithField("count", len(out)).Info("mint keys staged")
	return out, nil
}

// InstallCertificates activates staged keys for which the issuer has signed
// a certificate. All certificates are checked before any is installed.
// Keys and certificates that are replaced stay available by key id so coins
// signed before the rotation keep verifying.
func (m *Mint) InstallCertificates(mkcs []*currency.MintKeyCertificate) error {
	m.keyMu.Lock()
	defer m.keyMu.Unlock()

	if m.cdd == nil {
		return ErrNoCurrency
	}
	for _, mkc := range mkcs {
		if err := mkc.CheckFor(m.cdd); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidCertificate, err)
		}
		if m.staged[mkc.KeyID] == nil && m.keys[mkc.KeyID] == nil {
			return fmt.Errorf("%w: key %s was not generated by this mint", ErrInvalidCertificate, mkc.KeyID)
		}
	}

	for _, mkc := range mkcs {
		if k, ok := m.staged[mkc.KeyID]; ok {
			m.keys[mkc.KeyID] = k
			delete(m.staged, mkc.KeyID)
		}
		m.certs[mkc.KeyID] = mkc
		m.current[mkc.Denomination] = mkc.KeyID
	}
	m.log().WithField("count", len(mkcs)).Info("mint key certificates installed")
	return nil
}

// SigningKeys returns the installed private keys, current and retired,
// ordered by key id.
func (m *Mint) SigningKeys() []*blindkey.PrivateKey {
	m.keyMu.RLock()
	defer m.keyMu.RUnlock()
	out := make([]*blindkey.PrivateKey, 0, len(m.keys))
	for _, id := range slices.Sorted(maps.Keys(m.keys)) {
		out = append(out, m.keys[id])
	}
	return out
}

// RestoreKeys brings back keys saved from an earlier run together with
// their certificates. Certificates are installed in order, so the current
// ones must come last.
func (m *Mint) RestoreKeys(keys []*blindkey.PrivateKey, mkcs []*currency.MintKeyCertificate) error {
	m.keyMu.Lock()
	for _, k := range keys {
		if k == nil {
			m.keyMu.Unlock()
			return fmt.Errorf("%w: signing key", ErrNilParam)
		}
		m.staged[k.Public().KeyID()] = k
	}
	m.keyMu.Unlock()
	return m.InstallCertificates(mkcs)
}

// Certificate returns the certificate of a key id, current or retired.
func (m *Mint) Certificate(keyID string) (*currency.MintKeyCertificate, error) {
	m.keyMu.RLock()
	defer m.keyMu.RUnlock()
	mkc, ok := m.certs[keyID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, keyID)
	}
	return mkc, nil
}

// CurrentCertificates returns the active certificate per denomination.
func (m *Mint) CurrentCertificates() map[string]*currency.MintKeyCertificate {
	m.keyMu.RLock()
	defer m.keyMu.RUnlock()
	out := make(map[string]*currency.MintKeyCertificate, len(m.current))
	for d, id := range m.current {
		out[d] = m.certs[id]
	}
	return out
}

// keyedMutex serializes work per transaction id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refLock
}

type refLock struct {
	mu   sync.Mutex
	refs int
}

func (k *keyedMutex) lock(key string) (unlock func()) {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refLock)
	}
	l, ok := k.locks[key]
	if !ok {
		l = &refLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
