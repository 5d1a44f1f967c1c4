package wallet

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/locutus75/opencoin-historic/coin"
	"github.com/locutus75/opencoin-historic/currency"
	"github.com/locutus75/opencoin-historic/storage"
)

// AskLatestCDD fetches the current description of a currency from its
// issuer. The description must verify under its own master key and, once a
// description is stored, keep the same master key. changed reports whether
// the content differs from the stored one; only then is it replaced.
func (w *Wallet) AskLatestCDD(ctx context.Context, currencyID string) (cdd *currency.CDD, changed bool, err error) {
	svc, err := w.issuer(currencyID)
	if err != nil {
		return nil, false, err
	}
	fetched, err := svc.AskLatestCDD(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("wallet: ask latest cdd: %w", err)
	}
	if fetched == nil {
		return nil, false, fmt.Errorf("%w: empty answer", ErrUntrustedCDD)
	}
	if fetched.CurrencyID != currencyID {
		return nil, false, fmt.Errorf("%w: got currency %q", ErrUntrustedCDD, fetched.CurrencyID)
	}
	if err := fetched.Validate(); err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrUntrustedCDD, err)
	}
	if !fetched.Verify() {
		return nil, false, fmt.Errorf("%w: signature does not verify", ErrUntrustedCDD)
	}

	err = w.update(currencyID, func(s *storage.State) error {
		if s.CDD != nil {
			if !s.CDD.MasterPublicKey.Equal(fetched.MasterPublicKey) {
				return fmt.Errorf("%w: master key changed", ErrUntrustedCDD)
			}
			if s.CDD.Fingerprint() == fetched.Fingerprint() {
				cdd = s.CDD
				return nil
			}
		}
		s.CDD = fetched
		cdd, changed = fetched, true
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	if changed {
		w.log().WithFields(logrus.Fields{
			"currency":    currencyID,
			"fingerprint": cdd.Fingerprint(),
		}).Info("currency description updated")
	}
	return cdd, changed, nil
}

// FetchMintKeys fetches the current mint key certificates of denominations,
// all of them when none are given. Every certificate must verify against
// the stored currency description; verified ones are kept by key id.
func (w *Wallet) FetchMintKeys(ctx context.Context, currencyID string, denominations []string) ([]*currency.MintKeyCertificate, error) {
	s, err := w.State(currencyID)
	if err != nil {
		return nil, err
	}
	if s.CDD == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoCDD, currencyID)
	}
	svc, err := w.issuer(currencyID)
	if err != nil {
		return nil, err
	}

	mkcs, err := svc.FetchMintKeys(ctx, denominations)
	if err != nil {
		return nil, fmt.Errorf("wallet: fetch mint keys: %w", err)
	}
	for _, mkc := range mkcs {
		if err := mkc.CheckFor(s.CDD); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrUntrustedKey, err)
		}
	}

	err = w.update(currencyID, func(s *storage.State) error {
		for _, mkc := range mkcs {
			s.MintKeys[mkc.KeyID] = mkc
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mkcs, nil
}

// FetchMintKey fetches the certificate of one key id from the issuer,
// checks it against the stored currency description and stores it. Keys
// that were rotated out are still served, so coins minted under them can be
// verified.
func (w *Wallet) FetchMintKey(ctx context.Context, currencyID, keyID string) (*currency.MintKeyCertificate, error) {
	s, err := w.State(currencyID)
	if err != nil {
		return nil, err
	}
	if s.CDD == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoCDD, currencyID)
	}
	svc, err := w.issuer(currencyID)
	if err != nil {
		return nil, err
	}

	mkc, err := svc.FetchMintKey(ctx, keyID)
	if err != nil {
		return nil, fmt.Errorf("wallet: fetch mint key %s: %w", keyID, err)
	}
	if mkc == nil || mkc.KeyID != keyID {
		return nil, fmt.Errorf("%w: issuer answered with another key for %s", ErrUntrustedKey, keyID)
	}
	if err := mkc.CheckFor(s.CDD); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUntrustedKey, err)
	}

	err = w.update(currencyID, func(s *storage.State) error {
		s.MintKeys[mkc.KeyID] = mkc
		return nil
	})
	if err != nil {
		return nil, err
	}
	return mkc, nil
}

// currentMintKey picks the valid certificate of a denomination with the
// latest start of validity.
func (w *Wallet) currentMintKey(s *storage.State, denomination string) (*currency.MintKeyCertificate, error) {
	now := w.now()
	var best *currency.MintKeyCertificate
	for _, mkc := range s.MintKeys {
		if mkc.Denomination != denomination || !mkc.ValidAt(now) {
			continue
		}
		if best == nil || mkc.ValidFrom.After(best.ValidFrom) {
			best = mkc
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoMintKey, denomination)
	}
	return best, nil
}

// MakeBlank draws a blank of denomination under the current mint key.
func (w *Wallet) MakeBlank(currencyID, denomination string) (*coin.Coin, *currency.MintKeyCertificate, error) {
	s, err := w.State(currencyID)
	if err != nil {
		return nil, nil, err
	}
	return w.makeBlank(s, denomination)
}

func (w *Wallet) makeBlank(s *storage.State, denomination string) (*coin.Coin, *currency.MintKeyCertificate, error) {
	if s.CDD == nil {
		return nil, nil, fmt.Errorf("%w: %q", ErrNoCDD, s.CurrencyID)
	}
	mkc, err := w.currentMintKey(s, denomination)
	if err != nil {
		return nil, nil, err
	}
	blank, err := coin.NewBlank(s.CDD, mkc)
	if err != nil {
		return nil, nil, err
	}
	return blank, mkc, nil
}
