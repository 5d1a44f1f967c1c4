package issuer

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/locutus75/opencoin-historic/blindkey"
	"github.com/locutus75/opencoin-historic/currency"
	"github.com/locutus75/opencoin-historic/ledger"
	"github.com/locutus75/opencoin-historic/mint"
)

// Keyring entry names.
const (
	keyringIssuer = "issuer"
	keyringMint   = "mint"
)

// issuerKeys is the stored form of the issuer's key state.
type issuerKeys struct {
	Master  *blindkey.PrivateKey           `json:"master"`
	CDDs    []*currency.CDD                `json:"cdds"`
	MKCs    []*currency.MintKeyCertificate `json:"mkcs"`
	Current map[string]string              `json:"current"`
}

// mintKeys is the stored form of a mint's signing keys.
type mintKeys struct {
	Keys []*blindkey.PrivateKey `json:"keys"`
}

// SaveKeys writes the master key, the published currency descriptions and
// all certificates to k.
func (i *Issuer) SaveKeys(k ledger.Keyring) error {
	i.mu.RLock()
	state := issuerKeys{
		Master:  i.master,
		CDDs:    append([]*currency.CDD(nil), i.cdds...),
		MKCs:    make([]*currency.MintKeyCertificate, 0, len(i.mkcs)),
		Current: make(map[string]string, len(i.current)),
	}
	for _, mkc := range i.mkcs {
		state.MKCs = append(state.MKCs, mkc)
	}
	for d, id := range i.current {
		state.Current[d] = id
	}
	i.mu.RUnlock()

	if state.Master == nil {
		return ErrNoMasterKey
	}
	slices.SortFunc(state.MKCs, func(a, b *currency.MintKeyCertificate) int {
		return strings.Compare(a.KeyID, b.KeyID)
	})
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("issuer: encode keys: %w", err)
	}
	return k.PutKeys(keyringIssuer, data)
}

// LoadKeys restores the state written by SaveKeys. It reports false when k
// holds no issuer keys.
func (i *Issuer) LoadKeys(k ledger.Keyring) (bool, error) {
	data, err := k.GetKeys(keyringIssuer)
	if errors.Is(err, ledger.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	var state issuerKeys
	if err := json.Unmarshal(data, &state); err != nil {
		return false, fmt.Errorf("issuer: decode keys: %w", err)
	}
	if state.Master == nil {
		return false, ErrNoMasterKey
	}
	if len(state.CDDs) == 0 {
		return false, ErrNoCDD
	}
	for _, cdd := range state.CDDs {
		if !cdd.Verify() {
			return false, fmt.Errorf("%w: stored cdd %s", currency.ErrBadSignature, cdd.CurrencyID)
		}
	}

	if state.Current == nil {
		state.Current = make(map[string]string)
	}
	mkcs := make(map[string]*currency.MintKeyCertificate, len(state.MKCs))
	for _, mkc := range state.MKCs {
		mkcs[mkc.KeyID] = mkc
	}
	for d, id := range state.Current {
		if mkcs[id] == nil {
			return false, fmt.Errorf("%w: current key %s for %s", ErrUnknownKey, id, d)
		}
	}

	i.mu.Lock()
	i.master = state.Master
	i.cdds = state.CDDs
	i.mkcs = mkcs
	i.current = state.Current
	i.mu.Unlock()

	i.log().WithFields(logrus.Fields{
		"key_id": state.Master.Public().KeyID(),
		"mkcs":   len(mkcs),
	}).Info("issuer keys restored")
	return true, nil
}

// certificates returns every certificate with the current ones last, the
// order mint.RestoreKeys expects.
func (i *Issuer) certificates() []*currency.MintKeyCertificate {
	i.mu.RLock()
	defer i.mu.RUnlock()
	current := make(map[string]bool, len(i.current))
	for _, id := range i.current {
		current[id] = true
	}
	var retired, active []*currency.MintKeyCertificate
	for _, id := range slices.Sorted(maps.Keys(i.mkcs)) {
		if current[id] {
			active = append(active, i.mkcs[id])
		} else {
			retired = append(retired, i.mkcs[id])
		}
	}
	return append(retired, active...)
}

// saveMintKeys writes the installed signing keys of m to k.
func saveMintKeys(k ledger.Keyring, m *mint.Mint) error {
	data, err := json.Marshal(mintKeys{Keys: m.SigningKeys()})
	if err != nil {
		return fmt.Errorf("issuer: encode mint keys: %w", err)
	}
	return k.PutKeys(keyringMint, data)
}

// restoreMint brings m back with the keys saved in k and the certificates
// the issuer holds for them.
func (i *Issuer) restoreMint(k ledger.Keyring, m *mint.Mint) error {
	data, err := k.GetKeys(keyringMint)
	if err != nil {
		return fmt.Errorf("issuer: mint keys: %w", err)
	}
	var state mintKeys
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("issuer: decode mint keys: %w", err)
	}
	cdd, err := i.LatestCDD()
	if err != nil {
		return err
	}
	if err := m.SetCDD(cdd); err != nil {
		return err
	}

	held := make(map[string]bool, len(state.Keys))
	for _, key := range state.Keys {
		if key != nil {
			held[key.Public().KeyID()] = true
		}
	}
	var mkcs []*currency.MintKeyCertificate
	for _, mkc := range i.certificates() {
		if held[mkc.KeyID] && mkc.CheckFor(cdd) == nil {
			mkcs = append(mkcs, mkc)
		}
	}
	if err := m.RestoreKeys(state.Keys, mkcs); err != nil {
		return err
	}
	m.SetRecorder(i)
	return nil
}
