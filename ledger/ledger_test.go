package ledger

import (
	"fmt"
	"math/big"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type ledgerImpl interface {
	Ledger
	Queue
}

// backends returns a fresh instance of every implementation.
func backends(t *testing.T) map[string]ledgerImpl {
	t.Helper()
	bolt, err := OpenBoltLedger(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = bolt.Close() })

	return map[string]ledgerImpl{
		"mem":  NewMemLedger(),
		"bolt": bolt,
	}
}

func forEachBackend(t *testing.T, fn func(t *testing.T, l ledgerImpl)) {
	for name, l := range backends(t) {
		t.Run(name, func(t *testing.T) { fn(t, l) })
	}
}

func TestTryRecord_Accept(t *testing.T) {
	forEachBackend(t, func(t *testing.T, l ledgerImpl) {
		rec, err := l.TryRecord(&Record{
			TransactionID: "tx1",
			Direction:     DirectionRedeem,
			Serials:       []string{"aa", "bb"},
			Target:        "foo",
		})
		require.NoError(t, err)
		assert.Equal(t, StatusAccepted, rec.Status)
		assert.False(t, rec.CreatedAt.IsZero())

		for _, s := range []string{"aa", "bb"} {
			spent, err := l.IsSpent(s)
			require.NoError(t, err)
			assert.True(t, spent, s)
		}
		spent, err := l.IsSpent("cc")
		require.NoError(t, err)
		assert.False(t, spent)

		got, err := l.Get("tx1")
		require.NoError(t, err)
		assert.Equal(t, StatusAccepted, got.Status)
		assert.Equal(t, []string{"aa", "bb"}, got.Serials)
		assert.Equal(t, "foo", got.Target)
		assert.Equal(t, DirectionRedeem, got.Direction)
	})
}

func TestTryRecord_FirstWriterWins(t *testing.T) {
	forEachBackend(t, func(t *testing.T, l ledgerImpl) {
		first, err := l.TryRecord(&Record{TransactionID: "tx1", Serials: []string{"aa"}, Issued: 5})
		require.NoError(t, err)
		require.Equal(t, StatusAccepted, first.Status)

		again, err := l.TryRecord(&Record{TransactionID: "tx1", Serials: []string{"aa"}, Issued: 5})
		require.NoError(t, err)
		assert.Equal(t, StatusAccepted, again.Status, "replaying an accepted id returns the stored record")
		assert.Equal(t, first.CreatedAt.Unix(), again.CreatedAt.Unix())

		other, err := l.TryRecord(&Record{TransactionID: "tx1", Serials: []string{"zz"}, Issued: 50})
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, other.Status, "a different payload under the same id is refused")
		assert.Equal(t, []string{"zz"}, other.Serials)

		spent, err := l.IsSpent("zz")
		require.NoError(t, err)
		assert.False(t, spent)

		stored, err := l.Get("tx1")
		require.NoError(t, err)
		assert.Equal(t, StatusAccepted, stored.Status)
		assert.Equal(t, []string{"aa"}, stored.Serials)
		assert.Equal(t, uint64(5), stored.Issued)
	})
}

func TestTryRecord_ReusedIDCannotSpendSerial(t *testing.T) {
	forEachBackend(t, func(t *testing.T, l ledgerImpl) {
		first, err := l.TryRecord(&Record{TransactionID: "r", Direction: DirectionRedeem, Serials: []string{"aa"}})
		require.NoError(t, err)
		require.Equal(t, StatusAccepted, first.Status)

		reused, err := l.TryRecord(&Record{TransactionID: "r", Direction: DirectionRedeem, Serials: []string{"bb"}})
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, reused.Status)

		// bb was never spent, so exactly one later transaction may take it.
		fresh, err := l.TryRecord(&Record{TransactionID: "r2", Direction: DirectionRedeem, Serials: []string{"bb"}})
		require.NoError(t, err)
		assert.Equal(t, StatusAccepted, fresh.Status)
		spent, err := l.IsSpent("bb")
		require.NoError(t, err)
		assert.True(t, spent)

		again, err := l.TryRecord(&Record{TransactionID: "r3", Direction: DirectionRedeem, Serials: []string{"bb"}})
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, again.Status)
	})
}

func TestTryRecord_DirectionPartOfIdentity(t *testing.T) {
	forEachBackend(t, func(t *testing.T, l ledgerImpl) {
		_, err := l.TryRecord(&Record{TransactionID: "x", Direction: DirectionIssue, Issued: 5})
		require.NoError(t, err)
		rec, err := l.TryRecord(&Record{TransactionID: "x", Direction: DirectionRedeem, Issued: 5})
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, rec.Status)
	})
}

func TestTryRecord_DoubleSpend(t *testing.T) {
	forEachBackend(t, func(t *testing.T, l ledgerImpl) {
		_, err := l.TryRecord(&Record{TransactionID: "tx1", Serials: []string{"aa"}})
		require.NoError(t, err)

		rec, err := l.TryRecord(&Record{TransactionID: "tx2", Serials: []string{"bb", "aa"}})
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, rec.Status)
		assert.Contains(t, rec.Reason, "aa")

		spent, err := l.IsSpent("bb")
		require.NoError(t, err)
		assert.False(t, spent, "rejected transaction must not mark any serial")

		// The original accepted record is untouched.
		orig, err := l.Get("tx1")
		require.NoError(t, err)
		assert.Equal(t, StatusAccepted, orig.Status)

		// The rejection is terminal for tx2.
		again, err := l.TryRecord(&Record{TransactionID: "tx2", Serials: []string{"bb"}})
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, again.Status)
	})
}

func TestTryRecord_RepeatedSerialInRequest(t *testing.T) {
	forEachBackend(t, func(t *testing.T, l ledgerImpl) {
		rec, err := l.TryRecord(&Record{TransactionID: "tx1", Serials: []string{"aa", "aa"}})
		require.NoError(t, err)
		assert.Equal(t, StatusRejected, rec.Status)

		spent, err := l.IsSpent("aa")
		require.NoError(t, err)
		assert.False(t, spent)
	})
}

func TestTryRecord_IssueWithoutSerials(t *testing.T) {
	forEachBackend(t, func(t *testing.T, l ledgerImpl) {
		rec, err := l.TryRecord(&Record{TransactionID: "mint", Direction: DirectionIssue, Issued: 5})
		require.NoError(t, err)
		assert.Equal(t, StatusAccepted, rec.Status)
		assert.Equal(t, uint64(5), rec.Issued)
	})
}

func TestTryRecord_Invalid(t *testing.T) {
	forEachBackend(t, func(t *testing.T, l ledgerImpl) {
		_, err := l.TryRecord(nil)
		assert.ErrorIs(t, err, ErrNilParam)

		_, err = l.TryRecord(&Record{})
		assert.ErrorIs(t, err, ErrInvalidRecord)

		_, err = l.Get("missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestTryRecord_CallerCopyIsolated(t *testing.T) {
	forEachBackend(t, func(t *testing.T, l ledgerImpl) {
		in := &Record{TransactionID: "tx1", Serials: []string{"aa"}}
		out, err := l.TryRecord(in)
		require.NoError(t, err)

		in.Serials[0] = "mutated"
		out.Serials[0] = "mutated"

		got, err := l.Get("tx1")
		require.NoError(t, err)
		assert.Equal(t, []string{"aa"}, got.Serials)
	})
}

func TestTryRecord_ConcurrentOverlap(t *testing.T) {
	forEachBackend(t, func(t *testing.T, l ledgerImpl) {
		const workers = 16
		var wg sync.WaitGroup
		results := make([]*Record, workers)
		errs := make([]error, workers)

		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = l.TryRecord(&Record{
					TransactionID: fmt.Sprintf("tx%d", i),
					Serials:       []string{fmt.Sprintf("own%d", i), "shared"},
				})
			}(i)
		}
		wg.Wait()

		accepted := 0
		for i := 0; i < workers; i++ {
			require.NoError(t, errs[i])
			if results[i].Status == StatusAccepted {
				accepted++
				continue
			}
			spent, err := l.IsSpent(fmt.Sprintf("own%d", i))
			require.NoError(t, err)
			assert.False(t, spent, "no partial credit for rejected tx%d", i)
		}
		assert.Equal(t, 1, accepted)
	})
}

func TestTransfers(t *testing.T) {
	forEachBackend(t, func(t *testing.T, l ledgerImpl) {
		_, err := l.GetTransfer("tx1")
		assert.ErrorIs(t, err, ErrNotFound)

		require.NoError(t, l.PutTransfer(&Transfer{
			TransactionID: "tx1",
			Status:        StatusPending,
			Request:       []byte("request"),
		}))
		got, err := l.GetTransfer("tx1")
		require.NoError(t, err)
		assert.Equal(t, StatusPending, got.Status)
		assert.Equal(t, []byte("request"), got.Request)
		assert.False(t, got.UpdatedAt.IsZero())

		require.NoError(t, l.PutTransfer(&Transfer{
			TransactionID: "tx1",
			Status:        StatusAccepted,
			Request:       []byte("request"),
			Signatures:    []*big.Int{big.NewInt(7), big.NewInt(11)},
		}))
		got, err = l.GetTransfer("tx1")
		require.NoError(t, err)
		assert.Equal(t, StatusAccepted, got.Status)
		require.Len(t, got.Signatures, 2)
		assert.Equal(t, int64(11), got.Signatures[1].Int64())

		assert.ErrorIs(t, l.PutTransfer(nil), ErrNilParam)
		assert.ErrorIs(t, l.PutTransfer(&Transfer{}), ErrInvalidRecord)
	})
}

func TestMemLedger_SpentSerialsOrdered(t *testing.T) {
	l := NewMemLedger()
	_, err := l.TryRecord(&Record{TransactionID: "a", Serials: []string{"cc", "aa"}})
	require.NoError(t, err)
	_, err = l.TryRecord(&Record{TransactionID: "b", Serials: []string{"bb"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"aa", "bb", "cc"}, l.SpentSerials())
}

func TestMemLedger_Closed(t *testing.T) {
	l := NewMemLedger()
	require.NoError(t, l.Close())

	_, err := l.TryRecord(&Record{TransactionID: "a"})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = l.IsSpent("a")
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, l.PutTransfer(&Transfer{TransactionID: "a"}), ErrClosed)
}

func TestBoltLedger_Durable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "ledger.db")

	l, err := OpenBoltLedger(path)
	require.NoError(t, err)
	_, err = l.TryRecord(&Record{TransactionID: "tx1", Serials: []string{"aa"}})
	require.NoError(t, err)
	require.NoError(t, l.PutTransfer(&Transfer{
		TransactionID: "tx2",
		Status:        StatusPending,
		Request:       []byte("pending request"),
	}))
	require.NoError(t, l.Close())

	l, err = OpenBoltLedger(path)
	require.NoError(t, err)
	defer l.Close()

	spent, err := l.IsSpent("aa")
	require.NoError(t, err)
	assert.True(t, spent)

	pending, err := l.GetTransfer("tx2")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, pending.Status)
	assert.Equal(t, []byte("pending request"), pending.Request)

	rec, err := l.TryRecord(&Record{TransactionID: "tx3", Serials: []string{"aa"}})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rec.Status, "spent serials survive a restart")
}

func TestKeyring(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys.db")
	bolt, err := OpenBoltLedger(path)
	require.NoError(t, err)

	for name, k := range map[string]Keyring{"mem": NewMemLedger(), "bolt": bolt} {
		t.Run(name, func(t *testing.T) {
			_, err := k.GetKeys("issuer")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, k.PutKeys("issuer", []byte("first")))
			require.NoError(t, k.PutKeys("issuer", []byte("second")))
			got, err := k.GetKeys("issuer")
			require.NoError(t, err)
			assert.Equal(t, []byte("second"), got)
		})
	}

	require.NoError(t, bolt.Close())
	bolt, err = OpenBoltLedger(path)
	require.NoError(t, err)
	defer bolt.Close()
	got, err := bolt.GetKeys("issuer")
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got, "keys survive a restart")
}
