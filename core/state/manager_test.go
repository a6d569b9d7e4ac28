package state

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"creditguild/storage"
)

type sampleRecord struct {
	Name   string
	Amount *big.Int
	When   uint64
}

func TestTxnCommitMakesWritesVisible(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)

	txn := mgr.Begin()
	require.NoError(t, txn.KVPut([]byte("record"), sampleRecord{Name: "a", Amount: big.NewInt(42), When: 7}))

	var inFlight sampleRecord
	ok, err := txn.KVGet([]byte("record"), &inFlight)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "a", inFlight.Name)

	// Not yet visible to a second transaction.
	other := mgr.Begin()
	ok, err = other.KVGet([]byte("record"), nil)
	require.NoError(t, err)
	require.False(t, ok)
	other.Discard()

	require.NoError(t, txn.Commit())

	reader := mgr.Begin()
	defer reader.Discard()
	var stored sampleRecord
	ok, err = reader.KVGet([]byte("record"), &stored)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0, stored.Amount.Cmp(big.NewInt(42)))
	require.Equal(t, uint64(7), stored.When)
}

func TestTxnDiscardLeavesDatabaseUntouched(t *testing.T) {
	db := storage.NewMemDB()
	mgr := NewManager(db)

	seed := mgr.Begin()
	require.NoError(t, seed.KVPut([]byte("keep"), uint64(1)))
	require.NoError(t, seed.Commit())
	before := db.Len()

	txn := mgr.Begin()
	require.NoError(t, txn.KVPut([]byte("new"), uint64(2)))
	require.NoError(t, txn.KVDelete([]byte("keep")))
	ok, err := txn.KVGet([]byte("keep"), nil)
	require.NoError(t, err)
	require.False(t, ok)
	txn.Discard()

	require.Equal(t, before, db.Len())
	check := mgr.Begin()
	defer check.Discard()
	var value uint64
	ok, err = check.KVGet([]byte("keep"), &value)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(1), value)
}

func TestTxnRejectsUseAfterCommit(t *testing.T) {
	txn := NewManager(storage.NewMemDB()).Begin()
	require.NoError(t, txn.Commit())
	require.ErrorIs(t, txn.KVPut([]byte("k"), uint64(1)), errTxnClosed)
	require.ErrorIs(t, txn.Commit(), errTxnClosed)
	txn.Discard()
}

func TestKVAppendDeduplicates(t *testing.T) {
	txn := NewManager(storage.NewMemDB()).Begin()
	require.NoError(t, txn.KVAppend([]byte("index"), []byte{1}))
	require.NoError(t, txn.KVAppend([]byte("index"), []byte{2}))
	require.NoError(t, txn.KVAppend([]byte("index"), []byte{1}))

	var list [][]byte
	require.NoError(t, txn.KVGetList([]byte("index"), &list))
	require.Equal(t, [][]byte{{1}, {2}}, list)

	var empty [][]byte
	require.NoError(t, txn.KVGetList([]byte("absent"), &empty))
	require.NotNil(t, empty)
	require.Len(t, empty, 0)
}

func TestRoles(t *testing.T) {
	txn := NewManager(storage.NewMemDB()).Begin()
	alice := []byte("alice-address-000000")
	bob := []byte("bob-address-00000000")

	require.False(t, txn.HasRole("governor", alice))
	require.NoError(t, txn.SetRole("governor", bob))
	require.NoError(t, txn.SetRole("governor", alice))
	require.NoError(t, txn.SetRole("governor", alice))
	require.True(t, txn.HasRole("governor", alice))

	members, err := txn.RoleMembers("governor")
	require.NoError(t, err)
	require.Len(t, members, 2)
	require.Equal(t, alice, members[0])

	require.NoError(t, txn.RevokeRole("governor", alice))
	require.False(t, txn.HasRole("governor", alice))
	require.True(t, txn.HasRole("governor", bob))
	require.Error(t, txn.SetRole(" ", alice))
}
