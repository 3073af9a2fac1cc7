package merkletree

import (
	"testing"

	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

func testAccount(addrByte byte, balance uint64) *externalapi.Account {
	acc := externalapi.NewAccount(0, externalapi.BytesToAddress([]byte{addrByte}))
	acc.SetBalance(1, externalapi.AmountFromUint64(balance))
	return acc
}

func TestRootHashDeterministicRegardlessOfInsertionOrder(t *testing.T) {
	t1 := New()
	t1.Insert(0, testAccount(0x07, 1000))
	t1.Insert(1, testAccount(0x08, 40))
	root1 := t1.RootHash()

	t2 := New()
	t2.Insert(1, testAccount(0x08, 40))
	t2.Insert(0, testAccount(0x07, 1000))
	root2 := t2.RootHash()

	if root1 != root2 {
		t.Fatalf("root hash depends on insertion order: %s != %s", root1, root2)
	}
}

func TestInsertAfterRemoveMatchesRemoveThenInsert(t *testing.T) {
	acc := testAccount(0x07, 1000)

	a := New()
	a.Insert(0, testAccount(0x01, 1))
	a.RootHash()
	a.Remove(0)
	a.Insert(0, acc)
	rootA := a.RootHash()

	b := New()
	b.Insert(0, testAccount(0x01, 1))
	b.RootHash()
	b.Remove(0)
	b.Insert(0, acc)
	rootB := b.RootHash()

	if rootA != rootB {
		t.Fatalf("insert-after-remove diverged: %s != %s", rootA, rootB)
	}
}

func TestRootChangesOnMutation(t *testing.T) {
	tree := New()
	emptyRoot := tree.RootHash()

	tree.Insert(0, testAccount(0x07, 1000))
	changedRoot := tree.RootHash()

	if emptyRoot == changedRoot {
		t.Fatal("root hash did not change after inserting an account")
	}
}

func TestAuditPathLength(t *testing.T) {
	tree := New()
	tree.Insert(5, testAccount(0x09, 20))
	tree.RootHash()

	path := tree.AuditPath(5)
	if len(path) != Depth {
		t.Fatalf("expected audit path of length %d, got %d", Depth, len(path))
	}
}

func TestNextFreeIdAdvances(t *testing.T) {
	tree := New()
	if tree.NextFreeId() != 0 {
		t.Fatalf("expected next free id 0 on empty tree, got %d", tree.NextFreeId())
	}
	tree.Insert(0, testAccount(0x01, 1))
	if tree.NextFreeId() != 1 {
		t.Fatalf("expected next free id 1 after inserting id 0, got %d", tree.NextFreeId())
	}
	tree.Insert(4, testAccount(0x02, 1))
	if tree.NextFreeId() != 5 {
		t.Fatalf("expected next free id 5 after inserting id 4, got %d", tree.NextFreeId())
	}
}

func TestSaveLoadCacheRoundTrip(t *testing.T) {
	tree := New()
	tree.Insert(0, testAccount(0x07, 1000))
	wantRoot := tree.RootHash()

	serialized := tree.SaveCache(1)

	restored := New()
	restored.Insert(0, testAccount(0x07, 1000))
	if !restored.LoadCache(1, serialized) {
		t.Fatal("LoadCache reported failure on a freshly saved cache")
	}
	if got := restored.RootHash(); got != wantRoot {
		t.Fatalf("root hash after cache restore = %s, want %s", got, wantRoot)
	}
}
