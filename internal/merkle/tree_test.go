package merkle

import (
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

func leaf(i int) common.Hash {
	return common.BytesToHash(crypto.Keccak256([]byte(fmt.Sprintf("leaf-%d", i))))
}

func TestEmptyTreeRootIsZero(t *testing.T) {
	if root := NewTree().Root(); root != (common.Hash{}) {
		t.Errorf("empty tree root = %s, want zero", root.Hex())
	}
}

func TestWitnessVerifiesForAllLeaves(t *testing.T) {
	for _, n := range []int{1, 2, 3, 5, 8, 13} {
		tree := NewTree()
		for i := 0; i < n; i++ {
			tree.Append(leaf(i))
		}
		root := tree.Root()
		for i := 0; i < n; i++ {
			path, err := tree.Witness(uint64(i))
			if err != nil {
				t.Fatalf("n=%d Witness(%d): %v", n, i, err)
			}
			if !VerifyPath(root, leaf(i), uint64(i), path) {
				t.Errorf("n=%d: witness for leaf %d does not verify", n, i)
			}
		}
	}
}

func TestTamperedLeafFailsVerification(t *testing.T) {
	tree := NewTree()
	for i := 0; i < 4; i++ {
		tree.Append(leaf(i))
	}
	path, err := tree.Witness(2)
	if err != nil {
		t.Fatal(err)
	}
	if VerifyPath(tree.Root(), leaf(3), 2, path) {
		t.Error("witness verified against the wrong leaf")
	}
}

func TestWrongIndexFailsVerification(t *testing.T) {
	tree := NewTree()
	for i := 0; i < 4; i++ {
		tree.Append(leaf(i))
	}
	path, err := tree.Witness(2)
	if err != nil {
		t.Fatal(err)
	}
	if VerifyPath(tree.Root(), leaf(2), 1, path) {
		t.Error("witness verified under the wrong index")
	}
}

func TestWitnessOutOfRange(t *testing.T) {
	tree := NewTree()
	tree.Append(leaf(0))
	if _, err := tree.Witness(1); err == nil {
		t.Error("Witness should reject out-of-range index")
	}
}

func TestRootChangesOnAppend(t *testing.T) {
	tree := NewTree()
	tree.Append(leaf(0))
	before := tree.Root()
	tree.Append(leaf(1))
	if tree.Root() == before {
		t.Error("root did not change after append")
	}
}
