package merkle

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/merkleship/merkleship/pkg/game/constants"
	"golang.org/x/crypto/sha3"
)

// Digest is a keccak256 hash. Board commitments, tree nodes and proof
// elements are all digests.
type Digest [32]byte

// ParseDigest parses a hex string (with or without a 0x prefix) into a Digest.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return d, fmt.Errorf("failed to decode digest: %v", err)
	}
	if len(b) != len(d) {
		return d, fmt.Errorf("digest must be %d bytes, got %d", len(d), len(b))
	}
	copy(d[:], b)
	return d, nil
}

func (d Digest) String() string {
	return "0x" + hex.EncodeToString(d[:])
}

// IsZero reports whether the digest is all zero bytes.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Digest) UnmarshalText(b []byte) error {
	parsed, err := ParseDigest(string(b))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Proof is an ordered array of sibling hashes from leaf level to the root.
// The board is always 64 squares, so the proof length is fixed at 6.
type Proof [constants.ProofDepth]Digest

// HashLeaf returns the keccak256 hash of a leaf preimage.
func HashLeaf(data string) Digest {
	var d Digest
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(data))
	copy(d[:], h.Sum(nil))
	return d
}

// hashPair hashes two nodes with the smaller digest first. Sorting the pair
// at every level means proofs carry no left/right position information;
// build and verify must both use this rule or nothing verifies.
func hashPair(a, b Digest) Digest {
	var d Digest
	h := sha3.NewLegacyKeccak256()
	if bytes.Compare(a[:], b[:]) <= 0 {
		h.Write(a[:])
		h.Write(b[:])
	} else {
		h.Write(b[:])
		h.Write(a[:])
	}
	copy(d[:], h.Sum(nil))
	return d
}

// VerifyProof recomputes the root from a claimed leaf preimage and its
// sibling proof and compares it to the expected root. Pure function.
func VerifyProof(leafData string, proof Proof, root Digest) bool {
	h := HashLeaf(leafData)
	for _, sibling := range proof {
		h = hashPair(h, sibling)
	}
	return h == root
}

// Tree is a fixed-depth binary commitment tree over 64 leaves. Leaf hashes
// are sorted before construction, matching the client tooling.
type Tree struct {
	levels [][]Digest
}

// BuildTree hashes the 64 leaf preimages, sorts the hashes, and pair-hashes
// upward to the root.
func BuildTree(leaves []string) (*Tree, error) {
	if len(leaves) != constants.Squares {
		return nil, fmt.Errorf("tree requires exactly %d leaves, got %d", constants.Squares, len(leaves))
	}

	hashed := make([]Digest, len(leaves))
	for i, leaf := range leaves {
		hashed[i] = HashLeaf(leaf)
	}
	sort.Slice(hashed, func(i, j int) bool {
		return bytes.Compare(hashed[i][:], hashed[j][:]) < 0
	})

	levels := make([][]Digest, 0, constants.ProofDepth+1)
	levels = append(levels, hashed)
	for level := hashed; len(level) > 1; {
		next := make([]Digest, len(level)/2)
		for i := 0; i < len(level); i += 2 {
			next[i/2] = hashPair(level[i], level[i+1])
		}
		levels = append(levels, next)
		level = next
	}

	return &Tree{levels: levels}, nil
}

// Root returns the top hash of the tree.
func (t *Tree) Root() Digest {
	return t.levels[len(t.levels)-1][0]
}

// Prove returns the sibling proof for a leaf preimage.
func (t *Tree) Prove(leafData string) (Proof, error) {
	var proof Proof
	target := HashLeaf(leafData)

	index := -1
	for i, h := range t.levels[0] {
		if h == target {
			index = i
			break
		}
	}
	if index < 0 {
		return proof, fmt.Errorf("leaf not found in tree")
	}

	for level := 0; level < constants.ProofDepth; level++ {
		proof[level] = t.levels[level][index^1]
		index /= 2
	}
	return proof, nil
}
