package node

import (
	"testing"

	"github.com/huynhanx03/keyva/pkg/keyva/keymath"
)

func TestCalculateDegree(t *testing.T) {
	tests := []struct {
		blockSize uint32
		want      int
	}{
		{4096, int((4096 - 2*32 - 12) / (32 + 20))},
		{512, int((512 - 2*32 - 12) / (32 + 20))},
	}
	for _, tt := range tests {
		if got := CalculateDegree(tt.blockSize); got != tt.want {
			t.Errorf("CalculateDegree(%d) = %d, want %d", tt.blockSize, got, tt.want)
		}
	}
}

func TestNewPanicsOnBadBounds(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic when first >= last")
		}
	}()
	New(0, 0, 4, keymath.Max(), keymath.Min())
}

func TestWriteReadRoundTrip(t *testing.T) {
	first := keymath.Zero
	last := keymath.Key{0, 0, 0, 1000}
	n := New(1, 2, 4, first, last)
	n.AddSyntheticKeyValues()
	n.SetChild(1, 42)

	buf := n.Write()
	out := New(1, 0, 4, first, last)
	if err := out.Read(buf); err != nil {
		t.Fatalf("Read: %v", err)
	}
	if out.Level != 2 {
		t.Errorf("Level = %d, want 2", out.Level)
	}
	if out.First.Compare(first) != 0 || out.Last.Compare(last) != 0 {
		t.Errorf("bounds mismatch: got (%v,%v)", out.First, out.Last)
	}
	for i := range n.Keys {
		if out.Keys[i].Key.Compare(n.Keys[i].Key) != 0 || out.Keys[i].Offset != n.Keys[i].Offset {
			t.Errorf("key[%d] mismatch: got %+v want %+v", i, out.Keys[i], n.Keys[i])
		}
	}
	if out.GetChild(1) != 42 {
		t.Errorf("child[1] = %d, want 42", out.GetChild(1))
	}
}

func TestAddSyntheticKeyValuesEvenSpacing(t *testing.T) {
	first := keymath.Zero
	last := keymath.Key{0, 0, 0, 100}
	n := New(0, 0, 5, first, last)
	count := n.AddSyntheticKeyValues()
	if count != 4 {
		t.Fatalf("count = %d, want 4", count)
	}
	for _, kv := range n.Keys {
		if !kv.IsSynthetic() {
			t.Error("expected synthetic key")
		}
	}
	if !n.Sane() {
		t.Error("node with synthetic fill should be sane")
	}
}

func TestEachChildBounds(t *testing.T) {
	first := keymath.Zero
	last := keymath.Key{0, 0, 0, 100}
	n := New(0, 0, 4, first, last)
	n.Keys[0] = KeyValue{Key: keymath.Key{0, 0, 0, 25}, Offset: SyntheticValue}
	n.Keys[1] = KeyValue{Key: keymath.Key{0, 0, 0, 50}, Offset: SyntheticValue}
	n.Keys[2] = KeyValue{Key: keymath.Key{0, 0, 0, 75}, Offset: SyntheticValue}
	n.SetChild(0, 1)
	n.SetChild(1, 2)
	n.SetChild(2, 3)
	n.SetChild(3, 4)

	type interval struct {
		lo, hi keymath.Key
		cid    uint64
	}
	var got []interval
	err := n.EachChild(func(i int, lo, hi keymath.Key, cid uint64) error {
		got = append(got, interval{lo, hi, cid})
		return nil
	})
	if err != nil {
		t.Fatalf("EachChild: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("got %d intervals, want 4", len(got))
	}
	if got[0].lo.Compare(first) != 0 || got[0].hi.Compare(n.Keys[0].Key) != 0 {
		t.Errorf("interval 0 = %+v", got[0])
	}
	if got[3].lo.Compare(n.Keys[2].Key) != 0 || got[3].hi.Compare(last) != 0 {
		t.Errorf("interval 3 = %+v", got[3])
	}
}

func TestEachChildSkipsUnpopulated(t *testing.T) {
	first := keymath.Zero
	last := keymath.Key{0, 0, 0, 100}
	n := New(0, 0, 4, first, last)
	n.Keys[0] = KeyValue{Key: keymath.Key{0, 0, 0, 50}, Offset: SyntheticValue}
	n.SetChild(0, 1)

	var visited []int
	err := n.EachChild(func(i int, lo, hi keymath.Key, cid uint64) error {
		visited = append(visited, i)
		return nil
	})
	if err != nil {
		t.Fatalf("EachChild: %v", err)
	}
	if len(visited) != 1 || visited[0] != 0 {
		t.Errorf("visited = %v, want [0]", visited)
	}
}

func TestFind(t *testing.T) {
	first := keymath.Zero
	last := keymath.Key{0, 0, 0, 100}
	n := New(0, 0, 4, first, last)
	target := keymath.Key{0, 0, 0, 50}
	n.Keys[0] = KeyValue{Key: target, Offset: 10, Length: 5}

	kv, ok := n.Find(target)
	if !ok {
		t.Fatal("expected to find key")
	}
	if kv.Offset != 10 || kv.Length != 5 {
		t.Errorf("kv = %+v", kv)
	}

	if _, ok := n.Find(keymath.Key{0, 0, 0, 99}); ok {
		t.Error("should not find absent key")
	}
}

func TestSaneDetectsOutOfBoundsKey(t *testing.T) {
	first := keymath.Key{0, 0, 0, 10}
	last := keymath.Key{0, 0, 0, 100}
	n := New(0, 0, 4, first, last)
	// The key sits in the last slot so the slots stay sorted and only the
	// bounds invariant is broken.
	n.Keys[2] = KeyValue{Key: keymath.Key{0, 0, 0, 5}, Offset: SyntheticValue}
	if n.Sane() {
		t.Error("node with out-of-bounds key should not be sane")
	}
}

func TestSaneRejectsPartialChildrenWithEmptyKeys(t *testing.T) {
	first := keymath.Zero
	last := keymath.Key{0, 0, 0, 100}
	n := New(0, 0, 4, first, last)
	// Key slots left empty, but a child set anyway: violates invariant 5
	// (children must be all-empty unless every key slot is populated). The
	// one key sits in the last slot so the slots stay sorted.
	n.Keys[2] = KeyValue{Key: keymath.Key{0, 0, 0, 50}, Offset: SyntheticValue}
	n.SetChild(0, 7)
	if n.Sane() {
		t.Error("node with empty key slots but a populated child should not be sane")
	}
}
