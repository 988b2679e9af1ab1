package lib

import (
	"testing"
)

func TestBiMap(t *testing.T) {
	var bm BiMap[string, int]

	if _, found := bm.Get("a"); found {
		t.Fatal("empty map has a key")
	}
	if bm.Add("a", 1) == false {
		t.Fatal("unable to add")
	}
	if bm.Add("a", 2) {
		t.Fatal("key is added twice")
	}
	if bm.Add("b", 1) {
		t.Fatal("value is added twice")
	}
	if v, _ := bm.Get("a"); v != 1 {
		t.Fatalf("incorrect value %d", v)
	}
	if k, _ := bm.Key(1); k != "a" {
		t.Fatalf("incorrect key %q", k)
	}

	bm.Add("b", 2)
	if bm.Len() != 2 {
		t.Fatalf("incorrect len %d", bm.Len())
	}
	if k, found := bm.DeleteValue(2); found == false || k != "b" {
		t.Fatal("unable to delete by value")
	}
	if _, found := bm.Get("b"); found {
		t.Fatal("deleted key is still there")
	}
	if v, found := bm.Delete("a"); found == false || v != 1 {
		t.Fatal("unable to delete by key")
	}
	if _, found := bm.Key(1); found {
		t.Fatal("deleted value is still there")
	}
	if _, found := bm.Delete("a"); found {
		t.Fatal("key is deleted twice")
	}
	if bm.Len() != 0 {
		t.Fatal("map is not empty")
	}
}
