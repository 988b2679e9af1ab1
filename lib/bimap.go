package lib

// BiMap is a one-to-one map between keys and values. The zero value is ready
// to use. It is not safe for concurrent use.
type BiMap[K comparable, V comparable] struct {
	forward map[K]V
	reverse map[V]K
}

func (bm *BiMap[K, V]) Get(k K) (V, bool) {
	v, found := bm.forward[k]
	return v, found
}

// Key returns the key v is associated with.
func (bm *BiMap[K, V]) Key(v V) (K, bool) {
	k, found := bm.reverse[v]
	return k, found
}

// Add associates k with v unless either of them is already associated.
func (bm *BiMap[K, V]) Add(k K, v V) bool {
	if bm.forward == nil {
		bm.forward = make(map[K]V)
		bm.reverse = make(map[V]K)
	}
	if _, taken := bm.forward[k]; taken {
		return false
	}
	if _, taken := bm.reverse[v]; taken {
		return false
	}
	bm.forward[k] = v
	bm.reverse[v] = k
	return true
}

func (bm *BiMap[K, V]) Delete(k K) (V, bool) {
	v, found := bm.forward[k]
	if found {
		delete(bm.forward, k)
		delete(bm.reverse, v)
	}
	return v, found
}

func (bm *BiMap[K, V]) DeleteValue(v V) (K, bool) {
	k, found := bm.reverse[v]
	if found {
		delete(bm.forward, k)
		delete(bm.reverse, v)
	}
	return k, found
}

func (bm *BiMap[K, V]) Len() int {
	return len(bm.forward)
}
