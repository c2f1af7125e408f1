package ledger

import (
	"strings"

	"github.com/google/btree"
)

const tableDegree = 16

type record[V any] struct {
	key   string
	value V
}

// table is an ordered map whose clones share structure until written
type table[V any] struct {
	tree *btree.BTreeG[record[V]]
}

func newTable[V any]() *table[V] {
	return &table[V]{
		tree: btree.NewG(tableDegree, func(a, b record[V]) bool {
			return a.key < b.key
		}),
	}
}

func (t *table[V]) get(key string) (V, bool) {
	r, ok := t.tree.Get(record[V]{key: key})
	return r.value, ok
}

func (t *table[V]) set(key string, value V) {
	t.tree.ReplaceOrInsert(record[V]{key: key, value: value})
}

func (t *table[V]) delete(key string) {
	t.tree.Delete(record[V]{key: key})
}

func (t *table[V]) clone() *table[V] {
	return &table[V]{tree: t.tree.Clone()}
}

func (t *table[V]) ascend(fn func(key string, value V) bool) {
	t.tree.Ascend(func(r record[V]) bool {
		return fn(r.key, r.value)
	})
}

func (t *table[V]) len() int {
	return t.tree.Len()
}

func key(parts ...string) string {
	return strings.Join(parts, "/")
}
