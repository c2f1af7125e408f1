package ledger

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// Entry is one stored fact of the ledger
type Entry struct {
	Table string
	Key   string
	Value string
}

func (e Entry) String() string {
	return e.Table + " " + e.Key + " = " + e.Value
}

// Snapshot lists every stored balance, allowance, owner, approval and operator
// in a deterministic order. Two ledgers with equal snapshots are
// indistinguishable to readers.
func (m *Memory) Snapshot() []Entry {
	size := m.balances.len() + m.allowances.len() + m.owners.len() + m.approvals.len() + m.operators.len()
	entries := make([]Entry, 0, size)
	m.balances.ascend(func(k string, v *big.Int) bool {
		entries = append(entries, Entry{Table: "balance", Key: k, Value: v.String()})
		return true
	})
	m.allowances.ascend(func(k string, v *big.Int) bool {
		entries = append(entries, Entry{Table: "allowance", Key: k, Value: v.String()})
		return true
	})
	m.owners.ascend(func(k string, v common.Address) bool {
		entries = append(entries, Entry{Table: "owner", Key: k, Value: v.Hex()})
		return true
	})
	m.approvals.ascend(func(k string, v common.Address) bool {
		entries = append(entries, Entry{Table: "approval", Key: k, Value: v.Hex()})
		return true
	})
	m.operators.ascend(func(k string, v bool) bool {
		entries = append(entries, Entry{Table: "operator", Key: k, Value: fmt.Sprint(v)})
		return true
	})
	return entries
}

// Diff lists the entries that differ between two snapshots, prefixed with "-"
// for removed or changed-from values and "+" for added or changed-to values
func Diff(before, after []Entry) []string {
	index := func(entries []Entry) map[string]string {
		out := make(map[string]string, len(entries))
		for _, e := range entries {
			out[e.Table+" "+e.Key] = e.Value
		}
		return out
	}
	was, is := index(before), index(after)

	var diff []string
	for _, e := range before {
		k := e.Table + " " + e.Key
		if v, ok := is[k]; !ok || v != e.Value {
			diff = append(diff, "-"+e.String())
		}
	}
	for _, e := range after {
		k := e.Table + " " + e.Key
		if v, ok := was[k]; !ok || v != e.Value {
			diff = append(diff, "+"+e.String())
		}
	}
	return diff
}

// FormatDiff renders a diff one change per line
func FormatDiff(diff []string) string {
	return strings.Join(diff, "\n")
}
