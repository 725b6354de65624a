package ingest

import (
	"github.com/cespare/xxhash/v2"
)

// dedupKey is the tuple that makes two envelopes the same observation.
type dedupKey struct {
	level           string
	platform        string
	standardName    string
	period          string
	namingAuthority string
	function        string
	datetime        string
}

func keyOf(env *Envelope) dedupKey {
	p := &env.Properties
	return dedupKey{
		level:           string(p.Level),
		platform:        p.Platform,
		standardName:    p.Content.StandardName,
		period:          p.Period,
		namingAuthority: p.NamingAuthority,
		function:        p.Function,
		datetime:        p.Datetime,
	}
}

func (k dedupKey) hash() uint64 {
	d := xxhash.New()
	for _, s := range []string{k.level, k.platform, k.standardName, k.period, k.namingAuthority, k.function, k.datetime} {
		_, _ = d.WriteString(s)
		_, _ = d.Write([]byte{0})
	}
	return d.Sum64()
}

// Dedupe keeps the first of each group of identical observations, preserving
// order, and returns how many were dropped. Envelopes must be validated so
// equivalent spellings compare equal.
func Dedupe(envs []*Envelope) ([]*Envelope, int) {
	seen := make(map[uint64][]dedupKey, len(envs))
	out := make([]*Envelope, 0, len(envs))

	for _, env := range envs {
		k := keyOf(env)
		h := k.hash()
		if containsKey(seen[h], k) {
			continue
		}
		seen[h] = append(seen[h], k)
		out = append(out, env)
	}
	return out, len(envs) - len(out)
}

func containsKey(keys []dedupKey, k dedupKey) bool {
	for _, existing := range keys {
		if existing == k {
			return true
		}
	}
	return false
}
