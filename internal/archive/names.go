package archive

import (
	"strconv"
	"strings"
)

// SanitizeName replaces every character outside [A-Za-z0-9] with '_'.
// It is deterministic and idempotent.
func SanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, name)
}

// EntryNamer hands out unique entry names for one archive. Recipients whose
// names sanitize to the same string get _2, _3, ... suffixes in arrival order.
type EntryNamer struct {
	ext  string
	used map[string]struct{}
}

func NewEntryNamer(ext string) *EntryNamer {
	return &EntryNamer{ext: ext, used: make(map[string]struct{})}
}

func (n *EntryNamer) Next(name string) string {
	base := SanitizeName(name)
	candidate := base + n.ext
	for i := 2; ; i++ {
		if _, taken := n.used[candidate]; !taken {
			break
		}
		candidate = base + "_" + strconv.Itoa(i) + n.ext
	}
	n.used[candidate] = struct{}{}
	return candidate
}

// Reserve marks name as taken without generating it, for entries the caller
// names itself.
func (n *EntryNamer) Reserve(name string) {
	n.used[name] = struct{}{}
}
