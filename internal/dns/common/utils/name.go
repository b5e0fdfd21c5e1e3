// Package utils provides small, dependency-light helpers shared across the
// DNS core packages.
package utils

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// CanonicalName returns a DNS name in canonical form: lowercased, trimmed of
// surrounding whitespace, and absolute (exactly one trailing dot). Names are
// stored fully qualified throughout this codebase, so unlike many DNS
// libraries this canonicalization keeps the trailing dot rather than
// stripping it.
func CanonicalName(name string) string {
	name = strings.TrimSpace(name)
	name = strings.ToLower(name)
	if name == "" || name == "." {
		return "."
	}
	if !strings.HasSuffix(name, ".") {
		name += "."
	}
	return name
}

// IsAbsolute reports whether name ends in a single trailing dot, i.e. is
// already in canonical fully-qualified form.
func IsAbsolute(name string) bool {
	return strings.HasSuffix(name, ".")
}

// Labels splits a canonical absolute name into its ordered labels, excluding
// the terminating root label. "www.example.com." -> ["www","example","com"].
func Labels(name string) []string {
	name = strings.TrimSuffix(CanonicalName(name), ".")
	if name == "" {
		return nil
	}
	return strings.Split(name, ".")
}

// IsSubdomain reports whether child is equal to or a descendant of parent.
// Both names are canonicalized before comparison.
func IsSubdomain(child, parent string) bool {
	child = CanonicalName(child)
	parent = CanonicalName(parent)
	if parent == "." {
		return true
	}
	if child == parent {
		return true
	}
	return strings.HasSuffix(child, "."+parent)
}

// GetApexDomain returns the registrable (public-suffix + one label) domain
// for name, falling back to name itself when the public suffix list can't
// classify it (e.g. internal zones like "corp." or "example.com." test
// fixtures that aren't on the public suffix list get passed through by the
// underlying library already).
func GetApexDomain(name string) string {
	trimmed := strings.TrimSuffix(CanonicalName(name), ".")
	apex, err := publicsuffix.EffectiveTLDPlusOne(trimmed)
	if err != nil {
		return CanonicalName(trimmed)
	}
	return CanonicalName(apex)
}

// DomainHierarchy returns the sequence of progressively shorter suffixes of
// name, from the name itself up to and including the root. E.g. for
// "a.b.c." it returns ["a.b.c.", "b.c.", "c.", "."].
func DomainHierarchy(name string) []string {
	name = CanonicalName(name)
	var out []string
	for {
		out = append(out, name)
		if name == "." {
			return out
		}
		idx := strings.IndexByte(name, '.')
		if idx < 0 || idx+1 >= len(name) {
			out = append(out, ".")
			return out
		}
		name = name[idx+1:]
	}
}
