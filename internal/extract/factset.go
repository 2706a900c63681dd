// Package extract turns raw command and output text into typed facts.
// A fixed, ordered registry of recognizers populates a FactSet; FactSets
// merge per leaf with set-union semantics so repeated observations never
// duplicate or destroy earlier facts.
package extract

import (
	"encoding/json"
	"sort"
)

// Entities are network-addressable things found in text.
type Entities struct {
	IPs     []string `json:"ips"`
	IPv6    []string `json:"ipv6"`
	URLs    []string `json:"urls"`
	Domains []string `json:"domains"`
	Emails  []string `json:"emails"`
}

// Artifacts are service-level observations.
type Artifacts struct {
	Ports    []int    `json:"ports"`
	Services []string `json:"services"`
	Files    []string `json:"files"`
	Banners  []string `json:"banners"`
}

// Vulns holds vulnerability identifiers.
type Vulns struct {
	CVEs []string `json:"cves"`
}

// Creds holds credential material observed in text.
type Creds struct {
	Usernames []string `json:"usernames"`
	Passwords []string `json:"passwords"`
	Pairs     []string `json:"pairs"`
}

// FactSet is the canonical fact container for one or more extractions.
// Sorted leaves (ips, ipv6, urls, domains, emails, cves, ports, services,
// files) are duplicate-free and ordered; banners, errors and credential
// leaves keep first-appearance order; indicators is an insertion-ordered
// list of coarse count labels. Extra carries unknown top-level keys from
// structured sources verbatim through merge and JSON round-trips.
type FactSet struct {
	Entities   Entities
	Artifacts  Artifacts
	Vulns      Vulns
	Creds      Creds
	Errors     []string
	Indicators []string
	Extra      map[string]any
}

// NewFactSet returns an empty FactSet with all leaves initialized, so the
// audit record marshals empty categories as [] rather than null.
func NewFactSet() FactSet {
	return FactSet{
		Entities: Entities{
			IPs:     []string{},
			IPv6:    []string{},
			URLs:    []string{},
			Domains: []string{},
			Emails:  []string{},
		},
		Artifacts: Artifacts{
			Ports:    []int{},
			Services: []string{},
			Files:    []string{},
			Banners:  []string{},
		},
		Vulns:      Vulns{CVEs: []string{}},
		Creds:      Creds{Usernames: []string{}, Passwords: []string{}, Pairs: []string{}},
		Errors:     []string{},
		Indicators: []string{},
	}
}

// Merge folds incoming into f, leaf by leaf. Every sequence leaf is
// extended with values not already present, preserving order of first
// appearance. Top-level Extra keys absent from f are added verbatim.
// Merge is commutative and idempotent at the set level and never removes
// or overwrites an existing fact.
func (f *FactSet) Merge(in FactSet) {
	extendUnique(&f.Entities.IPs, in.Entities.IPs)
	extendUnique(&f.Entities.IPv6, in.Entities.IPv6)
	extendUnique(&f.Entities.URLs, in.Entities.URLs)
	extendUnique(&f.Entities.Domains, in.Entities.Domains)
	extendUnique(&f.Entities.Emails, in.Entities.Emails)
	extendUniqueInts(&f.Artifacts.Ports, in.Artifacts.Ports)
	extendUnique(&f.Artifacts.Services, in.Artifacts.Services)
	extendUnique(&f.Artifacts.Files, in.Artifacts.Files)
	extendUnique(&f.Artifacts.Banners, in.Artifacts.Banners)
	extendUnique(&f.Vulns.CVEs, in.Vulns.CVEs)
	extendUnique(&f.Creds.Usernames, in.Creds.Usernames)
	extendUnique(&f.Creds.Passwords, in.Creds.Passwords)
	extendUnique(&f.Creds.Pairs, in.Creds.Pairs)
	extendUnique(&f.Errors, in.Errors)
	extendUnique(&f.Indicators, in.Indicators)

	for k, v := range in.Extra {
		if f.Extra == nil {
			f.Extra = make(map[string]any)
		}
		if _, ok := f.Extra[k]; !ok {
			f.Extra[k] = v
		}
	}
}

// Rewrite returns a deep copy with fn applied to every string leaf,
// including strings nested inside Extra values. Numeric leaves pass
// through unchanged. Used to scrub a request before cloud egress.
func (f FactSet) Rewrite(fn func(string) string) FactSet {
	out := NewFactSet()
	out.Entities.IPs = mapStrings(f.Entities.IPs, fn)
	out.Entities.IPv6 = mapStrings(f.Entities.IPv6, fn)
	out.Entities.URLs = mapStrings(f.Entities.URLs, fn)
	out.Entities.Domains = mapStrings(f.Entities.Domains, fn)
	out.Entities.Emails = mapStrings(f.Entities.Emails, fn)
	out.Artifacts.Ports = append(out.Artifacts.Ports, f.Artifacts.Ports...)
	out.Artifacts.Services = mapStrings(f.Artifacts.Services, fn)
	out.Artifacts.Files = mapStrings(f.Artifacts.Files, fn)
	out.Artifacts.Banners = mapStrings(f.Artifacts.Banners, fn)
	out.Vulns.CVEs = mapStrings(f.Vulns.CVEs, fn)
	out.Creds.Usernames = mapStrings(f.Creds.Usernames, fn)
	out.Creds.Passwords = mapStrings(f.Creds.Passwords, fn)
	out.Creds.Pairs = mapStrings(f.Creds.Pairs, fn)
	out.Errors = mapStrings(f.Errors, fn)
	out.Indicators = mapStrings(f.Indicators, fn)
	if len(f.Extra) > 0 {
		out.Extra = make(map[string]any, len(f.Extra))
		for k, v := range f.Extra {
			out.Extra[k] = rewriteValue(v, fn)
		}
	}
	return out
}

func rewriteValue(v any, fn func(string) string) any {
	switch t := v.(type) {
	case string:
		return fn(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = rewriteValue(e, fn)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, e := range t {
			out[k] = rewriteValue(e, fn)
		}
		return out
	default:
		return v
	}
}

// factSetWire is the fixed-key portion of the JSON form.
type factSetWire struct {
	Entities   Entities  `json:"entities"`
	Artifacts  Artifacts `json:"artifacts"`
	Vulns      Vulns     `json:"vulns"`
	Creds      Creds     `json:"creds"`
	Errors     []string  `json:"errors"`
	Indicators []string  `json:"indicators"`
}

// MarshalJSON emits the fixed categories in canonical order, with nil
// leaves normalized to empty arrays, and splices Extra keys in at the
// top level.
func (f FactSet) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(factSetWire{
		Entities: Entities{
			IPs:     emptyIfNil(f.Entities.IPs),
			IPv6:    emptyIfNil(f.Entities.IPv6),
			URLs:    emptyIfNil(f.Entities.URLs),
			Domains: emptyIfNil(f.Entities.Domains),
			Emails:  emptyIfNil(f.Entities.Emails),
		},
		Artifacts: Artifacts{
			Ports:    emptyIntsIfNil(f.Artifacts.Ports),
			Services: emptyIfNil(f.Artifacts.Services),
			Files:    emptyIfNil(f.Artifacts.Files),
			Banners:  emptyIfNil(f.Artifacts.Banners),
		},
		Vulns: Vulns{CVEs: emptyIfNil(f.Vulns.CVEs)},
		Creds: Creds{
			Usernames: emptyIfNil(f.Creds.Usernames),
			Passwords: emptyIfNil(f.Creds.Passwords),
			Pairs:     emptyIfNil(f.Creds.Pairs),
		},
		Errors:     emptyIfNil(f.Errors),
		Indicators: emptyIfNil(f.Indicators),
	})
	if err != nil {
		return nil, err
	}
	if len(f.Extra) == 0 {
		return base, nil
	}
	extra, err := json.Marshal(f.Extra)
	if err != nil {
		return nil, err
	}
	// base ends with '}', extra starts with '{'
	joined := make([]byte, 0, len(base)+len(extra))
	joined = append(joined, base[:len(base)-1]...)
	joined = append(joined, ',')
	joined = append(joined, extra[1:]...)
	return joined, nil
}

// UnmarshalJSON restores the fixed categories and collects any other
// top-level keys into Extra.
func (f *FactSet) UnmarshalJSON(data []byte) error {
	var wire factSetWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*f = FactSet{
		Entities:   wire.Entities,
		Artifacts:  wire.Artifacts,
		Vulns:      wire.Vulns,
		Creds:      wire.Creds,
		Errors:     wire.Errors,
		Indicators: wire.Indicators,
	}
	for k, v := range raw {
		switch k {
		case "entities", "artifacts", "vulns", "creds", "errors", "indicators":
			continue
		}
		var val any
		if err := json.Unmarshal(v, &val); err != nil {
			return err
		}
		if f.Extra == nil {
			f.Extra = make(map[string]any)
		}
		f.Extra[k] = val
	}
	return nil
}

func extendUnique(dst *[]string, src []string) {
	seen := make(map[string]struct{}, len(*dst)+len(src))
	for _, v := range *dst {
		seen[v] = struct{}{}
	}
	for _, v := range src {
		if _, ok := seen[v]; ok {
			continue
		}
		*dst = append(*dst, v)
		seen[v] = struct{}{}
	}
}

func extendUniqueInts(dst *[]int, src []int) {
	seen := make(map[int]struct{}, len(*dst)+len(src))
	for _, v := range *dst {
		seen[v] = struct{}{}
	}
	for _, v := range src {
		if _, ok := seen[v]; ok {
			continue
		}
		*dst = append(*dst, v)
		seen[v] = struct{}{}
	}
}

func sortedUnique(vals []string) []string {
	seen := make(map[string]struct{}, len(vals))
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func sortedUniqueInts(vals []int) []int {
	seen := make(map[int]struct{}, len(vals))
	out := make([]int, 0, len(vals))
	for _, v := range vals {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Ints(out)
	return out
}

func mapStrings(vals []string, fn func(string) string) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = fn(v)
	}
	return out
}

func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func emptyIntsIfNil(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}
