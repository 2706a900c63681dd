package extract

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
)

// Generic, semantic patterns. No tool names; tool-shaped output is the
// business of the structured recognizers in this package.
var (
	reIPv4     = regexp.MustCompile(`\b(?:(?:25[0-5]|2[0-4]\d|[01]?\d?\d)\.){3}(?:25[0-5]|2[0-4]\d|[01]?\d?\d)\b`)
	reIPv6     = regexp.MustCompile(`(?i)\b(?:[A-F0-9]{1,4}:){1,7}[A-F0-9]{1,4}\b`)
	reURL      = regexp.MustCompile(`(?i)https?://[^\s'"]+`)
	reDomain   = regexp.MustCompile(`(?i)\b(?:(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,63})\b`)
	reEmail    = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,63}\b`)
	reCVE      = regexp.MustCompile(`(?i)\bCVE-\d{4}-\d{4,7}\b`)
	rePortLine = regexp.MustCompile(`(?i)\b(?:port|open|listening|closed|filtered)[^\n]{0,50}\b(\d{1,5})\b`)
	reService  = regexp.MustCompile(`(?i)\b(ssh|rdp|ftp|smtp|imap|pop3|http|https|smb|ldap|kerberos|dns|mysql|mssql|postgres|ntp|snmp|telnet)\b`)
	reUserPass = regexp.MustCompile(`(?i)\b(user(name)?|login)[\s:=]+([^\s:]+)\b.*?\b(pass(word)?)[\s:=]+([^\s]+)\b`)
	rePair     = regexp.MustCompile(`\b([A-Za-z0-9._\-]{1,64})[:|/]([^\s]{1,128})\b`)
	reFilePath = regexp.MustCompile(`\b(/[^ \t\n\r\f\v]+|[A-Za-z]:\\[^ \t\n\r\f\v]+)\b`)
	reBanner   = regexp.MustCompile(`(?i)\b(Server:|X-Powered-By:|ssh-[0-9.]+|OpenSSH[_/][0-9.]+|nginx/[0-9.]+|Apache/[0-9.]+)\b.*`)
	reError    = regexp.MustCompile(`(?i)\b(denied|forbidden|unauthorized|timeout|timed out|refused|connection reset|no route|not found|exception|traceback|stack trace)\b`)
)

// Recognizer is one unit of the fixed extraction registry. Scan reads the
// whole input text, writes matches into the leaf it declares, and reports
// the raw match count before deduplication (indicator labels use raw
// counts).
type Recognizer struct {
	Name string
	Leaf string
	Scan func(text string, fs *FactSet) int
}

// registry order is part of the contract: the domain recognizer excludes
// hosts already captured by the url recognizer, and explicit user/pass
// pairs land ahead of loose pairs so they keep first-appearance position.
var registry = []Recognizer{
	{Name: "ipv4", Leaf: "entities.ips", Scan: scanIPv4},
	{Name: "ipv6", Leaf: "entities.ipv6", Scan: scanIPv6},
	{Name: "url", Leaf: "entities.urls", Scan: scanURLs},
	{Name: "domain", Leaf: "entities.domains", Scan: scanDomains},
	{Name: "email", Leaf: "entities.emails", Scan: scanEmails},
	{Name: "cve", Leaf: "vulns.cves", Scan: scanCVEs},
	{Name: "port", Leaf: "artifacts.ports", Scan: scanPorts},
	{Name: "service", Leaf: "artifacts.services", Scan: scanServices},
	{Name: "filepath", Leaf: "artifacts.files", Scan: scanFiles},
	{Name: "banner", Leaf: "artifacts.banners", Scan: scanBanners},
	{Name: "userpass", Leaf: "creds", Scan: scanUserPass},
	{Name: "loosepair", Leaf: "creds.pairs", Scan: scanLoosePairs},
	{Name: "errorline", Leaf: "errors", Scan: scanErrors},
}

// Registry returns the recognizer registry in evaluation order. Callers
// must not mutate it.
func Registry() []Recognizer {
	return registry
}

// FromText runs every recognizer over text and returns a fresh FactSet.
// Empty input yields an empty FactSet.
func FromText(text string) FactSet {
	fs := NewFactSet()
	if text == "" {
		return fs
	}
	counts := make(map[string]int, len(registry))
	for _, r := range registry {
		counts[r.Name] += r.Scan(text, &fs)
	}
	appendIndicators(&fs, counts)
	return fs
}

// FromFile extracts from the contents of path. An unreadable file yields a
// FactSet carrying only an extract_error indicator; that is recorded, not
// escalated. Readable contents go through the generic registry first, then
// through any structured recognizer whose format sniff fires.
func FromFile(path string) FactSet {
	data, err := os.ReadFile(path)
	if err != nil {
		fs := NewFactSet()
		fs.Indicators = append(fs.Indicators, fmt.Sprintf("extract_error:%s:%v", path, err))
		return fs
	}
	text := string(data)
	fs := FromText(text)
	for _, sr := range structuredRecognizers {
		if sr.Sniff(path, text) {
			fs.Merge(sr.Parse(path, text))
		}
	}
	return fs
}

// Indicator labels in fixed order, emitted only for categories that
// matched. Counts mirror the raw scans except creds, which counts the
// deduplicated pairs leaf.
func appendIndicators(fs *FactSet, counts map[string]int) {
	if n := counts["ipv4"]; n > 0 {
		fs.Indicators = append(fs.Indicators, fmt.Sprintf("ips:%d", n))
	}
	if n := counts["url"]; n > 0 {
		fs.Indicators = append(fs.Indicators, fmt.Sprintf("urls:%d", n))
	}
	if n := counts["cve"]; n > 0 {
		fs.Indicators = append(fs.Indicators, fmt.Sprintf("cves:%d", n))
	}
	if n := len(fs.Creds.Pairs); n > 0 {
		fs.Indicators = append(fs.Indicators, fmt.Sprintf("creds:%d", n))
	}
	if n := counts["port"]; n > 0 {
		fs.Indicators = append(fs.Indicators, fmt.Sprintf("ports:%d", n))
	}
}

func scanIPv4(text string, fs *FactSet) int {
	ms := reIPv4.FindAllString(text, -1)
	fs.Entities.IPs = sortedUnique(ms)
	return len(ms)
}

func scanIPv6(text string, fs *FactSet) int {
	ms := reIPv6.FindAllString(text, -1)
	fs.Entities.IPv6 = sortedUnique(ms)
	return len(ms)
}

func scanURLs(text string, fs *FactSet) int {
	ms := reURL.FindAllString(text, -1)
	fs.Entities.URLs = sortedUnique(ms)
	return len(ms)
}

// scanDomains drops hostnames already captured inside a URL. The host of
// a URL is everything after the scheme up to the first slash, lowercased,
// with any port left attached.
func scanDomains(text string, fs *FactSet) int {
	hosts := make(map[string]struct{}, len(fs.Entities.URLs))
	for _, u := range fs.Entities.URLs {
		hosts[strings.ToLower(urlHost(u))] = struct{}{}
	}
	var kept []string
	for _, d := range reDomain.FindAllString(text, -1) {
		if _, ok := hosts[strings.ToLower(d)]; ok {
			continue
		}
		kept = append(kept, d)
	}
	fs.Entities.Domains = sortedUnique(kept)
	return len(kept)
}

func urlHost(u string) string {
	if i := strings.Index(u, "://"); i >= 0 {
		u = u[i+3:]
	}
	if i := strings.IndexByte(u, '/'); i >= 0 {
		u = u[:i]
	}
	return u
}

func scanEmails(text string, fs *FactSet) int {
	ms := reEmail.FindAllString(text, -1)
	fs.Entities.Emails = sortedUnique(ms)
	return len(ms)
}

func scanCVEs(text string, fs *FactSet) int {
	ms := reCVE.FindAllString(text, -1)
	fs.Vulns.CVEs = sortedUnique(ms)
	return len(ms)
}

func scanPorts(text string, fs *FactSet) int {
	var ports []int
	for _, m := range rePortLine.FindAllStringSubmatch(text, -1) {
		p, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		ports = append(ports, p)
	}
	fs.Artifacts.Ports = sortedUniqueInts(ports)
	return len(ports)
}

func scanServices(text string, fs *FactSet) int {
	var svcs []string
	for _, m := range reService.FindAllStringSubmatch(text, -1) {
		svcs = append(svcs, strings.ToLower(m[1]))
	}
	fs.Artifacts.Services = sortedUnique(svcs)
	return len(svcs)
}

func scanFiles(text string, fs *FactSet) int {
	ms := reFilePath.FindAllString(text, -1)
	fs.Artifacts.Files = sortedUnique(ms)
	return len(ms)
}

func scanBanners(text string, fs *FactSet) int {
	var banners []string
	for _, m := range reBanner.FindAllString(text, -1) {
		banners = append(banners, strings.TrimSpace(m))
	}
	extendUnique(&fs.Artifacts.Banners, banners)
	return len(banners)
}

func scanUserPass(text string, fs *FactSet) int {
	var users, passes, pairs []string
	for _, m := range reUserPass.FindAllStringSubmatch(text, -1) {
		users = append(users, m[3])
		passes = append(passes, m[6])
		pairs = append(pairs, m[3]+":"+m[6])
	}
	extendUnique(&fs.Creds.Usernames, users)
	extendUnique(&fs.Creds.Passwords, passes)
	extendUnique(&fs.Creds.Pairs, pairs)
	return len(pairs)
}

// scanLoosePairs matches bare token:token (or token/token) shapes and
// keeps only pairs where both sides are longer than two characters. The
// length check is the only filter applied.
func scanLoosePairs(text string, fs *FactSet) int {
	var pairs []string
	for _, m := range rePair.FindAllStringSubmatch(text, -1) {
		u, p := m[1], m[2]
		if len(u) <= 2 || len(p) <= 2 {
			continue
		}
		pairs = append(pairs, u+":"+p)
	}
	extendUnique(&fs.Creds.Pairs, pairs)
	return len(pairs)
}

func scanErrors(text string, fs *FactSet) int {
	var errs []string
	for _, m := range reError.FindAllString(text, -1) {
		errs = append(errs, strings.TrimSpace(m))
	}
	extendUnique(&fs.Errors, errs)
	return len(errs)
}
