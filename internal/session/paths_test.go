package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte("x"), 0644))
	return p
}

func TestDetectOutputPathsFlagForms(t *testing.T) {
	dir := t.TempDir()
	scan := touch(t, dir, "scan.xml")
	results := touch(t, dir, "results.json")
	notes := touch(t, dir, "notes.txt")
	dump := touch(t, dir, "dump.txt")
	// The attached -o form keeps the format letter in the file name.
	attached := touch(t, dir, "Nweb.txt")

	tests := []struct {
		name string
		cmd  string
		want []string
	}{
		{"two token -oX", "nmap -sV -oX scan.xml 10.0.0.5", []string{scan}},
		{"long json flag", "httpx --json results.json -l hosts.txt", []string{results}},
		{"output equals form", "ffuf --output=notes.txt -u http://t/FUZZ", []string{notes}},
		{"shell redirect", "gobuster dir -u http://t > dump.txt", []string{dump}},
		{"attached short o", "nikto -oNweb.txt -h target", []string{attached}},
		{"attached -oX not recognized", "nmap -oXscan.xml 10.0.0.5", nil},
		{"missing file filtered out", "nmap -oX absent.xml 10.0.0.5", nil},
		{"no output flags", "cat /etc/passwd", nil},
		{"flag at end without value", "nmap -sV 10.0.0.5 -oX", nil},
		{"multiple outputs", "nmap -oX scan.xml 10.0.0.5 > dump.txt", []string{scan, dump}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DetectOutputPaths(tt.cmd, dir)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDetectOutputPathsResolvesAgainstCWD(t *testing.T) {
	dir := t.TempDir()
	other := t.TempDir()
	rel := touch(t, dir, "rel.txt")
	abs := touch(t, other, "abs.txt")

	got := DetectOutputPaths("tool -o rel.txt", dir)
	assert.Equal(t, []string{rel}, got)

	got = DetectOutputPaths("tool -o "+abs, dir)
	assert.Equal(t, []string{abs}, got)
}

func TestDetectOutputPathsExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	loot := touch(t, home, "loot.json")

	got := DetectOutputPaths("amass enum --json ~/loot.json -d example.com", "/nonexistent")
	assert.Equal(t, []string{loot}, got)
}

func TestDetectOutputPathsCleansDotSegments(t *testing.T) {
	dir := t.TempDir()
	scan := touch(t, dir, "scan.xml")

	got := DetectOutputPaths("nmap -oX ./scan.xml 10.0.0.5", dir)
	assert.Equal(t, []string{scan}, got)
}
