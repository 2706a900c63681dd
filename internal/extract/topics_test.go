package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
)

func TestDeriveTopics(t *testing.T) {
	tests := []struct {
		name string
		fill func(*FactSet)
		want []string
	}{
		{
			name: "urls alone",
			fill: func(f *FactSet) { f.Entities.URLs = []string{"https://a.example"} },
			want: []string{"Web"},
		},
		{
			name: "domains alone",
			fill: func(f *FactSet) { f.Entities.Domains = []string{"a.example"} },
			want: []string{"Web"},
		},
		{
			name: "ips alone",
			fill: func(f *FactSet) { f.Entities.IPs = []string{"10.0.0.5"} },
			want: []string{"Network"},
		},
		{
			name: "ports alone",
			fill: func(f *FactSet) { f.Artifacts.Ports = []int{445} },
			want: []string{"Network"},
		},
		{
			name: "cves alone",
			fill: func(f *FactSet) { f.Vulns.CVEs = []string{"CVE-2024-1234"} },
			want: []string{"Vulnerabilities"},
		},
		{
			name: "pairs alone",
			fill: func(f *FactSet) { f.Creds.Pairs = []string{"admin:hunter2"} },
			want: []string{"Credentials"},
		},
		{
			name: "passwords alone",
			fill: func(f *FactSet) { f.Creds.Passwords = []string{"hunter2"} },
			want: []string{"Credentials"},
		},
		{
			name: "nothing fires",
			fill: func(f *FactSet) {},
			want: []string{"General"},
		},
		{
			name: "network and vulns keep priority order",
			fill: func(f *FactSet) {
				f.Vulns.CVEs = []string{"CVE-2024-1234"}
				f.Entities.IPs = []string{"10.0.0.5"}
			},
			want: []string{"Network", "Vulnerabilities"},
		},
		{
			name: "all four capped at three",
			fill: func(f *FactSet) {
				f.Entities.URLs = []string{"https://a.example"}
				f.Entities.IPs = []string{"10.0.0.5"}
				f.Vulns.CVEs = []string{"CVE-2024-1234"}
				f.Creds.Pairs = []string{"admin:hunter2"}
			},
			want: []string{"Web", "Network", "Vulnerabilities"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := NewFactSet()
			tt.fill(&fs)
			got := DeriveTopics(fs)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("topics (-want +got):\n%s", diff)
			}
		})
	}
}

func TestWebLeadsWhenURLsPresent(t *testing.T) {
	fs := FromText("open port 445\nfetch https://target.example/admin from 10.0.0.5")
	topics := DeriveTopics(fs)
	assert.Equal(t, "Web", topics[0])
}
