package classify

import (
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		line string
		want Style
	}{
		{"[+] VULNERABLE: CVE-2021-1234 found", Critical},
		{"State: CRITICAL", Critical},
		{"80/tcp   open  http    Apache httpd 2.4.41", Success},
		{"[+] 10.0.0.5:445 admin:admin", Success},
		{"SMB 10.0.0.5 445 DC01 [+] corp\\admin:pass (Pwn3d!)", Success},
		{"Login valid for user bob", Success},
		{"[-] Connection refused", Error},
		{"ERROR: could not resolve host", Error},
		{"request timeout after 10s", Error},
		{"[*] Starting module", Warning},
		{"[!] Target may be protected", Warning},
		{"WARNING: no hosts", Warning},
		{"22/tcp open ssh", Success},
		{"443/tcp closed https", Muted},
		{"161/udp filtered snmp", Muted},
		{"| http-title: Welcome", Info},
		{"Nmap scan report for 10.0.0.1", Preamble},
		{"Starting Nmap 7.94", Preamble},
		{"Host is up (0.0010s latency).", Preamble},
		{"PORT     STATE SERVICE", Neutral},
		{"", Neutral},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.line))
		})
	}
}

func TestClassifyCriticalPrecedence(t *testing.T) {
	line := "[+] VULNERABLE: CVE-2021-1234 found"
	assert.True(t, reSuccess.MatchString(line), "line also matches the success rule")
	assert.Equal(t, Critical, Classify(line))
}

func TestClassifyIdempotent(t *testing.T) {
	text := strings.Join([]string{
		"Starting Nmap 7.94",
		"Nmap scan report for scanme.example.org",
		"PORT   STATE    SERVICE VERSION",
		"22/tcp open     ssh     OpenSSH 8.2",
		"25/tcp filtered smtp",
		"| ssl-cert: Subject: commonName=example",
		"",
		"[!] done",
	}, "\n")

	first := Lines(text)
	for i := 0; i < 5; i++ {
		if diff := cmp.Diff(first, Lines(text)); diff != "" {
			t.Fatalf("run %d differs (-first +rerun):\n%s", i, diff)
		}
	}
}

func TestLinesBlankRows(t *testing.T) {
	lines := Lines("a\n\n   \nb")
	require.Len(t, lines, 4)
	assert.Equal(t, 1, lines[0].Number)
	assert.Equal(t, " ", lines[1].Text)
	assert.Equal(t, " ", lines[2].Text)
	assert.Equal(t, 4, lines[3].Number)
	assert.Nil(t, Lines(""))
}

func TestCustomRules(t *testing.T) {
	c := New([]Rule{{Name: "loot", Match: func(l string) bool { return strings.Contains(l, "loot") }, Style: Critical}})
	assert.Equal(t, Critical, c.Classify("found loot"))
	assert.Equal(t, Neutral, c.Classify("[+] nothing"))
}

func TestPorts(t *testing.T) {
	rows := Ports("PORT STATE SERVICE\n80/tcp   open  http    Apache httpd 2.4.41\n53/udp filtered domain\n")
	require.Len(t, rows, 2)
	assert.Equal(t, PortRow{Port: "80/tcp", State: "open", Service: "http", Version: "Apache httpd 2.4.41"}, rows[0])
	assert.Equal(t, Success, rows[0].Style())
	assert.Equal(t, PortRow{Port: "53/udp", State: "filtered", Service: "domain"}, rows[1])
	assert.Equal(t, Warning, rows[1].Style())
	assert.Equal(t, Muted, PortRow{State: "closed"}.Style())
}

func TestFindings(t *testing.T) {
	text := "[+] VULNERABLE: x\n[!] maybe\nSUCCESS login\nnothing here\n"
	got := Findings(text)
	require.Len(t, got, 3)
	assert.Equal(t, Critical, got[0].Style)
	assert.Equal(t, Warning, got[1].Style)
	assert.Equal(t, Success, got[2].Style)
}

func TestFindingsCap(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 80; i++ {
		fmt.Fprintf(&sb, "[+] hit %d\n", i)
	}
	got := Findings(sb.String())
	assert.Len(t, got, MaxFindings)
	assert.Equal(t, "[+] hit 0", got[0].Text)
}

func TestSubdomains(t *testing.T) {
	text := "api.example.com\n  mail.example.com  \nFound: dev.example.com\nnot a host line\n"
	assert.Equal(t, []string{"api.example.com", "mail.example.com"}, Subdomains(text)[:2])

	var sb strings.Builder
	for i := 0; i < 150; i++ {
		fmt.Fprintf(&sb, "h%d.example.com\n", i)
	}
	assert.Len(t, Subdomains(sb.String()), MaxSubdomains)
}

func TestSubdomainsFoundMarker(t *testing.T) {
	got := Subdomains("Found: dev.example.com (Status: 200)\n")
	assert.Empty(t, got, "marker is case sensitive")
	got = Subdomains("found: dev.example.com (Status: 200)\n")
	assert.Equal(t, []string{"found: dev.example.com (Status: 200)"}, got)
}

func TestHashAndExploits(t *testing.T) {
	text := "Analyzing '5f4dcc3b5aa765d61d8327deb882cf99'\n[+] MD2\n[+] MD5\n" +
		"Apache 2.4.49 - Path Traversal | exploits/multiple/webapps/50383.sh\n"
	assert.Equal(t, []string{"MD2", "MD5"}, HashMatches(text))
	assert.Equal(t, []string{"Apache 2.4.49 - Path Traversal | exploits/multiple/webapps/50383.sh"}, ExploitHits(text))
}

func TestSummarizeEmpty(t *testing.T) {
	assert.True(t, Summarize("").Empty())
	assert.True(t, Summarize("plain text\nwith nothing").Empty())
	assert.False(t, Summarize("22/tcp open ssh").Empty())
}

func TestDiff(t *testing.T) {
	before := "22/tcp open ssh\n80/tcp open http\n"
	after := "22/tcp open ssh\n443/tcp open https\n"
	lines := Diff(before, after)
	assert.True(t, Changed(lines))

	var added, removed []string
	for _, l := range lines {
		switch l.Kind {
		case Added:
			added = append(added, l.Text)
		case Removed:
			removed = append(removed, l.Text)
		}
	}
	assert.Equal(t, []string{"443/tcp open https"}, added)
	assert.Equal(t, []string{"80/tcp open http"}, removed)
	assert.False(t, Changed(Diff(before, before)))
}
