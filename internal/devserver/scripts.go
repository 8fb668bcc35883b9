package devserver

import (
	"fmt"
	"sort"
	"strings"
)

// script returns the canned output lines a simulated tool prints.
func script(tool, target string, params map[string]any) []string {
	host := hostOf(target)
	switch tool {
	case "nmap":
		lines := []string{
			"Starting Nmap 7.94 ( https://nmap.org )",
			fmt.Sprintf("Nmap scan report for %s", host),
			"Host is up (0.00042s latency).",
			"PORT     STATE    SERVICE VERSION",
			"22/tcp   open     ssh     OpenSSH 8.9p1 Ubuntu 3ubuntu0.6",
			"80/tcp   open     http    Apache httpd 2.4.52",
			"445/tcp  open     microsoft-ds Samba smbd 4.6.2",
			"3306/tcp filtered mysql",
		}
		if params["scan_type"] == "vuln" {
			lines = append(lines,
				"| http-vuln-cve2017-5638:",
				"|   VULNERABLE:",
				"|   Apache Struts Remote Code Execution Vulnerability",
			)
		}
		return append(lines, "Nmap done: 1 IP address (1 host up) scanned in 4.21 seconds")
	case "whatweb":
		return []string{
			fmt.Sprintf("http://%s [200 OK] Apache[2.4.52], Country[RESERVED][ZZ], HTTPServer[Ubuntu Linux][Apache/2.4.52 (Ubuntu)], PHP[8.1.2], Title[Welcome]", host),
		}
	case "nikto":
		return []string{
			"- Nikto v2.5.0",
			fmt.Sprintf("+ Target IP:          %s", host),
			"+ Server: Apache/2.4.52 (Ubuntu)",
			"+ /: The anti-clickjacking X-Frame-Options header is not present.",
			"+ /admin/: Directory indexing found.",
			"+ OSVDB-3233: /icons/README: Apache default file found.",
			"+ 1 host(s) tested",
		}
	case "wafw00f":
		return []string{
			fmt.Sprintf("[*] Checking https://%s", host),
			"[+] The site is behind Cloudflare (Cloudflare Inc.) WAF.",
			"[~] Number of requests: 2",
		}
	case "nxc":
		return []string{
			fmt.Sprintf("SMB %s 445 DC01 [*] Windows Server 2019 (name:DC01) (domain:corp.local)", host),
			fmt.Sprintf("SMB %s 445 DC01 [+] Enumerated shares", host),
			fmt.Sprintf("SMB %s 445 DC01 Share  Permissions  Remark", host),
			fmt.Sprintf("SMB %s 445 DC01 IPC$   READ         Remote IPC", host),
		}
	case "enum4linux":
		return []string{
			fmt.Sprintf("Starting enum4linux v0.9.1 against %s", host),
			"[+] Got domain/workgroup name: WORKGROUP",
			"[+] Server allows sessions using username '', password ''",
			"user:[guest] rid:[0x1f5]",
		}
	case "gobuster_dir", "ffuf", "dirb", "feroxbuster":
		return []string{
			"/admin                (Status: 301) [Size: 312]",
			"/login.php            (Status: 200) [Size: 1840]",
			"/uploads              (Status: 403) [Size: 277]",
		}
	case "gobuster_dns", "dnsenum", "amass", "subenum_all":
		return []string{
			"www." + host,
			"dev." + host,
			"mail." + host,
		}
	case "searchsploit":
		q, _ := params["query"].(string)
		if q == "" {
			q = target
		}
		return []string{
			"-------------------------------------------- ---------------------------------",
			" Exploit Title                              |  Path",
			"-------------------------------------------- ---------------------------------",
			fmt.Sprintf("%s - Remote Code Execution             | exploits/linux/remote/50383.sh", q),
			"-------------------------------------------- ---------------------------------",
		}
	case "hashid":
		return []string{"Analyzing '5f4dcc3b5aa765d61d8327deb882cf99'", "[+] MD5", "[+] MD4"}
	}
	return []string{fmt.Sprintf("[*] %s finished against %s", tool, target)}
}

// commandFor builds the command line shown for a run.
func commandFor(tool string, params map[string]any) string {
	if custom, ok := params["custom_command"].(string); ok && strings.TrimSpace(custom) != "" {
		return custom
	}
	target, _ := params["target"].(string)

	keys := make([]string, 0, len(params))
	for k := range params {
		if k != "target" && k != "custom_command" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := []string{tool}
	for _, k := range keys {
		switch v := params[k].(type) {
		case bool:
			if v {
				parts = append(parts, "--"+k)
			}
		case nil:
		default:
			if s := fmt.Sprint(v); s != "" {
				parts = append(parts, "--"+k, s)
			}
		}
	}
	if target != "" {
		parts = append(parts, target)
	}
	return strings.Join(parts, " ")
}

// hostOf strips a scheme, path and port from a target.
func hostOf(target string) string {
	h := target
	if i := strings.Index(h, "://"); i >= 0 {
		h = h[i+3:]
	}
	if i := strings.IndexAny(h, "/?#"); i >= 0 {
		h = h[:i]
	}
	if i := strings.LastIndex(h, ":"); i >= 0 && !strings.Contains(h[i+1:], "]") {
		h = h[:i]
	}
	return h
}
