// Package topology cross-references topology graph nodes with the scans
// that produced them.
package topology

import (
	"github.com/user/sawlah/internal/model"
)

// nodeTools maps a node type to the tools whose scans explain it.
var nodeTools = map[model.NodeType][]string{
	model.NodePort:       {"nmap"},
	model.NodeService:    {"nmap"},
	model.NodeVuln:       {"nmap"},
	model.NodeWAF:        {"wafw00f"},
	model.NodeWhois:      {"whois"},
	model.NodeSSL:        {"sslscan"},
	model.NodeTechnology: {"whatweb"},
	model.NodeSubdomain:  {"gobuster_dns", "dnsenum", "fierce", "dnsrecon", "subenum_all"},
	model.NodeDirectory:  {"gobuster_dir", "ffuf", "dirb", "subenum_all"},
	model.NodeExploit:    {"searchsploit"},
}

// ToolsFor returns the tools related to a node type. Target nodes have none.
func ToolsFor(t model.NodeType) []string {
	return append([]string(nil), nodeTools[t]...)
}

// RelatedScans keeps the scans whose tool explains node, in input order.
func RelatedScans(node model.Node, scans []model.ScanRecord) []model.ScanRecord {
	tools := nodeTools[node.Type]
	if len(tools) == 0 {
		return nil
	}
	var out []model.ScanRecord
	for _, s := range scans {
		for _, tool := range tools {
			if s.Tool == tool {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

var typeLabels = map[model.NodeType]string{
	model.NodeTarget:     "Target",
	model.NodePort:       "Open Port",
	model.NodeService:    "Service",
	model.NodeSubdomain:  "Subdomain",
	model.NodeVuln:       "Vulnerability",
	model.NodeDirectory:  "Directory",
	model.NodeTechnology: "Technology",
	model.NodeExploit:    "Exploit",
	model.NodeWAF:        "WAF Status",
	model.NodeWhois:      "WHOIS Info",
	model.NodeSSL:        "SSL/TLS",
}

// TypeLabel returns the heading of a node's detail panel.
func TypeLabel(t model.NodeType) string {
	if l, ok := typeLabels[t]; ok {
		return l
	}
	return string(t)
}
