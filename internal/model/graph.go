package model

import (
	"encoding/json"
	"fmt"
)

// NodeType identifies the kind of a topology node.
type NodeType string

const (
	NodeTarget     NodeType = "target"
	NodePort       NodeType = "port"
	NodeService    NodeType = "service"
	NodeSubdomain  NodeType = "subdomain"
	NodeVuln       NodeType = "vuln"
	NodeDirectory  NodeType = "directory"
	NodeTechnology NodeType = "technology"
	NodeExploit    NodeType = "exploit"
	NodeWAF        NodeType = "waf"
	NodeWhois      NodeType = "whois"
	NodeSSL        NodeType = "ssl"
)

// Node is a typed vertex of a server-computed topology graph.
type Node struct {
	ID   string         `json:"id"`
	Type NodeType       `json:"type"`
	Data map[string]any `json:"data"`
}

// Edge links two nodes.
type Edge struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is an immutable snapshot returned by the map endpoint.
type Graph struct {
	Target  string   `json:"target,omitempty"`
	Nodes   []Node   `json:"nodes"`
	Edges   []Edge   `json:"edges"`
	Summary *Summary `json:"summary,omitempty"`
}

// Summary aggregates what the backend extracted for a target.
type Summary struct {
	Target       string           `json:"target"`
	Ports        []map[string]any `json:"ports"`
	Services     []map[string]any `json:"services"`
	Subdomains   []string         `json:"subdomains"`
	Directories  []map[string]any `json:"directories"`
	Vulns        []string         `json:"vulns"`
	Technologies []any            `json:"technologies,omitempty"`
	Exploits     []any            `json:"exploits,omitempty"`
	Scans        []ScanRecord     `json:"scans"`
	ScanDetails  []ScanRecord     `json:"scan_details,omitempty"`
}

// ScanDetails returns the scans cross-referenced by the graph.
func (g Graph) ScanDetails() []ScanRecord {
	if g.Summary == nil {
		return nil
	}
	if len(g.Summary.ScanDetails) > 0 {
		return g.Summary.ScanDetails
	}
	return g.Summary.Scans
}

// ScanRecord is a scan referenced by a map summary or attached to a project.
type ScanRecord struct {
	ID            ID        `json:"id,omitempty"`
	TaskID        string    `json:"task_id,omitempty"`
	Tool          string    `json:"tool"`
	Command       string    `json:"command,omitempty"`
	Status        string    `json:"status"`
	OutputPreview string    `json:"output_preview,omitempty"`
	StartedAt     Timestamp `json:"started_at"`
}

// UnmarshalJSON accepts both the map shape (tool, output_preview) and the
// project shape (tool_name, output).
func (s *ScanRecord) UnmarshalJSON(data []byte) error {
	type plain ScanRecord
	var aux struct {
		plain
		ToolName string `json:"tool_name"`
		Output   string `json:"output"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*s = ScanRecord(aux.plain)
	if s.Tool == "" {
		s.Tool = aux.ToolName
	}
	if s.OutputPreview == "" {
		s.OutputPreview = aux.Output
	}
	return nil
}

// Node returns the node with the given id.
func (g Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// String returns the value of a data attribute as text.
func (n Node) String(key string) string {
	v, ok := n.Data[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}

// Int returns a numeric data attribute.
func (n Node) Int(key string) int {
	switch t := n.Data[key].(type) {
	case float64:
		return int(t)
	case int:
		return t
	case int64:
		return int(t)
	}
	return 0
}

// Bool returns a boolean data attribute.
func (n Node) Bool(key string) bool {
	b, _ := n.Data[key].(bool)
	return b
}

// Strings returns a list data attribute.
func (n Node) Strings(key string) []string {
	raw, ok := n.Data[key].([]any)
	if !ok {
		if s, ok := n.Data[key].([]string); ok {
			return s
		}
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		out = append(out, fmt.Sprint(v))
	}
	return out
}

// Label returns the best human label for the node.
func (n Node) Label() string {
	for _, key := range []string{"label", "title", "name", "url"} {
		if s := n.String(key); s != "" {
			return s
		}
	}
	if n.Type == NodePort {
		p := n.Port()
		return p.Port + "/" + p.Proto
	}
	return n.ID
}

// PortData holds the attributes of a port node.
type PortData struct {
	Port    string
	Proto   string
	State   string
	Service string
	Version string
}

// Port decodes port-node attributes.
func (n Node) Port() PortData {
	return PortData{
		Port:    n.String("port"),
		Proto:   n.String("proto"),
		State:   n.String("state"),
		Service: n.String("service"),
		Version: n.String("version"),
	}
}
