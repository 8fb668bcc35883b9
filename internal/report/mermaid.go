package report

import (
	"fmt"
	"sort"
	"strings"

	"github.com/user/sawlah/internal/model"
)

var nodeClasses = map[model.NodeType]string{
	model.NodeTarget:     "fill:#87CEEB,stroke:#1E90FF",
	model.NodePort:       "fill:#90EE90,stroke:#228B22",
	model.NodeService:    "fill:#E0FFE0,stroke:#228B22",
	model.NodeSubdomain:  "fill:#E6E6FA,stroke:#6A5ACD",
	model.NodeDirectory:  "fill:#FFF8DC,stroke:#DAA520",
	model.NodeTechnology: "fill:#E0FFFF,stroke:#20B2AA",
	model.NodeVuln:       "fill:#FFB6C1,stroke:#FF0000",
	model.NodeExploit:    "fill:#FF7F7F,stroke:#8B0000",
	model.NodeWAF:        "fill:#FFDAB9,stroke:#FF8C00",
	model.NodeWhois:      "fill:#F5F5F5,stroke:#808080",
	model.NodeSSL:        "fill:#F0FFF0,stroke:#2E8B57",
}

// Mermaid renders a topology graph as a Mermaid flowchart.
func Mermaid(g model.Graph) string {
	var sb strings.Builder

	sb.WriteString("```mermaid\n")
	sb.WriteString("flowchart LR\n")

	ids := make(map[string]string, len(g.Nodes))
	used := make(map[model.NodeType]bool)
	for i, n := range g.Nodes {
		id := fmt.Sprintf("n%d", i)
		ids[n.ID] = id
		used[n.Type] = true
		label := escapeLabel(shortenLabel(n.Label(), 40))
		if n.Type == model.NodeTarget {
			sb.WriteString(fmt.Sprintf("    %s((%s)):::%s\n", id, label, n.Type))
		} else {
			sb.WriteString(fmt.Sprintf("    %s[%s]:::%s\n", id, label, n.Type))
		}
	}

	sb.WriteString("\n")
	for _, e := range g.Edges {
		src, ok1 := ids[e.Source]
		dst, ok2 := ids[e.Target]
		if !ok1 || !ok2 {
			continue
		}
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", src, dst))
	}

	types := make([]string, 0, len(used))
	for t := range used {
		types = append(types, string(t))
	}
	sort.Strings(types)

	sb.WriteString("\n")
	for _, t := range types {
		style, ok := nodeClasses[model.NodeType(t)]
		if !ok {
			style = "fill:#FFFFFF,stroke:#000000"
		}
		sb.WriteString(fmt.Sprintf("    classDef %s %s\n", t, style))
	}
	sb.WriteString("```\n")

	return sb.String()
}

// MermaidPipeline renders pipeline stages as a left-to-right chain, colored
// by status.
func MermaidPipeline(target string, stages []model.StageStatus) string {
	var sb strings.Builder

	sb.WriteString("```mermaid\n")
	sb.WriteString("flowchart LR\n")
	sb.WriteString(fmt.Sprintf("    T((%s))\n", escapeLabel(target)))

	prev := "T"
	for i, st := range stages {
		id := fmt.Sprintf("S%d", i+1)
		status := st.Status
		if status == "" {
			status = model.StatusPending
		}
		sb.WriteString(fmt.Sprintf("    %s[%d. %s]:::%s\n", id, i+1, escapeLabel(st.Tool), status))
		sb.WriteString(fmt.Sprintf("    %s --> %s\n", prev, id))
		prev = id
	}

	sb.WriteString("\n")
	sb.WriteString("    classDef pending fill:#F5F5F5,stroke:#808080\n")
	sb.WriteString("    classDef running fill:#FFFACD,stroke:#DAA520\n")
	sb.WriteString("    classDef completed fill:#90EE90,stroke:#228B22\n")
	sb.WriteString("    classDef error fill:#FFB6C1,stroke:#FF0000\n")
	sb.WriteString("    classDef killed fill:#D3D3D3,stroke:#696969\n")
	sb.WriteString("```\n")

	return sb.String()
}

func shortenLabel(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}

var labelEscaper = strings.NewReplacer(
	`"`, "#quot;",
	"[", "#91;",
	"]", "#93;",
	"(", "#40;",
	")", "#41;",
	"\n", " ",
)

func escapeLabel(s string) string {
	return labelEscaper.Replace(s)
}
