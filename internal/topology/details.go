package topology

import (
	"strings"

	"github.com/user/sawlah/internal/classify"
	"github.com/user/sawlah/internal/model"
)

// Row is one labelled attribute of a node.
type Row struct {
	Label string
	Value string
	Style classify.Style
}

type rows []Row

func (r *rows) add(label, value string) {
	r.addStyled(label, value, classify.Neutral)
}

func (r *rows) addStyled(label, value string, style classify.Style) {
	*r = append(*r, Row{Label: label, Value: value, Style: style})
}

// optional adds the row only when value is set.
func (r *rows) optional(label, value string) {
	if value != "" {
		r.add(label, value)
	}
}

// Details returns the attribute rows shown for a node.
func Details(n model.Node) []Row {
	var r rows

	switch n.Type {
	case model.NodePort:
		p := n.Port()
		r.add("Port", p.Port+"/"+p.Proto)
		state := classify.Warning
		if p.State == "open" {
			state = classify.Success
		}
		r.addStyled("State", p.State, state)
		r.add("Service", p.Service)
		r.optional("Version", p.Version)

	case model.NodeWAF:
		if n.Bool("detected") {
			r.addStyled("Status", "WAF Detected", classify.Success)
		} else {
			r.addStyled("Status", "No WAF", classify.Error)
		}
		name := n.String("name")
		if name == "" {
			name = "N/A"
		}
		r.add("WAF Name", name)
		r.optional("Details", n.String("details"))

	case model.NodeWhois:
		r.optional("Registrar", n.String("registrar"))
		r.optional("Organization", n.String("org"))
		r.optional("Country", n.String("country"))
		r.optional("Created", n.String("created"))
		r.optional("Expires", n.String("expires"))
		r.optional("Nameservers", strings.Join(n.Strings("nameservers"), ", "))

	case model.NodeSSL:
		r.optional("Subject", n.String("cert_subject"))
		r.optional("Issuer", n.String("cert_issuer"))
		r.optional("Expires", n.String("cert_expiry"))
		r.optional("Protocols", strings.Join(n.Strings("protocols"), "; "))

	case model.NodeTechnology:
		r.add("Name", n.String("name"))
		r.optional("Version", n.String("version"))
		r.add("Category", n.String("category"))

	case model.NodeSubdomain:
		r.add("FQDN", n.String("label"))

	case model.NodeDirectory:
		r.add("Path", n.String("url"))
		if status := n.Int("status"); status > 0 {
			style := classify.Warning
			if status < 400 {
				style = classify.Success
			}
			r.addStyled("HTTP Status", n.String("status"), style)
		}

	case model.NodeVuln:
		r.addStyled("Finding", n.String("label"), classify.Critical)

	case model.NodeExploit:
		r.add("Title", n.String("title"))
		r.add("Path", n.String("path"))

	case model.NodeTarget:
		r.add("Target", n.String("label"))
		r.add("Total Scans", n.String("scans"))

	case model.NodeService:
		r.add("Service", n.String("label"))

	default:
		for k := range n.Data {
			r.add(k, n.String(k))
		}
	}
	return r
}
