package tools

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mitchellh/mapstructure"
)

// Tool names grouped by the variant that carries their parameters.
var (
	enumTools    = []string{"enum4linux", "smbclient", "whois", "dig", "rpcclient", "ldapsearch", "snmpwalk", "nbtscan"}
	subEnumTools = []string{"amass", "gobuster_dns", "dnsenum"}
	webScanTools = []string{"nikto", "dirb", "gobuster_dir", "ffuf", "whatweb", "wfuzz"}
	crackTools   = []string{"hashcat_crack", "john_crack"}
)

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Encode validates p and converts it to the tool name and parameter object
// expected by the run endpoint.
func Encode(p Params) (string, map[string]any, error) {
	if p == nil {
		return "", nil, fmt.Errorf("%w: nil parameters", ErrUnknownTool)
	}
	if err := p.Validate(); err != nil {
		return "", nil, fmt.Errorf("%s: %w", p.Tool(), err)
	}

	switch v := p.(type) {
	case Nmap, SQLMap, Hydra, John, Hashcat, NXC, Nuclei, Wafw00f, Feroxbuster, WPScan, HashID, Searchsploit:
		return wire(v)
	case Enum:
		if !contains(enumTools, v.Name) {
			return "", nil, fmt.Errorf("%w: %q is not an enumeration tool", ErrUnknownTool, v.Name)
		}
		return wire(v)
	case SubEnum:
		if !contains(subEnumTools, v.Name) {
			return "", nil, fmt.Errorf("%w: %q is not a subdomain tool", ErrUnknownTool, v.Name)
		}
		return wire(v)
	case WebScan:
		if !contains(webScanTools, v.Name) {
			return "", nil, fmt.Errorf("%w: %q is not a web scanner", ErrUnknownTool, v.Name)
		}
		return wire(v)
	case HashCrack:
		if !contains(crackTools, v.Name) {
			return "", nil, fmt.Errorf("%w: %q is not a cracking mode", ErrUnknownTool, v.Name)
		}
		return wire(v)
	default:
		return "", nil, fmt.Errorf("%w: %T", ErrUnknownTool, p)
	}
}

func wire(p Params) (string, map[string]any, error) {
	out := make(map[string]any)
	if err := mapstructure.Decode(p, &out); err != nil {
		return "", nil, fmt.Errorf("failed to encode %s parameters: %w", p.Tool(), err)
	}
	return p.Tool(), out, nil
}

// New returns an empty parameter variant for a tool name.
func New(tool string) (Params, error) {
	switch {
	case tool == "nmap":
		return &Nmap{Verbose: true, ScanType: "quick"}, nil
	case tool == "sqlmap":
		return &SQLMap{Threads: 5, Level: "1", Risk: "1"}, nil
	case tool == "hydra":
		return &Hydra{Threads: 16}, nil
	case tool == "john":
		return &John{}, nil
	case tool == "hashcat":
		return &Hashcat{AttackMode: "0"}, nil
	case tool == "nxc":
		return &NXC{Protocol: "smb"}, nil
	case tool == "nuclei":
		return &Nuclei{}, nil
	case tool == "wafw00f":
		return &Wafw00f{}, nil
	case tool == "feroxbuster":
		return &Feroxbuster{}, nil
	case tool == "wpscan":
		return &WPScan{}, nil
	case tool == "hashid":
		return &HashID{Extended: true, Mode: true}, nil
	case tool == "searchsploit":
		return &Searchsploit{}, nil
	case contains(enumTools, tool):
		return &Enum{Name: tool}, nil
	case contains(subEnumTools, tool):
		return &SubEnum{Name: tool, Threads: 10}, nil
	case contains(webScanTools, tool):
		return &WebScan{Name: tool, Threads: 10, Aggression: 1}, nil
	case contains(crackTools, tool):
		return &HashCrack{Name: tool, AttackMode: "0"}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTool, tool)
}

// Decode builds the variant for tool from loosely typed values such as
// command-line key=value pairs. Unknown keys are rejected.
func Decode(tool string, values map[string]any) (Params, error) {
	p, err := New(tool)
	if err != nil {
		return nil, err
	}

	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           p,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(values); err != nil {
		return nil, fmt.Errorf("invalid %s parameters: %w", tool, err)
	}

	// Return the value, not the pointer, so type switches match.
	switch v := p.(type) {
	case *Nmap:
		return *v, nil
	case *SQLMap:
		return *v, nil
	case *Hydra:
		return *v, nil
	case *John:
		return *v, nil
	case *Hashcat:
		return *v, nil
	case *NXC:
		return *v, nil
	case *Nuclei:
		return *v, nil
	case *Wafw00f:
		return *v, nil
	case *Feroxbuster:
		return *v, nil
	case *WPScan:
		return *v, nil
	case *HashID:
		return *v, nil
	case *Searchsploit:
		return *v, nil
	case *Enum:
		return *v, nil
	case *SubEnum:
		return *v, nil
	case *WebScan:
		return *v, nil
	case *HashCrack:
		return *v, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownTool, tool)
}

// ParsePairs turns key=value arguments into a value map.
func ParsePairs(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("expected key=value, got %q", kv)
		}
		out[strings.TrimSpace(k)] = v
	}
	return out, nil
}

// Names lists every tool the panel can run.
func Names() []string {
	names := []string{"nmap", "sqlmap", "hydra", "john", "hashcat", "nxc", "nuclei",
		"wafw00f", "feroxbuster", "wpscan", "hashid", "searchsploit"}
	names = append(names, enumTools...)
	names = append(names, subEnumTools...)
	names = append(names, webScanTools...)
	names = append(names, crackTools...)
	sort.Strings(names)
	return names
}
