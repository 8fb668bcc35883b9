// Package pipeline assembles ordered tool blocks into an automation run and
// reconciles the backend's stage statuses back onto them.
package pipeline

import (
	"fmt"
	"sort"
	"strings"
)

// Template is a catalog entry a block is created from.
type Template struct {
	Key      string
	Tool     string
	Label    string
	Defaults map[string]any
	// Preview is the command shown before submission. {target} and any
	// {param} placeholders are substituted.
	Preview string
}

const defaultWordlist = "/usr/share/wordlists/dirb/common.txt"

// Catalog lists the blocks a pipeline can be built from.
var Catalog = []Template{
	{Key: "nmap", Tool: "nmap", Label: "Nmap", Defaults: map[string]any{"scan_type": "quick"},
		Preview: "nmap -T4 -F {target}"},
	{Key: "nmap_service", Tool: "nmap", Label: "Nmap Service Detection", Defaults: map[string]any{"scan_type": "service"},
		Preview: "nmap -sV -sC {target}"},
	{Key: "nmap_vuln", Tool: "nmap", Label: "Nmap Vuln Scripts", Defaults: map[string]any{"scan_type": "vuln"},
		Preview: "nmap --script vuln {target}"},
	{Key: "whatweb", Tool: "whatweb", Label: "WhatWeb", Defaults: map[string]any{},
		Preview: "whatweb {target}"},
	{Key: "nikto", Tool: "nikto", Label: "Nikto", Defaults: map[string]any{},
		Preview: "nikto -h {target}"},
	{Key: "gobuster_dir", Tool: "gobuster_dir", Label: "Gobuster Dir", Defaults: map[string]any{"wordlist": defaultWordlist},
		Preview: "gobuster dir -u {target} -w {wordlist}"},
	{Key: "ffuf", Tool: "ffuf", Label: "FFUF", Defaults: map[string]any{"wordlist": defaultWordlist},
		Preview: "ffuf -u {target}/FUZZ -w {wordlist}"},
	{Key: "nxc", Tool: "nxc", Label: "NetExec SMB", Defaults: map[string]any{"protocol": "smb", "shares": true, "users": true},
		Preview: "nxc {protocol} {target} --shares --users"},
	{Key: "enum4linux", Tool: "enum4linux", Label: "Enum4linux", Defaults: map[string]any{"all": true},
		Preview: "enum4linux -a {target}"},
	{Key: "searchsploit", Tool: "searchsploit", Label: "SearchSploit", Defaults: map[string]any{},
		Preview: "searchsploit {target}"},
}

// Lookup finds a catalog entry by key.
func Lookup(key string) (Template, bool) {
	for _, t := range Catalog {
		if t.Key == key {
			return t, true
		}
	}
	return Template{}, false
}

// Keys lists catalog keys in catalog order.
func Keys() []string {
	keys := make([]string, len(Catalog))
	for i, t := range Catalog {
		keys[i] = t.Key
	}
	return keys
}

// quickModes mirrors the canned pipelines of the automation endpoint.
var quickModes = map[string][]string{
	"full":  {"nmap", "nmap_service", "nxc", "enum4linux", "whatweb", "nikto", "nmap_vuln"},
	"recon": {"nmap", "nmap_service"},
	"enum":  {"nxc", "enum4linux"},
	"web":   {"whatweb", "nikto"},
	"vuln":  {"nmap_vuln"},
}

// QuickStages returns the catalog keys a quick mode runs, in order.
func QuickStages(mode string) ([]string, error) {
	keys, ok := quickModes[mode]
	if !ok {
		modes := make([]string, 0, len(quickModes))
		for m := range quickModes {
			modes = append(modes, m)
		}
		sort.Strings(modes)
		return nil, fmt.Errorf("unknown quick mode %q (want one of %s)", mode, strings.Join(modes, ", "))
	}
	return append([]string(nil), keys...), nil
}

func render(preview string, target string, params map[string]any) string {
	pairs := []string{"{target}", target}
	for k, v := range params {
		pairs = append(pairs, "{"+k+"}", fmt.Sprint(v))
	}
	return strings.NewReplacer(pairs...).Replace(preview)
}
