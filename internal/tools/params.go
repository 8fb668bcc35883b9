// Package tools models the per-tool parameter records sent to the run
// endpoint. Each tool family is its own struct; Encode is the single mapping
// to the wire format.
package tools

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnknownTool is returned for tool names the panel does not know.
	ErrUnknownTool = errors.New("unknown tool")
	// ErrMissingField is returned when a required parameter is empty.
	ErrMissingField = errors.New("missing required parameter")
)

// Params is implemented by every tool parameter variant.
type Params interface {
	// Tool returns the backend tool name.
	Tool() string
	// Validate checks required fields.
	Validate() error
}

func required(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s", ErrMissingField, field)
	}
	return nil
}

// Nmap scan parameters.
type Nmap struct {
	Target        string `mapstructure:"target"`
	ScanType      string `mapstructure:"scan_type"`
	Ports         string `mapstructure:"ports"`
	Timing        string `mapstructure:"timing"`
	Scripts       string `mapstructure:"scripts"`
	VersionDetect bool   `mapstructure:"version_detect"`
	OSDetect      bool   `mapstructure:"os_detect"`
	Verbose       bool   `mapstructure:"verbose"`
	ExtraFlags    string `mapstructure:"extra_flags"`
}

func (Nmap) Tool() string { return "nmap" }

func (p Nmap) Validate() error { return required("target", p.Target) }

// SQLMap injection test parameters.
type SQLMap struct {
	Target      string `mapstructure:"target"`
	Method      string `mapstructure:"method"`
	Data        string `mapstructure:"data"`
	Level       string `mapstructure:"level"`
	Risk        string `mapstructure:"risk"`
	Tamper      string `mapstructure:"tamper"`
	DBs         bool   `mapstructure:"dbs"`
	Tables      bool   `mapstructure:"tables"`
	Columns     bool   `mapstructure:"columns"`
	Dump        bool   `mapstructure:"dump"`
	CurrentDB   bool   `mapstructure:"current_db"`
	CurrentUser bool   `mapstructure:"current_user"`
	IsDBA       bool   `mapstructure:"is_dba"`
	Database    string `mapstructure:"database"`
	Table       string `mapstructure:"table"`
	RandomAgent bool   `mapstructure:"random_agent"`
	Threads     int    `mapstructure:"threads"`
	Cookie      string `mapstructure:"cookie"`
	UserAgent   string `mapstructure:"user_agent"`
	Proxy       string `mapstructure:"proxy"`
	ExtraFlags  string `mapstructure:"extra_flags"`
}

func (SQLMap) Tool() string { return "sqlmap" }

func (p SQLMap) Validate() error { return required("target", p.Target) }

// Hydra online brute-force parameters.
type Hydra struct {
	Target     string `mapstructure:"target"`
	Service    string `mapstructure:"service"`
	Username   string `mapstructure:"username"`
	Userlist   string `mapstructure:"userlist"`
	Password   string `mapstructure:"password"`
	Passlist   string `mapstructure:"passlist"`
	Threads    int    `mapstructure:"threads"`
	Verbose    bool   `mapstructure:"verbose"`
	Force      bool   `mapstructure:"force"`
	ExtraFlags string `mapstructure:"extra_flags"`
}

func (Hydra) Tool() string { return "hydra" }

func (p Hydra) Validate() error {
	if err := required("target", p.Target); err != nil {
		return err
	}
	return required("service", p.Service)
}

// John offline cracking parameters.
type John struct {
	Hashfile   string `mapstructure:"hashfile"`
	Wordlist   string `mapstructure:"wordlist"`
	Format     string `mapstructure:"format"`
	Show       bool   `mapstructure:"show"`
	ExtraFlags string `mapstructure:"extra_flags"`
}

func (John) Tool() string { return "john" }

func (p John) Validate() error { return required("hashfile", p.Hashfile) }

// Hashcat GPU cracking parameters.
type Hashcat struct {
	Hashfile   string `mapstructure:"hashfile"`
	Wordlist   string `mapstructure:"wordlist"`
	Mode       string `mapstructure:"mode"`
	AttackMode string `mapstructure:"attack_mode"`
	Show       bool   `mapstructure:"show"`
	Force      bool   `mapstructure:"force"`
	ExtraFlags string `mapstructure:"extra_flags"`
}

func (Hashcat) Tool() string { return "hashcat" }

func (p Hashcat) Validate() error { return required("hashfile", p.Hashfile) }

// NXC (NetExec) parameters.
type NXC struct {
	Target     string `mapstructure:"target"`
	Protocol   string `mapstructure:"protocol"`
	Username   string `mapstructure:"username"`
	Password   string `mapstructure:"password"`
	Hash       string `mapstructure:"hash"`
	Shares     bool   `mapstructure:"shares"`
	Users      bool   `mapstructure:"users"`
	Groups     bool   `mapstructure:"groups"`
	Sessions   bool   `mapstructure:"sessions"`
	Disks      bool   `mapstructure:"disks"`
	LoggedOn   bool   `mapstructure:"loggedon"`
	RIDBrute   bool   `mapstructure:"rid_brute"`
	PassPol    bool   `mapstructure:"pass_pol"`
	SAM        bool   `mapstructure:"sam"`
	LSA        bool   `mapstructure:"lsa"`
	NTDS       bool   `mapstructure:"ntds"`
	LocalAuth  bool   `mapstructure:"local_auth"`
	Module     string `mapstructure:"module"`
	ExecMethod string `mapstructure:"exec_method"`
	ExecCmd    string `mapstructure:"exec_cmd"`
	ExtraFlags string `mapstructure:"extra_flags"`
}

func (NXC) Tool() string { return "nxc" }

func (p NXC) Validate() error { return required("target", p.Target) }

// Enum covers the service enumeration tools, selected by Name.
type Enum struct {
	Name           string `mapstructure:"-"`
	Target         string `mapstructure:"target"`
	All            bool   `mapstructure:"all"`
	Users          bool   `mapstructure:"users"`
	Shares         bool   `mapstructure:"shares"`
	PasswordPolicy bool   `mapstructure:"password_policy"`
	Groups         bool   `mapstructure:"groups"`
	OSInfo         bool   `mapstructure:"os_info"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	Share          string `mapstructure:"share"`
	RecordType     string `mapstructure:"record_type"`
	Short          bool   `mapstructure:"short"`
	Trace          bool   `mapstructure:"trace"`
	BaseDN         string `mapstructure:"base_dn"`
	Community      string `mapstructure:"community"`
	Version        string `mapstructure:"version"`
	OID            string `mapstructure:"oid"`
	ExtraFlags     string `mapstructure:"extra_flags"`
}

func (p Enum) Tool() string { return p.Name }

func (p Enum) Validate() error { return required("target", p.Target) }

// SubEnum covers subdomain enumeration tools, selected by Name.
type SubEnum struct {
	Name       string `mapstructure:"-"`
	Target     string `mapstructure:"target"`
	Passive    bool   `mapstructure:"passive"`
	Brute      bool   `mapstructure:"brute"`
	Wordlist   string `mapstructure:"wordlist"`
	Threads    int    `mapstructure:"threads"`
	ExtraFlags string `mapstructure:"extra_flags"`
}

func (p SubEnum) Tool() string { return p.Name }

func (p SubEnum) Validate() error { return required("target", p.Target) }

// WebScan covers web content scanners, selected by Name.
type WebScan struct {
	Name       string `mapstructure:"-"`
	Target     string `mapstructure:"target"`
	SSL        bool   `mapstructure:"ssl"`
	Port       string `mapstructure:"port"`
	Tuning     string `mapstructure:"tuning"`
	Wordlist   string `mapstructure:"wordlist"`
	Extensions string `mapstructure:"extensions"`
	Threads    int    `mapstructure:"threads"`
	MC         string `mapstructure:"mc"`
	FC         string `mapstructure:"fc"`
	FS         string `mapstructure:"fs"`
	HC         string `mapstructure:"hc"`
	Aggression int    `mapstructure:"aggression"`
	Verbose    bool   `mapstructure:"verbose"`
	ExtraFlags string `mapstructure:"extra_flags"`
}

func (p WebScan) Tool() string { return p.Name }

func (p WebScan) Validate() error { return required("target", p.Target) }

// Nuclei template scan parameters.
type Nuclei struct {
	Target        string `mapstructure:"target"`
	Severity      string `mapstructure:"severity"`
	Templates     string `mapstructure:"templates"`
	Tags          string `mapstructure:"tags"`
	RateLimit     string `mapstructure:"rate_limit"`
	Concurrency   string `mapstructure:"concurrency"`
	AutomaticScan bool   `mapstructure:"automatic_scan"`
	NewTemplates  bool   `mapstructure:"new_templates"`
	ExtraFlags    string `mapstructure:"extra_flags"`
}

func (Nuclei) Tool() string { return "nuclei" }

func (p Nuclei) Validate() error { return required("target", p.Target) }

// Wafw00f WAF detection parameters.
type Wafw00f struct {
	Target     string `mapstructure:"target"`
	AllWAF     bool   `mapstructure:"all_waf"`
	Verbose    bool   `mapstructure:"verbose"`
	ExtraFlags string `mapstructure:"extra_flags"`
}

func (Wafw00f) Tool() string { return "wafw00f" }

func (p Wafw00f) Validate() error { return required("target", p.Target) }

// Feroxbuster content discovery parameters.
type Feroxbuster struct {
	Target      string `mapstructure:"target"`
	Wordlist    string `mapstructure:"wordlist"`
	Threads     string `mapstructure:"threads"`
	Extensions  string `mapstructure:"extensions"`
	Depth       string `mapstructure:"depth"`
	NoRecursion bool   `mapstructure:"no_recursion"`
	ExtraFlags  string `mapstructure:"extra_flags"`
}

func (Feroxbuster) Tool() string { return "feroxbuster" }

func (p Feroxbuster) Validate() error { return required("target", p.Target) }

// WPScan WordPress scan parameters.
type WPScan struct {
	Target     string `mapstructure:"target"`
	Enumerate  string `mapstructure:"enumerate"`
	Aggressive bool   `mapstructure:"aggressive"`
	Stealthy   bool   `mapstructure:"stealthy"`
	APIToken   string `mapstructure:"api_token"`
	ExtraFlags string `mapstructure:"extra_flags"`
}

func (WPScan) Tool() string { return "wpscan" }

func (p WPScan) Validate() error { return required("target", p.Target) }

// HashID identifies a hash type.
type HashID struct {
	Hash     string `mapstructure:"hash"`
	Extended bool   `mapstructure:"extended"`
	Mode     bool   `mapstructure:"mode"`
}

func (HashID) Tool() string { return "hashid" }

func (p HashID) Validate() error { return required("hash", p.Hash) }

// HashCrack cracks a single hash or hash file with hashcat or john, selected by Name.
type HashCrack struct {
	Name         string `mapstructure:"-"`
	Hash         string `mapstructure:"hash"`
	Hashfile     string `mapstructure:"hashfile"`
	Mode         string `mapstructure:"mode"`
	AttackMode   string `mapstructure:"attack_mode"`
	Wordlist     string `mapstructure:"wordlist"`
	Rules        string `mapstructure:"rules"`
	Workload     string `mapstructure:"workload"`
	Format       string `mapstructure:"format"`
	Force        bool   `mapstructure:"force"`
	Show         bool   `mapstructure:"show"`
	Single       bool   `mapstructure:"single"`
	Increment    bool   `mapstructure:"increment"`
	IncrementMin string `mapstructure:"increment_min"`
	IncrementMax string `mapstructure:"increment_max"`
	ExtraFlags   string `mapstructure:"extra_flags"`
}

func (p HashCrack) Tool() string { return p.Name }

func (p HashCrack) Validate() error {
	if strings.TrimSpace(p.Hash) == "" && strings.TrimSpace(p.Hashfile) == "" {
		return fmt.Errorf("%w: hash or hashfile", ErrMissingField)
	}
	return nil
}

// Searchsploit exploit-database query.
type Searchsploit struct {
	Query      string `mapstructure:"query"`
	Exact      bool   `mapstructure:"exact"`
	Title      bool   `mapstructure:"title"`
	ExtraFlags string `mapstructure:"extra_flags"`
}

func (Searchsploit) Tool() string { return "searchsploit" }

func (p Searchsploit) Validate() error { return required("query", p.Query) }
