package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/openfroyo/vtyctl/pkg/telemetry"
)

// DefaultSettingsFile is read when --settings is not given.
const DefaultSettingsFile = "vtyctl.toml"

// Settings is the content of vtyctl.toml.
//
//	service_name = "vtyctl"
//
//	[logging]
//	level = "debug"
//
//	[store]
//	path = "/var/lib/vtyctl/journal.db"
//
//	[policy]
//	paths = ["/etc/vtyctl/policy"]
//
//	[[targets]]
//	name = "edge1"
//	transport = "ssh"
//	host = "192.0.2.10"
//	user = "quagga"
//	key_file = "~/.ssh/id_ed25519"
type Settings struct {
	telemetry.Config

	Store   StoreSettings  `toml:"store"`
	Policy  PolicySettings `toml:"policy"`
	Apply   ApplySettings  `toml:"apply"`
	Targets []TargetConfig `toml:"targets" validate:"dive"`
}

// StoreSettings configures the run journal.
type StoreSettings struct {
	// Path is the SQLite database file. Empty disables the journal.
	Path string `toml:"path"`
}

// PolicySettings configures the OPA guard.
type PolicySettings struct {
	// Disabled turns the guard off entirely.
	Disabled bool `toml:"disabled"`

	// Paths lists extra .rego files or directories.
	Paths []string `toml:"paths"`

	// AllowDestroy permits removing whole BGP routers.
	AllowDestroy bool `toml:"allow_destroy"`

	// MaxCommands caps the size of one batch. Zero means no cap.
	MaxCommands int `toml:"max_commands" validate:"min=0"`
}

// ApplySettings tunes multi-target runs.
type ApplySettings struct {
	// Parallel bounds how many targets are reconciled at once.
	Parallel int `toml:"parallel" validate:"min=1,max=64"`

	// Attempts is the number of tries per target for transient failures.
	Attempts int `toml:"attempts" validate:"min=1,max=10"`

	// Backoff is the initial retry delay.
	Backoff time.Duration `toml:"backoff"`

	// Purge lists kinds whose unmanaged instances are deleted.
	Purge []string `toml:"purge" validate:"dive,oneof=bgp_router bgp_address_family bgp_as_path pim_interface static_route"`
}

// TargetConfig describes one routing daemon and how to reach it.
type TargetConfig struct {
	// Name identifies the target in resources, logs and the journal.
	Name string `toml:"name" validate:"required,excludesall=/"`

	// Transport is local (vtysh on this host) or ssh.
	Transport string `toml:"transport" validate:"required,oneof=local ssh"`

	Host       string `toml:"host" validate:"required_if=Transport ssh"`
	Port       int    `toml:"port" validate:"omitempty,min=1,max=65535"`
	User       string `toml:"user" validate:"required_if=Transport ssh"`
	KeyFile    string `toml:"key_file"`
	Password   string `toml:"password"`
	KnownHosts string `toml:"known_hosts"`

	// ProxyHost is an SSH jump host in front of the target.
	ProxyHost string `toml:"proxy_host"`
	ProxyPort int    `toml:"proxy_port" validate:"omitempty,min=1,max=65535"`
	ProxyUser string `toml:"proxy_user" validate:"required_with=ProxyHost"`

	// Vtysh is the vtysh binary on the target.
	Vtysh string `toml:"vtysh"`

	// Sudo runs vtysh through sudo -n.
	Sudo bool `toml:"sudo"`

	// StartupConfig is the saved configuration file on the target.
	StartupConfig string `toml:"startup_config"`

	// Timeout bounds one vtysh invocation.
	Timeout time.Duration `toml:"timeout"`
}

// DefaultSettings returns the settings used when no file exists.
func DefaultSettings() *Settings {
	return &Settings{
		Config: *telemetry.DefaultConfig(),
		Store:  StoreSettings{Path: ".vtyctl/journal.db"},
		Apply: ApplySettings{
			Parallel: 4,
			Attempts: 3,
			Backoff:  2 * time.Second,
		},
	}
}

// LoadSettings reads path over the defaults. A missing file is not an
// error when optional is set.
func LoadSettings(path string, optional bool) (*Settings, error) {
	s := DefaultSettings()

	meta, err := toml.DecodeFile(path, s)
	if err != nil {
		if optional && errors.Is(err, fs.ErrNotExist) {
			s.applyTargetDefaults()
			return s, nil
		}
		return nil, fmt.Errorf("failed to load settings %s: %w", path, err)
	}

	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown settings in %s: %s", path, strings.Join(keys, ", "))
	}

	s.applyTargetDefaults()
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings %s: %w", path, err)
	}
	return s, nil
}

func (s *Settings) applyTargetDefaults() {
	home, _ := os.UserHomeDir()
	for i := range s.Targets {
		t := &s.Targets[i]
		if t.Vtysh == "" {
			t.Vtysh = "vtysh"
		}
		if t.StartupConfig == "" {
			t.StartupConfig = "/etc/quagga/Quagga.conf"
		}
		if t.Timeout == 0 {
			t.Timeout = 30 * time.Second
		}
		if t.Transport == "ssh" && t.Port == 0 {
			t.Port = 22
		}
		if t.ProxyHost != "" && t.ProxyPort == 0 {
			t.ProxyPort = 22
		}
		if home != "" && strings.HasPrefix(t.KeyFile, "~/") {
			t.KeyFile = home + t.KeyFile[1:]
		}
		if home != "" && strings.HasPrefix(t.KnownHosts, "~/") {
			t.KnownHosts = home + t.KnownHosts[1:]
		}
	}
}

// Validate checks struct tags, target name uniqueness and the telemetry
// sections.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return err
	}

	seen := make(map[string]bool, len(s.Targets))
	for _, t := range s.Targets {
		if seen[t.Name] {
			return fmt.Errorf("target %q is defined twice", t.Name)
		}
		seen[t.Name] = true
	}

	return s.Config.Validate()
}

// Target looks up a target by name.
func (s *Settings) Target(name string) (TargetConfig, bool) {
	for _, t := range s.Targets {
		if t.Name == name {
			return t, true
		}
	}
	return TargetConfig{}, false
}

// Select returns the named targets, or all of them when names is empty.
func (s *Settings) Select(names []string) ([]TargetConfig, error) {
	if len(names) == 0 {
		if len(s.Targets) == 0 {
			return nil, fmt.Errorf("no targets configured")
		}
		return s.Targets, nil
	}

	out := make([]TargetConfig, 0, len(names))
	for _, name := range names {
		t, ok := s.Target(name)
		if !ok {
			return nil, fmt.Errorf("unknown target %q", name)
		}
		out = append(out, t)
	}
	return out, nil
}
