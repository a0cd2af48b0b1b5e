package ssh

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/ssh"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig("192.0.2.10", "quagga")

	if config.Host != "192.0.2.10" {
		t.Errorf("expected host '192.0.2.10', got '%s'", config.Host)
	}
	if config.User != "quagga" {
		t.Errorf("expected user 'quagga', got '%s'", config.User)
	}
	if config.Port != 22 {
		t.Errorf("expected port 22, got %d", config.Port)
	}
	if config.AuthMethod != AuthMethodKey {
		t.Errorf("expected auth method 'key', got '%s'", config.AuthMethod)
	}
	if config.Vtysh != "vtysh" {
		t.Errorf("expected vtysh 'vtysh', got '%s'", config.Vtysh)
	}
	if config.ConnectionTimeout != 30*time.Second {
		t.Errorf("expected connection timeout 30s, got %v", config.ConnectionTimeout)
	}
}

func TestConfigValidation(t *testing.T) {
	keyPath := writeTestKey(t)

	tests := []struct {
		name        string
		modifyFunc  func(*Config)
		expectError bool
		errorMsg    string
	}{
		{
			name: "valid password config",
			modifyFunc: func(c *Config) {
				c.AuthMethod = AuthMethodPassword
				c.Password = "secret"
			},
		},
		{
			name: "valid key config",
			modifyFunc: func(c *Config) {
				c.PrivateKeyPath = keyPath
			},
		},
		{
			name:        "missing host",
			modifyFunc:  func(c *Config) { c.Host = "" },
			expectError: true,
			errorMsg:    "host is required",
		},
		{
			name:        "invalid port",
			modifyFunc:  func(c *Config) { c.Port = 70000 },
			expectError: true,
			errorMsg:    "invalid port",
		},
		{
			name:        "missing user",
			modifyFunc:  func(c *Config) { c.User = "" },
			expectError: true,
			errorMsg:    "user is required",
		},
		{
			name: "password auth without password",
			modifyFunc: func(c *Config) {
				c.AuthMethod = AuthMethodPassword
			},
			expectError: true,
			errorMsg:    "password is required",
		},
		{
			name: "missing key file",
			modifyFunc: func(c *Config) {
				c.PrivateKeyPath = filepath.Join(t.TempDir(), "missing")
			},
			expectError: true,
			errorMsg:    "private key file not found",
		},
		{
			name: "agent auth without socket",
			modifyFunc: func(c *Config) {
				t.Setenv("SSH_AUTH_SOCK", "")
				c.AuthMethod = AuthMethodAgent
			},
			expectError: true,
			errorMsg:    "SSH_AUTH_SOCK",
		},
		{
			name: "unsupported auth method",
			modifyFunc: func(c *Config) {
				c.AuthMethod = "kerberos"
			},
			expectError: true,
			errorMsg:    "unsupported auth method",
		},
		{
			name: "strict checking without known_hosts",
			modifyFunc: func(c *Config) {
				c.PrivateKeyPath = keyPath
				c.KnownHostsPath = ""
			},
			expectError: true,
			errorMsg:    "known_hosts",
		},
		{
			name: "zero command timeout",
			modifyFunc: func(c *Config) {
				c.PrivateKeyPath = keyPath
				c.CommandTimeout = 0
			},
			expectError: true,
			errorMsg:    "command timeout",
		},
		{
			name: "empty vtysh path",
			modifyFunc: func(c *Config) {
				c.PrivateKeyPath = keyPath
				c.Vtysh = ""
			},
			expectError: true,
			errorMsg:    "vtysh path",
		},
		{
			name: "proxy without user",
			modifyFunc: func(c *Config) {
				c.PrivateKeyPath = keyPath
				c.ProxyHost = "bastion.example.net"
			},
			expectError: true,
			errorMsg:    "proxy user is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig("192.0.2.10", "quagga")
			tt.modifyFunc(config)

			err := config.Validate()
			if tt.expectError {
				if err == nil {
					t.Fatalf("expected error containing '%s', got nil", tt.errorMsg)
				}
				if !strings.Contains(err.Error(), tt.errorMsg) {
					t.Errorf("expected error containing '%s', got '%v'", tt.errorMsg, err)
				}
				return
			}
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestConfigAddress(t *testing.T) {
	config := DefaultConfig("192.0.2.10", "quagga")
	config.Port = 2222

	if address := config.Address(); address != "192.0.2.10:2222" {
		t.Errorf("expected address '192.0.2.10:2222', got '%s'", address)
	}

	config.Host = "2001:db8::1"
	if address := config.Address(); address != "[2001:db8::1]:2222" {
		t.Errorf("expected bracketed IPv6 address, got '%s'", address)
	}
}

func TestConfigProxyAddress(t *testing.T) {
	config := DefaultConfig("192.0.2.10", "quagga")

	if config.IsProxyEnabled() || config.ProxyAddress() != "" {
		t.Error("expected proxy to be disabled")
	}

	config.ProxyHost = "bastion.example.net"
	config.ProxyPort = 2222
	if !config.IsProxyEnabled() {
		t.Error("expected proxy to be enabled")
	}
	if address := config.ProxyAddress(); address != "bastion.example.net:2222" {
		t.Errorf("expected proxy address 'bastion.example.net:2222', got '%s'", address)
	}
}

func TestBuildSSHClientConfig(t *testing.T) {
	t.Run("password authentication", func(t *testing.T) {
		config := DefaultConfig("192.0.2.10", "quagga")
		config.AuthMethod = AuthMethodPassword
		config.Password = "secret"
		config.StrictHostKeyChecking = false

		clientConfig, closer, err := config.BuildSSHClientConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer closer()

		if clientConfig.User != "quagga" {
			t.Errorf("expected user 'quagga', got '%s'", clientConfig.User)
		}
		// password and keyboard-interactive
		if len(clientConfig.Auth) != 2 {
			t.Errorf("expected 2 auth methods, got %d", len(clientConfig.Auth))
		}
		if clientConfig.Timeout != 30*time.Second {
			t.Errorf("expected timeout 30s, got %v", clientConfig.Timeout)
		}
	})

	t.Run("key authentication", func(t *testing.T) {
		config := DefaultConfig("192.0.2.10", "quagga")
		config.PrivateKeyPath = writeTestKey(t)
		config.StrictHostKeyChecking = false

		clientConfig, closer, err := config.BuildSSHClientConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer closer()

		if len(clientConfig.Auth) != 1 {
			t.Errorf("expected 1 auth method, got %d", len(clientConfig.Auth))
		}
	})

	t.Run("garbage key", func(t *testing.T) {
		keyPath := filepath.Join(t.TempDir(), "garbage")
		if err := os.WriteFile(keyPath, []byte("not a key"), 0o600); err != nil {
			t.Fatal(err)
		}
		config := DefaultConfig("192.0.2.10", "quagga")
		config.PrivateKeyPath = keyPath

		if _, _, err := config.BuildSSHClientConfig(); err == nil {
			t.Error("expected parse error, got nil")
		}
	})

	t.Run("known hosts file is loaded", func(t *testing.T) {
		pub, _, err := generateTestKey()
		if err != nil {
			t.Fatal(err)
		}
		knownHosts := filepath.Join(t.TempDir(), "known_hosts")
		line := "192.0.2.10 " + string(ssh.MarshalAuthorizedKey(pub))
		if err := os.WriteFile(knownHosts, []byte(line), 0o600); err != nil {
			t.Fatal(err)
		}

		config := DefaultConfig("192.0.2.10", "quagga")
		config.PrivateKeyPath = writeTestKey(t)
		config.KnownHostsPath = knownHosts

		clientConfig, closer, err := config.BuildSSHClientConfig()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		defer closer()

		addr := &net.TCPAddr{IP: net.ParseIP("192.0.2.10"), Port: 22}
		if err := clientConfig.HostKeyCallback("192.0.2.10:22", addr, pub); err != nil {
			t.Errorf("expected known key to be accepted: %v", err)
		}
		other, _, _ := generateTestKey()
		if err := clientConfig.HostKeyCallback("192.0.2.10:22", addr, other); err == nil {
			t.Error("expected unknown key to be rejected")
		}
	})
}

// writeTestKey writes a fresh unencrypted ED25519 key in OpenSSH format.
func writeTestKey(t *testing.T) string {
	t.Helper()

	_, privKey, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	pemBlock, err := ssh.MarshalPrivateKey(privKey, "")
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}

	keyPath := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(keyPath, pem.EncodeToMemory(pemBlock), 0o600); err != nil {
		t.Fatalf("failed to write key: %v", err)
	}
	return keyPath
}
