package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/docftp/pkg/backend"
	"gopkg.in/yaml.v3"
)

// useTempConfigDir points the default config location at a temporary directory.
func useTempConfigDir(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("XDG_CONFIG_HOME", "")
}

func TestInitConfig_Success(t *testing.T) {
	useTempConfigDir(t)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	expectedSections := []string{
		"# DocFTP Configuration File",
		"logging:",
		"server:",
		"backend:",
		"adapters:",
	}
	for _, section := range expectedSections {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		t.Fatalf("Generated config is not valid YAML: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("Expected mode 0600, got %v", info.Mode().Perm())
	}
}

func TestInitConfig_AlreadyExists(t *testing.T) {
	useTempConfigDir(t)

	if _, err := InitConfig(false); err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}

	_, err := InitConfig(false)
	if err == nil {
		t.Fatal("Expected error when config already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected 'already exists' error, got: %v", err)
	}
}

func TestInitConfig_ForceOverwrite(t *testing.T) {
	useTempConfigDir(t)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("First InitConfig failed: %v", err)
	}
	if err := os.WriteFile(configPath, []byte("modified"), 0600); err != nil {
		t.Fatalf("Failed to modify config: %v", err)
	}

	if _, err := InitConfig(true); err != nil {
		t.Fatalf("Force InitConfig failed: %v", err)
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config: %v", err)
	}
	if !strings.Contains(string(content), "# DocFTP Configuration File") {
		t.Error("Config file was not properly overwritten")
	}
}

func TestInitConfigToPath_CreatesParents(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "custom", "docftp.yaml")

	if err := InitConfigToPath(configPath, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}
	if _, err := os.Stat(configPath); err != nil {
		t.Fatalf("Config file was not created at %s: %v", configPath, err)
	}
}

func TestInitConfigToPath_AlreadyExists(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("existing"), 0644); err != nil {
		t.Fatalf("Failed to create existing file: %v", err)
	}

	err := InitConfigToPath(configPath, false)
	if err == nil {
		t.Fatal("Expected error when file already exists")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Expected 'already exists' error, got: %v", err)
	}
}

func TestGenerateYAMLWithComments_ValidConfig(t *testing.T) {
	out, err := generateYAMLWithComments(GetDefaultConfig())
	if err != nil {
		t.Fatalf("generateYAMLWithComments failed: %v", err)
	}

	for _, want := range []string{
		"level: INFO",
		"shutdown_timeout: 30s",
		"type: memory",
		"users: []",
		"db_path: /tmp/docftp-badger",
		"region: us-east-1",
		"uri: mongodb://127.0.0.1:27017",
		"port: 2121",
		"idle_timeout: 10m0s",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Generated YAML missing %q", want)
		}
	}
}

func TestSaveConfig_RoundTrip(t *testing.T) {
	cfg := GetDefaultConfig()
	cfg.Logging.Level = "DEBUG"
	cfg.Server.Metrics.Enabled = true
	cfg.Backend.Type = "badger"
	cfg.Backend.Badger["db_path"] = t.TempDir()
	cfg.Backend.Users = []backend.User{testUser(t, "alice"), testUser(t, "bob")}
	cfg.Adapters.FTP.Banner = "Welcome: DocFTP #1"
	cfg.Adapters.FTP.IdleTimeout = 90 * time.Second
	cfg.Adapters.FTP.CommandsPerSecond = 5

	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := SaveConfig(cfg, configPath); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load saved config: %v", err)
	}

	if loaded.Logging.Level != "DEBUG" {
		t.Errorf("Expected DEBUG, got %q", loaded.Logging.Level)
	}
	if !loaded.Server.Metrics.Enabled {
		t.Error("Expected metrics enabled")
	}
	if loaded.Backend.Type != "badger" || loaded.Backend.Badger["db_path"] != cfg.Backend.Badger["db_path"] {
		t.Errorf("Unexpected backend config: %+v", loaded.Backend)
	}
	if len(loaded.Backend.Users) != 2 || loaded.Backend.Users[1].Username != "bob" {
		t.Fatalf("Unexpected users: %+v", loaded.Backend.Users)
	}
	if loaded.Backend.Users[0].PasswordHash != cfg.Backend.Users[0].PasswordHash {
		t.Error("Password hash did not round-trip")
	}
	if loaded.Adapters.FTP.Banner != "Welcome: DocFTP #1" {
		t.Errorf("Banner did not round-trip: %q", loaded.Adapters.FTP.Banner)
	}
	if loaded.Adapters.FTP.IdleTimeout != 90*time.Second {
		t.Errorf("Expected idle timeout 90s, got %v", loaded.Adapters.FTP.IdleTimeout)
	}
	if loaded.Adapters.FTP.CommandsPerSecond != 5 {
		t.Errorf("Expected 5 commands per second, got %d", loaded.Adapters.FTP.CommandsPerSecond)
	}
}

func TestGeneratedConfigIsLoadable(t *testing.T) {
	useTempConfigDir(t)

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Failed to load generated config: %v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Generated config failed validation: %v", err)
	}
	if cfg.Adapters.FTP.Port != DefaultFTPPort {
		t.Errorf("Expected port %d in generated config, got %d", DefaultFTPPort, cfg.Adapters.FTP.Port)
	}
}
