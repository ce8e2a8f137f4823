package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"gopkg.in/yaml.v3"
)

// InitConfig writes a default configuration file to the default location and
// returns its path. An existing file is only replaced when force is set.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a default configuration file to path, creating
// parent directories as needed.
func InitConfigToPath(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists at %s (use --force to overwrite)", path)
		}
	}

	return SaveConfig(GetDefaultConfig(), path)
}

// SaveConfig renders cfg as a commented YAML file at path.
func SaveConfig(cfg *Config, path string) error {
	content, err := generateYAMLWithComments(cfg)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// 0600: the file may contain password hashes and service credentials
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// generateYAMLWithComments renders the configuration with explanatory comments.
func generateYAMLWithComments(cfg *Config) (string, error) {
	tmpl, err := template.New("config").Funcs(template.FuncMap{
		"section": yamlSection,
		"quote":   yamlQuote,
	}).Parse(configTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse config template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, cfg); err != nil {
		return "", fmt.Errorf("failed to render config: %w", err)
	}
	return buf.String(), nil
}

// yamlSection marshals a backend option map as a nested block indented by
// indent spaces. Empty maps render as "{}" on the key line.
func yamlSection(indent int, options map[string]any) (string, error) {
	if len(options) == 0 {
		return " {}", nil
	}

	out, err := yaml.Marshal(options)
	if err != nil {
		return "", err
	}

	pad := strings.Repeat(" ", indent)
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	for i, line := range lines {
		lines[i] = pad + line
	}
	return "\n" + strings.Join(lines, "\n"), nil
}

// yamlQuote renders s as a YAML scalar, quoting when needed.
func yamlQuote(s string) (string, error) {
	out, err := yaml.Marshal(s)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(out), "\n"), nil
}

const configTemplate = `# DocFTP Configuration File
#
# Every value can be overridden with an environment variable named after its
# path, e.g. DOCFTP_LOGGING_LEVEL=DEBUG.

logging:
  # Minimum level: DEBUG, INFO, WARN, ERROR
  level: {{.Logging.Level}}
  # Output format: text or json
  format: {{.Logging.Format}}
  # stdout, stderr, or a file path
  output: {{quote .Logging.Output}}

server:
  # Maximum time to wait for adapters to stop
  shutdown_timeout: {{.Server.ShutdownTimeout}}
  metrics:
    # Expose Prometheus metrics on http://<host>:<port>/metrics
    enabled: {{.Server.Metrics.Enabled}}
    port: {{.Server.Metrics.Port}}

backend:
  # Document backend: memory, badger, s3 or mongo
  type: {{.Backend.Type}}

  # Accounts for the memory and badger backends.
  # Generate hashes with: docftp hash-password
  users:{{if not .Backend.Users}} []{{end}}
{{- range .Backend.Users}}
    - username: {{quote .Username}}
      password_hash: {{quote .PasswordHash}}
{{- end}}

  # In-memory backend (data is lost on restart)
  memory:{{section 4 .Backend.Memory}}

  # Embedded persistent backend
  badger:{{section 4 .Backend.Badger}}

  # S3-compatible object storage: buckets are databases, key prefixes are
  # collections. FTP users log in with access key id / secret access key.
  s3:{{section 4 .Backend.S3}}

  # MongoDB: FTP users log in with MongoDB credentials (SCRAM-SHA-256)
  mongo:{{section 4 .Backend.Mongo}}

adapters:
  ftp:
    enabled: {{.Adapters.FTP.Enabled}}
    # Interface to bind; empty means all interfaces
    bind_address: {{quote .Adapters.FTP.BindAddress}}
    port: {{.Adapters.FTP.Port}}
    # 0 means unlimited
    max_connections: {{.Adapters.FTP.MaxConnections}}
    # Wait for the rest of a partially received command line
    read_timeout: {{.Adapters.FTP.ReadTimeout}}
    write_timeout: {{.Adapters.FTP.WriteTimeout}}
    # Close control connections idle for this long
    idle_timeout: {{.Adapters.FTP.IdleTimeout}}
    shutdown_timeout: {{.Adapters.FTP.ShutdownTimeout}}
    metrics_log_interval: {{.Adapters.FTP.MetricsLogInterval}}
    banner: {{quote .Adapters.FTP.Banner}}
    # Largest accepted STOR payload in bytes; 0 means unlimited
    max_upload_size: {{.Adapters.FTP.MaxUploadSize}}
    # Per-connection command rate limit; 0 disables
    commands_per_second: {{.Adapters.FTP.CommandsPerSecond}}
    command_burst: {{.Adapters.FTP.CommandBurst}}
`
