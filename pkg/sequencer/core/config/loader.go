package config

import (
	"fmt"
	"os"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/exception"
	"github.com/tigerroll/sequencer/pkg/sequencer/support/util/logger"
)

const (
	moduleName = "config"
	// envPrefix is prepended to every environment override (e.g., SEQUENCER_SYSTEM_LOGGING_LEVEL).
	envPrefix = "SEQUENCER_"
)

// loadConfig loads configuration in four layers: defaults, embedded YAML (after
// placeholder expansion), typed environment overrides and adapter environment overrides.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig, expander EnvironmentExpander) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else if err := godotenv.Load(); err != nil {
		logger.Debugf(".env file not found or could not be loaded: %v", err)
	}

	if expander == nil {
		expander = NewOsEnvironmentExpander()
	}
	expanded, err := expander.Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewInternalError(moduleName, "failed to expand environment placeholders", err)
	}

	cfg := NewConfig()

	var yamlConfig Config
	if err := yaml.Unmarshal(expanded, &yamlConfig); err != nil {
		return nil, exception.NewValidationError(moduleName, "failed to unmarshal embedded config", err)
	}
	mergeConfig(cfg, &yamlConfig)

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewValidationError(moduleName, "failed to load config from environment variables", err)
	}
	loadAdapterOverridesFromEnv(cfg, os.Environ())

	cfg.EmbeddedConfig = embeddedConfig
	return cfg, nil
}

// LoadConfig loads and validates the configuration. Placeholders in embeddedConfig
// are expanded from the process environment after envFilePath is loaded.
//
// Parameters:
//
//	envFilePath: The path of the .env file. A missing file is not an error.
//	embeddedConfig: The YAML document embedded into the executable.
//
// Returns:
//
//	The loaded `*Config`, or an error if parsing or validation fails.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	cfg, err := loadConfig(envFilePath, embeddedConfig, NewOsEnvironmentExpander())
	if err != nil {
		return nil, err
	}
	if err := validate(cfg); err != nil {
		return nil, exception.NewValidationError(moduleName, "invalid configuration", err)
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	switch cfg.Sequencer.Infrastructure.Repository {
	case "sql", "inmemory":
	default:
		return fmt.Errorf("infrastructure.repository must be 'sql' or 'inmemory', got '%s'", cfg.Sequencer.Infrastructure.Repository)
	}
	switch cfg.Sequencer.Telemetry.MetricsBackend {
	case "prometheus", "otel", "none":
	default:
		return fmt.Errorf("telemetry.metrics_backend must be 'prometheus', 'otel' or 'none', got '%s'", cfg.Sequencer.Telemetry.MetricsBackend)
	}
	switch cfg.Sequencer.Telemetry.TracesExporter {
	case "otlp-grpc", "otlp-http", "none":
	default:
		return fmt.Errorf("telemetry.traces_exporter must be 'otlp-grpc', 'otlp-http' or 'none', got '%s'", cfg.Sequencer.Telemetry.TracesExporter)
	}
	if cfg.Sequencer.Capability.TTLSeconds <= 0 {
		return fmt.Errorf("capability.ttl_seconds must be positive, got %d", cfg.Sequencer.Capability.TTLSeconds)
	}
	switch cfg.Sequencer.Server.Mode {
	case "release", "debug", "test":
	default:
		return fmt.Errorf("server.mode must be 'release', 'debug' or 'test', got '%s'", cfg.Sequencer.Server.Mode)
	}
	return nil
}

// mergeConfig copies every non-zero value of source into dest.
func mergeConfig(dest, source *Config) {
	d, s := &dest.Sequencer, &source.Sequencer

	if s.System.Timezone != "" {
		d.System.Timezone = s.System.Timezone
	}
	if s.System.Logging.Level != "" {
		d.System.Logging.Level = s.System.Logging.Level
	}
	if s.System.Logging.SQLLevel != "" {
		d.System.Logging.SQLLevel = s.System.Logging.SQLLevel
	}

	if s.Server.Address != "" {
		d.Server.Address = s.Server.Address
	}
	if s.Server.ReadTimeoutSeconds != 0 {
		d.Server.ReadTimeoutSeconds = s.Server.ReadTimeoutSeconds
	}
	if s.Server.WriteTimeoutSeconds != 0 {
		d.Server.WriteTimeoutSeconds = s.Server.WriteTimeoutSeconds
	}
	if s.Server.Mode != "" {
		d.Server.Mode = s.Server.Mode
	}

	mergeInfrastructureConfig(&d.Infrastructure, &s.Infrastructure)
	mergeTelemetryConfig(&d.Telemetry, &s.Telemetry)

	if s.Capability.TTLSeconds != 0 {
		d.Capability.TTLSeconds = s.Capability.TTLSeconds
	}

	if s.AdapterConfigs != nil {
		if d.AdapterConfigs == nil {
			d.AdapterConfigs = make(map[string]interface{})
		}
		for key, value := range s.AdapterConfigs {
			d.AdapterConfigs[key] = value
		}
	}
}

func mergeInfrastructureConfig(dest, source *InfrastructureConfig) {
	if source.Repository != "" {
		dest.Repository = source.Repository
	}
	if source.SequencerDBRef != "" {
		dest.SequencerDBRef = source.SequencerDBRef
	}
	if source.ExportStorageRef != "" {
		dest.ExportStorageRef = source.ExportStorageRef
	}
	if source.ExportBaseDir != "" {
		dest.ExportBaseDir = source.ExportBaseDir
	}
	if source.ExportCompression != "" {
		dest.ExportCompression = source.ExportCompression
	}
}

func mergeTelemetryConfig(dest, source *TelemetryConfig) {
	if source.MetricsBackend != "" {
		dest.MetricsBackend = source.MetricsBackend
	}
	if source.TracesExporter != "" {
		dest.TracesExporter = source.TracesExporter
	}
	if source.MetricsExporter != "" {
		dest.MetricsExporter = source.MetricsExporter
	}
	if source.OTLPEndpoint != "" {
		dest.OTLPEndpoint = source.OTLPEndpoint
	}
	if source.OTLPInsecure {
		dest.OTLPInsecure = true
	}
	if source.ServiceName != "" {
		dest.ServiceName = source.ServiceName
	}
}

// loadStructFromEnv recursively overrides struct fields from environment variables.
// Variable names are derived from yaml tags (e.g., SEQUENCER_SERVER_ADDRESS).
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := strings.Split(fieldType.Tag.Get("yaml"), ",")[0]
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}
		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// loadAdapterOverridesFromEnv applies SEQUENCER_ADAPTER_<KIND>_<NAME>_<FIELD>=value to the
// raw adapter sections. Only connections already declared in YAML can be overridden;
// values stay strings and are converted when the section is bound.
func loadAdapterOverridesFromEnv(cfg *Config, environ []string) {
	prefix := envPrefix + "ADAPTER_"
	for _, env := range environ {
		if !strings.HasPrefix(env, prefix) {
			continue
		}
		parts := strings.SplitN(strings.TrimPrefix(env, prefix), "=", 2)
		if len(parts) != 2 {
			continue
		}
		key, value := parts[0], parts[1]

		for _, kind := range sortedKeys(cfg.Sequencer.AdapterConfigs) {
			kindPrefix := strings.ToUpper(kind) + "_"
			if !strings.HasPrefix(key, kindPrefix) {
				continue
			}
			section := cfg.AdapterSection(kind)
			rest := strings.TrimPrefix(key, kindPrefix)
			// Longest connection name first so "app_db" wins over "app".
			names := sortedKeys(section)
			sort.SliceStable(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
			for _, name := range names {
				namePrefix := strings.ToUpper(name) + "_"
				if !strings.HasPrefix(rest, namePrefix) {
					continue
				}
				conn, ok := section[name].(map[string]interface{})
				if !ok {
					break
				}
				field := strings.ToLower(strings.TrimPrefix(rest, namePrefix))
				setNested(conn, strings.Split(field, "__"), value)
				logger.Debugf("Adapter config %s.%s.%s overridden from environment.", kind, name, field)
				break
			}
		}
	}
}

// setNested sets a value at path, creating intermediate maps. A double underscore in an
// environment variable name separates nesting levels (e.g., POOL__MAX_OPEN_CONNS).
func setNested(m map[string]interface{}, path []string, value string) {
	for i, p := range path {
		if i == len(path)-1 {
			m[p] = value
			return
		}
		next, ok := m[p].(map[string]interface{})
		if !ok {
			next = make(map[string]interface{})
			m[p] = next
		}
		m = next
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// setField sets a string, integer, float or bool field from its string form.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	}
	return nil
}
