package config

import "time"

// Args are the command line flags; each one also reads an environment
// variable. Zero values leave the file or default setting untouched.
type Args struct {
	Config         string        `arg:"--config,env:PULMOSCAN_CONFIG" help:"path to a TOML config file"`
	Host           string        `arg:"--host,env:HOST" help:"listen host"`
	Port           int           `arg:"--port,env:PORT" help:"listen port"`
	Backend        string        `arg:"--backend,env:PULMOSCAN_BACKEND" help:"model backend: onnx|ultralytics"`
	ModelPath      string        `arg:"--model-path,env:PULMOSCAN_MODEL_PATH" help:"model weights path"`
	MetadataPath   string        `arg:"--metadata-path,env:PULMOSCAN_METADATA_PATH" help:"model metadata JSON path"`
	LibraryPath    string        `arg:"--ort-library,env:ONNXRUNTIME_SHARED_LIBRARY_PATH" help:"onnxruntime shared library path"`
	BridgeCommand  string        `arg:"--bridge-command,env:PULMOSCAN_BRIDGE_CMD" help:"command running the ultralytics bridge"`
	PredictTimeout time.Duration `arg:"--predict-timeout,env:PULMOSCAN_PREDICT_TIMEOUT" help:"per-request inference timeout, 0 disables"`
	TempDir        string        `arg:"--temp-dir,env:PULMOSCAN_TEMP_DIR" help:"directory for uploaded images"`
	LogLevel       string        `arg:"--log-level,env:LOG_LEVEL" help:"debug|info|warn|error"`
	LogFormat      string        `arg:"--log-format,env:LOG_FORMAT" help:"json|console"`
}

func (Args) Description() string {
	return "PulmoScan lung disease classification API"
}

// Resolve loads the config file named by the args and applies the overrides.
func (a Args) Resolve() (*Config, error) {
	cfg, err := Load(a.Config)
	if err != nil {
		return nil, err
	}
	a.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (a Args) apply(cfg *Config) {
	setString(&cfg.Server.Host, a.Host)
	if a.Port != 0 {
		cfg.Server.Port = a.Port
	}
	setString(&cfg.Model.Backend, a.Backend)
	setString(&cfg.Model.Path, a.ModelPath)
	setString(&cfg.Model.MetadataPath, a.MetadataPath)
	setString(&cfg.Model.LibraryPath, a.LibraryPath)
	setString(&cfg.Model.BridgeCommand, a.BridgeCommand)
	if a.PredictTimeout != 0 {
		cfg.Model.PredictTimeout = a.PredictTimeout
	}
	setString(&cfg.Upload.TempDir, a.TempDir)
	setString(&cfg.Log.Level, a.LogLevel)
	setString(&cfg.Log.Format, a.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
