package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration settings for the RAGS build pipeline.
type Config struct {
	Storage    StorageConfig    `yaml:"storage"`
	Graph      GraphConfig      `yaml:"graph"`
	Identity   IdentityConfig   `yaml:"identity"`
	Annotator  AnnotatorConfig  `yaml:"annotator"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
}

type StorageConfig struct {
	Type        string `yaml:"type"` // "postgres", "sqlite"
	PostgresDSN string `yaml:"postgres_dsn"`
	LocalPath   string `yaml:"local_path"`
}

type GraphConfig struct {
	Host     string `yaml:"host"`
	BoltPort int    `yaml:"bolt_port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type IdentityConfig struct {
	NodeNormalizationURL      string        `yaml:"node_normalization_url"`
	EdgeNormalizationURL      string        `yaml:"edge_normalization_url"`
	DefaultPredicate          string        `yaml:"default_predicate"`
	RequestTimeout            time.Duration `yaml:"request_timeout"`
	ChunkSize                 int           `yaml:"chunk_size"`
	RequestsPerSecond         float64       `yaml:"requests_per_second"`
}

type AnnotatorConfig struct {
	ToolDownloadURL string `yaml:"tool_download_url"`
	WorkspaceDir    string `yaml:"workspace_dir"`
	ReferenceGenome string `yaml:"reference_genome"`
	UpDownDistance  int    `yaml:"up_down_distance"`
	JavaBinary      string `yaml:"java_binary"`
}

type PipelineConfig struct {
	DefaultFlushThreshold int     `yaml:"default_flush_threshold"`
	DefaultPValueCutoff   float64 `yaml:"default_p_value_cutoff"`
	WrittenSetClearAbove  int     `yaml:"written_set_clear_above"`
	// DataDir is the root every study's relative FilePath is resolved
	// against (internal/project.Manager.resolvePath).
	DataDir string `yaml:"data_dir"`
	// ReferenceGenome/ReferencePatch pick the chromosome accession table
	// used for VCF-to-HGVS conversion of GWAS rows.
	ReferenceGenome string `yaml:"reference_genome"`
	ReferencePatch  string `yaml:"reference_patch"`
}

// Default returns default configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	ragsHome := os.Getenv("RAGS_HOME")
	if ragsHome == "" {
		ragsHome = filepath.Join(homeDir, ".rags")
	}

	return &Config{
		Storage: StorageConfig{
			Type:      "sqlite",
			LocalPath: filepath.Join(ragsHome, "rags.db"),
		},
		Graph: GraphConfig{
			Host:     "localhost",
			BoltPort: 7687,
			Username: "neo4j",
			Database: "neo4j",
		},
		Identity: IdentityConfig{
			NodeNormalizationURL: "https://nodenormalization-sri.renci.org/get_normalized_nodes",
			EdgeNormalizationURL: "https://bl-lookup-sri.renci.org/resolve_predicate",
			DefaultPredicate:     "biolink:related_to",
			RequestTimeout:       30 * time.Second,
			ChunkSize:            1000,
			RequestsPerSecond:    5,
		},
		Annotator: AnnotatorConfig{
			ToolDownloadURL: "https://snpeff.blob.core.windows.net/versions/snpEff_latest_core.zip",
			WorkspaceDir:    filepath.Join(ragsHome, "snpEff"),
			ReferenceGenome: "GRCh38.99",
			UpDownDistance:  500000,
			JavaBinary:      "java",
		},
		Pipeline: PipelineConfig{
			DefaultFlushThreshold: 10000,
			DefaultPValueCutoff:   0.05,
			WrittenSetClearAbove:  100000,
			DataDir:               filepath.Join(ragsHome, "data"),
			ReferenceGenome:       "HG38",
			ReferencePatch:        "p1",
		},
	}
}

// Load loads configuration from file, falling back to environment and defaults.
func Load(path string) (*Config, error) {
	loadEnvFiles()

	v := viper.New()
	v.SetConfigType("yaml")

	cfg := Default()
	v.SetDefault("storage", cfg.Storage)
	v.SetDefault("graph", cfg.Graph)
	v.SetDefault("identity", cfg.Identity)
	v.SetDefault("annotator", cfg.Annotator)
	v.SetDefault("pipeline", cfg.Pipeline)

	v.SetEnvPrefix("RAGS")
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		ragsHome := os.Getenv("RAGS_HOME")
		if ragsHome != "" {
			v.AddConfigPath(ragsHome)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func loadEnvFiles() {
	envFiles := []string{".env.local", ".env", ".env.example"}
	for _, file := range envFiles {
		if _, err := os.Stat(file); err == nil {
			godotenv.Load(file)
		}
	}

	if ragsHome := os.Getenv("RAGS_HOME"); ragsHome != "" {
		homeEnvFile := filepath.Join(ragsHome, ".env")
		if _, err := os.Stat(homeEnvFile); err == nil {
			godotenv.Load(homeEnvFile)
		}
	}
}

func applyEnvOverrides(cfg *Config) {
	if ragsDataDir := os.Getenv("RAGS_DATA_DIR"); ragsDataDir != "" {
		cfg.Pipeline.DataDir = expandPath(ragsDataDir)
	}

	if storageType := os.Getenv("STORAGE_TYPE"); storageType != "" {
		cfg.Storage.Type = storageType
	}
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		cfg.Storage.PostgresDSN = dsn
	}
	if path := os.Getenv("LOCAL_DB_PATH"); path != "" {
		cfg.Storage.LocalPath = expandPath(path)
	}

	if host := os.Getenv("GRAPH_HOST"); host != "" {
		cfg.Graph.Host = host
	}
	if port := os.Getenv("GRAPH_BOLT_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Graph.BoltPort = p
		}
	}
	if user := os.Getenv("GRAPH_USERNAME"); user != "" {
		cfg.Graph.Username = user
	}
	if pass := os.Getenv("GRAPH_PASSWORD"); pass != "" {
		cfg.Graph.Password = pass
	}
	if db := os.Getenv("GRAPH_DATABASE"); db != "" {
		cfg.Graph.Database = db
	}

	if url := os.Getenv("NODE_NORMALIZATION_ENDPOINT"); url != "" {
		cfg.Identity.NodeNormalizationURL = url
	}
	if url := os.Getenv("EDGE_NORMALIZATION_ENDPOINT"); url != "" {
		cfg.Identity.EdgeNormalizationURL = url
	}

	if url := os.Getenv("SNPEFF_DOWNLOAD_URL"); url != "" {
		cfg.Annotator.ToolDownloadURL = url
	}
	if genome := os.Getenv("SNPEFF_REFERENCE_GENOME"); genome != "" {
		cfg.Annotator.ReferenceGenome = genome
	}
	if javaBin := os.Getenv("JAVA_BINARY"); javaBin != "" {
		cfg.Annotator.JavaBinary = javaBin
	}

	if ragsHome := os.Getenv("RAGS_HOME"); ragsHome != "" {
		cfg.Annotator.WorkspaceDir = filepath.Join(ragsHome, "snpEff")
		if cfg.Storage.Type == "sqlite" && cfg.Storage.LocalPath == Default().Storage.LocalPath {
			cfg.Storage.LocalPath = filepath.Join(ragsHome, "rags.db")
		}
	}
}

// expandPath expands ~ to the home directory.
func expandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Save writes the configuration back to a YAML file.
func (c *Config) Save(path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("storage", c.Storage)
	v.Set("graph", c.Graph)
	v.Set("identity", c.Identity)
	v.Set("annotator", c.Annotator)
	v.Set("pipeline", c.Pipeline)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// BoltURI returns the bolt:// connection string for the graph store.
func (c *GraphConfig) BoltURI() string {
	return fmt.Sprintf("bolt://%s:%d", c.Host, c.BoltPort)
}
