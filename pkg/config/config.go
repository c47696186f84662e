package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	LLM struct {
		APIKey         string  `yaml:"api_key"`
		Model          string  `yaml:"model"`
		EmbeddingModel string  `yaml:"embedding_model"`
		MaxTokens      int     `yaml:"max_tokens"`
		Temperature    float64 `yaml:"temperature"`
		TimeoutSec     int     `yaml:"timeout_sec"`
	} `yaml:"llm"`

	Database struct {
		URL           string `yaml:"url"`
		TablePrefix   string `yaml:"table_prefix"`
		VectorDim     int    `yaml:"vector_dim"`
		ShardCapacity int    `yaml:"shard_capacity"`
		BatchSize     int    `yaml:"batch_size"`
	} `yaml:"database"`

	Discovery struct {
		PageSize int `yaml:"page_size"`
		TTLSec   int `yaml:"ttl_sec"`
	} `yaml:"discovery"`

	Retriever struct {
		Workers            int `yaml:"workers"`
		PerShardK          int `yaml:"per_shard_k"`
		PerShardTimeoutSec int `yaml:"per_shard_timeout_sec"`
		ShardBudget        int `yaml:"shard_budget"`
		MinHits            int `yaml:"min_hits"`
	} `yaml:"retriever"`

	Ranker struct {
		SimilarityWeight float64 `yaml:"similarity_weight"`
		ContentWeight    float64 `yaml:"content_weight"`
		TitleWeight      float64 `yaml:"title_weight"`
		Floor            float64 `yaml:"floor"`
	} `yaml:"ranker"`

	Assembler struct {
		MaxDocuments int `yaml:"max_documents"`
		HighBudget   int `yaml:"high_budget"`
		MediumBudget int `yaml:"medium_budget"`
		LowBudget    int `yaml:"low_budget"`
	} `yaml:"assembler"`

	Cache struct {
		Enabled bool   `yaml:"enabled"`
		Addr    string `yaml:"addr"`
		TTLSec  int    `yaml:"ttl_sec"`
	} `yaml:"cache"`

	Scraper struct {
		MaxDepth          int      `yaml:"max_depth"`
		RateLimit         float64  `yaml:"rate_limit"`
		IgnorePatterns    []string `yaml:"ignore_patterns"`
		AllowedExtensions []string `yaml:"allowed_extensions"`
	} `yaml:"scraper"`

	Processor struct {
		ChunkSize    int `yaml:"chunk_size"`
		ChunkOverlap int `yaml:"chunk_overlap"`
	} `yaml:"processor"`

	Server struct {
		Port     string `yaml:"port"`
		LogLevel string `yaml:"log_level"`
	} `yaml:"server"`
}

func LoadConfig(path string) (*Config, error) {
	// If no path provided, try default locations
	if path == "" {
		locations := []string{
			"config.yaml",
			"config.yml",
			filepath.Join(os.Getenv("HOME"), ".config/huskychat/config.yaml"),
			"/etc/huskychat/config.yaml",
		}

		for _, loc := range locations {
			if _, err := os.Stat(loc); err == nil {
				path = loc
				break
			}
		}
	}

	if path == "" {
		return getDefaultConfig()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %v", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %v", err)
	}

	mergeWithEnv(&config)
	applyDefaults(&config)

	return &config, nil
}

func getDefaultConfig() (*Config, error) {
	config := &Config{}
	applyDefaults(config)
	mergeWithEnv(config)
	return config, nil
}

func applyDefaults(config *Config) {
	if config.LLM.Model == "" {
		config.LLM.Model = "gpt-4.1-mini"
	}
	if config.LLM.EmbeddingModel == "" {
		config.LLM.EmbeddingModel = "text-embedding-3-small"
	}
	if config.LLM.MaxTokens == 0 {
		config.LLM.MaxTokens = 300
	}
	if config.LLM.Temperature == 0 {
		config.LLM.Temperature = 0.2
	}
	if config.LLM.TimeoutSec == 0 {
		config.LLM.TimeoutSec = 15
	}

	if config.Database.TablePrefix == "" {
		config.Database.TablePrefix = "documents"
	}
	if config.Database.VectorDim == 0 {
		config.Database.VectorDim = 1536
	}
	if config.Database.ShardCapacity == 0 {
		config.Database.ShardCapacity = 25
	}
	if config.Database.BatchSize == 0 {
		config.Database.BatchSize = 100
	}

	if config.Discovery.PageSize == 0 {
		config.Discovery.PageSize = 1000
	}
	if config.Discovery.TTLSec == 0 {
		config.Discovery.TTLSec = 300
	}

	if config.Retriever.Workers == 0 {
		config.Retriever.Workers = 12
	}
	if config.Retriever.PerShardK == 0 {
		config.Retriever.PerShardK = 10
	}
	if config.Retriever.PerShardTimeoutSec == 0 {
		config.Retriever.PerShardTimeoutSec = 5
	}
	if config.Retriever.ShardBudget == 0 {
		config.Retriever.ShardBudget = 150
	}
	if config.Retriever.MinHits == 0 {
		config.Retriever.MinHits = 30
	}

	if config.Ranker.SimilarityWeight == 0 {
		config.Ranker.SimilarityWeight = 0.6
	}
	if config.Ranker.ContentWeight == 0 {
		config.Ranker.ContentWeight = 0.3
	}
	if config.Ranker.TitleWeight == 0 {
		config.Ranker.TitleWeight = 0.1
	}
	if config.Ranker.Floor == 0 {
		config.Ranker.Floor = 0.1
	}

	if config.Assembler.MaxDocuments == 0 {
		config.Assembler.MaxDocuments = 5
	}
	if config.Assembler.HighBudget == 0 {
		config.Assembler.HighBudget = 800
	}
	if config.Assembler.MediumBudget == 0 {
		config.Assembler.MediumBudget = 600
	}
	if config.Assembler.LowBudget == 0 {
		config.Assembler.LowBudget = 400
	}

	if config.Cache.Addr == "" {
		config.Cache.Addr = "localhost:6379"
	}
	if config.Cache.TTLSec == 0 {
		config.Cache.TTLSec = 3600
	}

	if config.Scraper.MaxDepth == 0 {
		config.Scraper.MaxDepth = 3
	}
	if config.Scraper.RateLimit == 0 {
		config.Scraper.RateLimit = 2.0
	}
	if len(config.Scraper.AllowedExtensions) == 0 {
		config.Scraper.AllowedExtensions = []string{".html", ".htm", "/", ""}
	}

	if config.Processor.ChunkSize == 0 {
		config.Processor.ChunkSize = 1000
	}
	if config.Processor.ChunkOverlap == 0 {
		config.Processor.ChunkOverlap = 200
	}

	if config.Server.Port == "" {
		config.Server.Port = "8080"
	}
	if config.Server.LogLevel == "" {
		config.Server.LogLevel = "info"
	}
}

func mergeWithEnv(config *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		config.LLM.APIKey = key
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		config.LLM.Model = model
	}
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		config.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Cache.Addr = addr
		config.Cache.Enabled = true
	}
	if port := os.Getenv("PORT"); port != "" {
		config.Server.Port = port
	}
}

// Duration helpers for the *_sec fields.

func (c *Config) LLMTimeout() time.Duration {
	return time.Duration(c.LLM.TimeoutSec) * time.Second
}

func (c *Config) DiscoveryTTL() time.Duration {
	return time.Duration(c.Discovery.TTLSec) * time.Second
}

func (c *Config) PerShardTimeout() time.Duration {
	return time.Duration(c.Retriever.PerShardTimeoutSec) * time.Second
}

func (c *Config) CacheTTL() time.Duration {
	return time.Duration(c.Cache.TTLSec) * time.Second
}
