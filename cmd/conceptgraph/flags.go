package conceptgraph

import (
	"github.com/spf13/cobra"

	"github.com/soundprediction/conceptgraph/pkg/config"
)

// addDatabaseFlags registers the storage flags shared by all commands.
func addDatabaseFlags(cmd *cobra.Command) {
	cmd.Flags().String("db-driver", "badger", "Database driver (memory, badger, neo4j, postgres, sqlite)")
	cmd.Flags().String("db-uri", "./conceptgraph_db", "Database URI, DSN or path")
	cmd.Flags().String("db-username", "", "Database username (neo4j)")
	cmd.Flags().String("db-password", "", "Database password (neo4j)")
	cmd.Flags().String("db-database", "", "Database name (neo4j)")
}

// addPipelineFlags registers language model and pipeline flags.
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().String("nlp-provider", "gemini", "Language model provider (gemini, openai)")
	cmd.Flags().String("nlp-model", "", "Language model name")
	cmd.Flags().String("nlp-api-key", "", "Language model API key")
	cmd.Flags().String("nlp-base-url", "", "Language model base URL (OpenAI-compatible services)")
	cmd.Flags().Float32("nlp-temperature", 0.2, "Language model temperature")
	cmd.Flags().Int("nlp-max-tokens", 8192, "Language model max output tokens")

	cmd.Flags().String("upload-dir", "uploads", "Directory for uploaded documents")
	cmd.Flags().Float64("match-threshold", 0.6, "Minimum name similarity for reusing an existing concept")
	cmd.Flags().Bool("keep-uploads", false, "Keep uploaded files after processing")
	cmd.Flags().Bool("batch-dedupe", false, "Match candidates against concepts created earlier in the same batch")
	cmd.Flags().String("redis-addr", "", "Redis address for the distributed batch lock")

	cmd.Flags().String("telemetry-parquet-path", "", "Path to directory for telemetry (errors and token usage)")
}

// overrideConfigWithFlags copies every flag the user set onto cfg. Flags a
// command does not register are ignored.
func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	if v, ok := changedString(cmd, "log-level"); ok {
		cfg.Log.Level = v
	}

	// Server flags
	if v, ok := changedString(cmd, "host"); ok {
		cfg.Server.Host = v
	}
	if v, ok := changedInt(cmd, "port"); ok {
		cfg.Server.Port = v
	}
	if v, ok := changedString(cmd, "mode"); ok {
		cfg.Server.Mode = v
	}

	// Database flags
	if v, ok := changedString(cmd, "db-driver"); ok {
		cfg.Database.Driver = v
	}
	if v, ok := changedString(cmd, "db-uri"); ok {
		cfg.Database.URI = v
	}
	if v, ok := changedString(cmd, "db-username"); ok {
		cfg.Database.Username = v
	}
	if v, ok := changedString(cmd, "db-password"); ok {
		cfg.Database.Password = v
	}
	if v, ok := changedString(cmd, "db-database"); ok {
		cfg.Database.Database = v
	}

	// NLP flags
	if v, ok := changedString(cmd, "nlp-provider"); ok {
		cfg.NLP.Provider = v
	}
	if v, ok := changedString(cmd, "nlp-model"); ok {
		cfg.NLP.Model = v
	}
	if v, ok := changedString(cmd, "nlp-api-key"); ok {
		cfg.NLP.APIKey = v
	}
	if v, ok := changedString(cmd, "nlp-base-url"); ok {
		cfg.NLP.BaseURL = v
	}
	if cmd.Flags().Changed("nlp-temperature") {
		cfg.NLP.Temperature, _ = cmd.Flags().GetFloat32("nlp-temperature")
	}
	if v, ok := changedInt(cmd, "nlp-max-tokens"); ok {
		cfg.NLP.MaxTokens = v
	}

	// Pipeline flags
	if v, ok := changedString(cmd, "upload-dir"); ok {
		cfg.Pipeline.UploadDir = v
	}
	if cmd.Flags().Changed("match-threshold") {
		cfg.Pipeline.MatchThreshold, _ = cmd.Flags().GetFloat64("match-threshold")
	}
	if cmd.Flags().Changed("keep-uploads") {
		cfg.Pipeline.KeepUploads, _ = cmd.Flags().GetBool("keep-uploads")
	}
	if cmd.Flags().Changed("batch-dedupe") {
		cfg.Pipeline.BatchDedupe, _ = cmd.Flags().GetBool("batch-dedupe")
	}
	if v, ok := changedString(cmd, "redis-addr"); ok {
		cfg.Scheduler.RedisAddr = v
	}

	// Telemetry flags
	if v, ok := changedString(cmd, "telemetry-parquet-path"); ok {
		cfg.Telemetry.ParquetPath = v
	}
}

func changedString(cmd *cobra.Command, name string) (string, bool) {
	if cmd.Flags().Lookup(name) == nil || !cmd.Flags().Changed(name) {
		return "", false
	}
	v, err := cmd.Flags().GetString(name)
	return v, err == nil
}

func changedInt(cmd *cobra.Command, name string) (int, bool) {
	if cmd.Flags().Lookup(name) == nil || !cmd.Flags().Changed(name) {
		return 0, false
	}
	v, err := cmd.Flags().GetInt(name)
	return v, err == nil
}
