package types

// SettingDefault describes one recognized runtime setting: its key, its
// default value (serialized the same way it is stored — as a string), and a
// one-line note on what it affects. Schema bootstrap inserts all of these
// with insert-if-absent semantics (C1).
type SettingDefault struct {
	Key          string
	DefaultValue string
	Effect       string
}

// SettingDefaults is the recognized configuration surface from spec.md §3.
// Keys are dotted namespaces; values are parsed on every read (never cached
// across mutations) into bool/float64/int/JSON as the reader requires.
var SettingDefaults = []SettingDefault{
	{"scoring.vector_weight", "0.45", "RRF list weight for vector ranking"},
	{"scoring.fts_weight", "0.25", "RRF list weight for lexical ranking"},
	{"scoring.recency_weight", "0.20", "Boost multiplier term for recency"},
	{"scoring.frequency_weight", "0.10", "Boost multiplier term for access frequency"},
	{"scoring.recency_decay", "0.05", "Base decay rate per day"},
	{"scoring.graph_weight", "0.10", "RRF list weight for graph proximity"},
	{"scoring.usefulness_weight", "0.05", "Additive/multiplicative usefulness term"},
	{"scoring.tag_boost", "0.10", "Post-fusion tag-match boost"},
	{"scoring.use_rrf", "true", "Select RRF vs legacy weighted-sum"},
	{"scoring.rrf_k", "60", "RRF rank-smoothing constant"},
	{"scoring.min_score", "0.15", "Minimum legacy-mode score to admit a result"},
	{"scoring.rrf_min_score", "0.001", "Minimum RRF-mode score to admit a result"},
	{"dedup.enabled", "true", "Enable semantic dedup"},
	{"dedup.similarity_threshold", "0.85", "Cosine threshold for semantic supersede"},
	{"dedup.candidate_pool", "200", "Recent-memory pool size for semantic dedup"},
	{"dedup.hash_enabled", "true", "Enable hash-based exact dedup"},
	{"dedup.skip_insert_on_match", "true", "Skip insert when hash dedup matches"},
	{"chunking.enabled", "true", "Enable content chunking"},
	{"chunking.max_length", "1500", "Length above which content is chunked"},
	{"chunking.target_size", "500", "Target size per chunk"},
	{"importance.auto_adjust", "true", "Enable importance adjust job"},
	{"importance.boost_threshold", "5", "Access-count threshold for importance boost"},
	{"importance.decay_age_days", "30", "Age threshold for importance decay"},
	{"trash.auto_purge_days", "30", "Purge horizon in days; 0 disables"},
	{"search.query_expansion", "false", "Enable entity-based query expansion"},
	{"search.metadata_mode", "exclude", "How benchmark/metadata memories are gated"},
	{"search.metadata_tags", "", "Tags required to include metadata memories"},
	{"retrieval_regression.min_overlap", "0.5", "Minimum overlap@k before alerting"},
	{"retrieval_regression.max_avg_shift", "3", "Maximum avg_rank_shift before alerting"},
	{"retrieval_regression.limit", "10", "Golden query result size"},
	{"retrieval_regression.create_alert_memory", "false", "Emit a summary memory on alert"},
	{"retrieval_regression.schedule_enabled", "true", "Whether the scheduler runs retrieval-regression"},
	{"retrieval_regression.schedule_hour", "6", "Hour of day (0-23) the scheduler runs retrieval-regression"},
	{"retrieval_regression.schedule_minute", "0", "Minute of hour the scheduler runs retrieval-regression"},
	{"backup.max_count", "30", "Number of rotated backups to retain"},
	{"backup.copy_to", "", "Secondary directory to mirror backups into"},
	{"embedding.model", "", "Embedding provider model identifier"},
	{"embedding.dimensions", "384", "Embedding vector dimension D"},
}

// DefaultValueFor returns the default string value for key, or "" with ok=false.
func DefaultValueFor(key string) (string, bool) {
	for _, d := range SettingDefaults {
		if d.Key == key {
			return d.DefaultValue, true
		}
	}
	return "", false
}
