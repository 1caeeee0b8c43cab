package config

// Config is the root configuration.
type Config struct {
	Storage  StorageSection  `koanf:"storage"`
	Journal  JournalSection  `koanf:"journal"`
	Database DatabaseSection `koanf:"database"`
	Log      LogSection      `koanf:"log"`
	Metrics  MetricsSection  `koanf:"metrics"`
}

// StorageSection configures the page store.
type StorageSection struct {
	// Engine is "badger" or "memory".
	Engine string `koanf:"engine"`

	// DataDir is the badger directory. Ignored by the memory engine.
	DataDir string `koanf:"data_dir"`

	// Compression is "none" or "zstd".
	Compression string `koanf:"compression"`

	Badger BadgerSection `koanf:"badger"`
}

// BadgerSection tunes the badger engine.
type BadgerSection struct {
	GCInterval       string  `koanf:"gc_interval"`
	GCThreshold      float64 `koanf:"gc_threshold"`
	CacheSize        int64   `koanf:"cache_size"`
	ValueLogFileSize int64   `koanf:"value_log_file_size"`
	MemTableSize     int64   `koanf:"memtable_size"`
	SyncWrites       bool    `koanf:"sync_writes"`
}

// JournalSection configures journal files.
type JournalSection struct {
	// Suffix turns a database name into its journal name.
	Suffix string `koanf:"suffix"`
}

// DatabaseSection configures database files.
type DatabaseSection struct {
	SectorSize int `koanf:"sector_size"`

	// PageSize is used by new databases until a whole page is written.
	// Zero adopts the size of the first write.
	PageSize int64 `koanf:"page_size"`
}

// LogSection configures logging.
type LogSection struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// MetricsSection configures Prometheus metrics.
type MetricsSection struct {
	Namespace string `koanf:"namespace"`

	// Addr is where pjctl serve exposes /metrics.
	Addr string `koanf:"addr"`

	// RateLimit caps requests per second to the metrics server. Zero
	// disables. pjctl serve re-reads it when the config file changes.
	RateLimit int `koanf:"rate_limit"`
}
