package config

import (
	"github.com/yndnr/pagejournal/internal/journal"
	"github.com/yndnr/pagejournal/internal/storage"
	"github.com/yndnr/pagejournal/internal/telemetry/metric"
	"github.com/yndnr/pagejournal/internal/vfs"
)

// Default configuration values.
const (
	EngineBadger = "badger"
	EngineMemory = "memory"

	DefaultEngine      = EngineBadger
	DefaultDataDir     = "/var/lib/pagejournal/data"
	DefaultCompression = storage.CompressionZstd
	DefaultGCInterval  = "10m"
	DefaultGCThreshold = 0.5

	// MinMemTableSize keeps one transaction above badger's 1MB value
	// threshold.
	MinMemTableSize = 8 << 20

	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"

	DefaultMetricsAddr = "127.0.0.1:9464"
)

// Default returns the default configuration.
func Default() *Config {
	badger := storage.DefaultBadgerConfig()
	return &Config{
		Storage: StorageSection{
			Engine:      DefaultEngine,
			DataDir:     DefaultDataDir,
			Compression: DefaultCompression,
			Badger: BadgerSection{
				GCInterval:       DefaultGCInterval,
				GCThreshold:      DefaultGCThreshold,
				CacheSize:        badger.CacheSize,
				ValueLogFileSize: badger.ValueLogFileSize,
				SyncWrites:       badger.SyncWrites,
			},
		},
		Journal: JournalSection{
			Suffix: journal.DefaultSuffix,
		},
		Database: DatabaseSection{
			SectorSize: vfs.DefaultSectorSize,
		},
		Log: LogSection{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
		Metrics: MetricsSection{
			Namespace: metric.DefaultNamespace,
			Addr:      DefaultMetricsAddr,
		},
	}
}

// KVConfig converts the storage section into the badger engine
// configuration.
func (c *Config) KVConfig() storage.KVConfig {
	kv := storage.DefaultKVConfig(c.Storage.DataDir)
	kv.Compression = c.Storage.Compression
	kv.Badger.GCInterval = c.Storage.Badger.GCInterval
	kv.Badger.GCThreshold = c.Storage.Badger.GCThreshold
	kv.Badger.SyncWrites = c.Storage.Badger.SyncWrites
	if c.Storage.Badger.CacheSize > 0 {
		kv.Badger.CacheSize = c.Storage.Badger.CacheSize
	}
	if c.Storage.Badger.MemTableSize > 0 {
		kv.Badger.MemTableSize = c.Storage.Badger.MemTableSize
	}
	if c.Storage.Badger.ValueLogFileSize > 0 {
		kv.Badger.ValueLogFileSize = c.Storage.Badger.ValueLogFileSize
	}
	return kv
}
