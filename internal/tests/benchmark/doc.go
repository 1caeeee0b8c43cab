// Package benchmark provides performance benchmarks for pagejournal.
//
// Run benchmarks with:
//
//	go test -bench=. -benchmem ./internal/tests/benchmark/...
//
// Compare page sizes or codecs:
//
//	go test -bench=BenchmarkJournalReadAt -benchmem -count=5 ./internal/tests/benchmark/... | tee new.txt
//	benchstat old.txt new.txt
package benchmark
