package lode

import (
	"strings"

	"github.com/justapithecus/lode/lode"
)

// Report partition keys, outermost first.
const (
	PartitionDay   = "day"
	PartitionRunID = "run_id"
)

// NewReportDataset opens the JSONL dataset that holds run reports,
// partitioned day=YYYY-MM-DD/run_id=<id>.
func NewReportDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	return lode.NewDataset(
		lode.DatasetID(dataset),
		factory,
		lode.WithHiveLayout(PartitionDay, PartitionRunID),
		lode.WithCodec(lode.NewJSONLCodec()),
	)
}

// partitionFilter selects snapshots by exact partition values.
// Empty values match anything.
type partitionFilter map[string]string

// matches reports whether any file in snap lies under every requested
// partition.
func (f partitionFilter) matches(snap *lode.DatasetSnapshot) bool {
	active := 0
	for _, v := range f {
		if v != "" {
			active++
		}
	}
	if active == 0 {
		return true
	}
	for _, file := range snap.Manifest.Files {
		if f.matchesPath(file.Path) {
			return true
		}
	}
	return false
}

// matchesPath compares whole key=value path segments, so run_id=run-1
// never matches run_id=run-10.
func (f partitionFilter) matchesPath(path string) bool {
	segments := map[string]string{}
	for _, part := range strings.Split(path, "/") {
		if k, v, ok := strings.Cut(part, "="); ok {
			segments[k] = v
		}
	}
	for k, want := range f {
		if want == "" {
			continue
		}
		if segments[k] != want {
			return false
		}
	}
	return true
}
