// Package places maintains evolving "place" clusters learned from a stream
// of position fixes.
//
// Responsibilities: per-cluster centroid and time-mass state, the pending
// sample buffer, time-weighted consolidation with exponential forgetting,
// and great-circle repulsion between overlapping clusters.
// Key types: Cluster, Sample, Params, Registry.
//
// A Cluster is not safe for concurrent use. Registry serialises access per
// cluster and drives periodic consolidation; deciding which cluster a
// sample belongs to stays with the caller.
package places
