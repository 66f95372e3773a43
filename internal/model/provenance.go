package model

// Source records which path produced a Result.
type Source string

const (
	SourceConsensus       Source = "QUORUM_CONSENSUS"
	SourceSingleBackend   Source = "SINGLE_BACKEND"
	SourceDomainLookup    Source = "UW_MAPPING"
	SourceTextScan        Source = "TEXT_SCAN"
	SourcePartialRecovery Source = "PARTIAL_RECOVERY"
	SourceLearnedPattern  Source = "LEARNED_PATTERN"
)

// ConsensusMarker prefixes the notes of a quorum-voted result.
const ConsensusMarker = "quorum consensus"

// ManualReviewNote is appended to partial-recovery results.
const ManualReviewNote = "manual check required"

// SingleStrategy reports whether s names a single, non-voting strategy.
func (s Source) SingleStrategy() bool {
	switch s {
	case SourceSingleBackend, SourceDomainLookup, SourceTextScan, SourceLearnedPattern:
		return true
	}
	return false
}
