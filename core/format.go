package core

// This file centralizes constants related to file formats, magic numbers,
// and other protocol-level identifiers used across the engine.

// --- Magic Numbers ---
const (
	// JournalMagicNumber identifies a command journal segment file.
	JournalMagicNumber uint32 = 0x4A524E4C // "JRNL"
	// SnapshotMagicNumber identifies a model snapshot file.
	SnapshotMagicNumber uint32 = 0x534E4150 // "SNAP"
)

// --- File Names & Suffixes ---
const (
	// JournalFileSuffix is the suffix for journal segment files.
	JournalFileSuffix = ".journal"
	// SnapshotFileSuffix is the suffix for snapshot files.
	SnapshotFileSuffix = ".snapshot"
)

// --- Protocol & Format Versions ---
const (
	// FormatVersion is the current version for all persistent file formats.
	FormatVersion uint8 = 1
)

const (
	SeqNumSize   = 8 // uint64 sequence number
	ChecksumSize = 4 // uint32 CRC32 checksum
)
