// Package constants provides shared constants used across the codebase.
package constants

// Application identity
const (
	// AppName is the binary name used in CLI output and temp file prefixes
	AppName = "dupligone"

	// APIPrefix is the path prefix of every HTTP endpoint
	APIPrefix = "/api/v1"
)

// Report formatting constants
const (
	// ScoreDecimals is the number of decimals shown for quality scores in text reports
	ScoreDecimals = 3

	// MaxSkippedListed is the number of skipped images listed before the text report summarizes
	MaxSkippedListed = 20
)
