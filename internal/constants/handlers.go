// Package constants provides shared constants used across the codebase.
package constants

// Analyze endpoint constants
const (
	// FilesFormField is the multipart field carrying the images of a batch
	FilesFormField = "files"
	// FilesArrayFormField is the bracketed spelling sent by browser form libraries; it is accepted as well
	FilesArrayFormField = "files[]"

	// MultipartMemory is the part of a multipart body kept in memory before spilling to disk
	MultipartMemory = 32 << 20
)
