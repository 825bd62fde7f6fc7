// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Face matching constants
const (
	// DefaultTolerance is the maximum euclidean distance between two face
	// embeddings for them to be considered the same person
	DefaultTolerance = 0.6

	// EmbeddingDim is the length of a face embedding returned by the encoder
	EmbeddingDim = 128
)

// Ledger constants
const (
	// DateLayout is the layout of every date stored in the ledger
	DateLayout = "2006-01-02"

	// AbsentDatesSeparator joins the absent dates inside one CSV cell
	AbsentDatesSeparator = ";"
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel encoder requests
	WorkerPoolSize = 4

	// MaxImageSize is the maximum dimension (width or height) of a stored enrollment image
	MaxImageSize = 1024

	// MaxUploadSize is the maximum accepted size of an uploaded frame or enrollment image
	MaxUploadSize = 20 << 20

	// ImageExt is the extension of enrollment images written to the dataset directory
	ImageExt = ".jpg"
)
