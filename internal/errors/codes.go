// Package errors provides structured error handling for kensaku.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (corpus store, indices)
//   - 3XX: External service errors (embedding, generative model)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates corpus store and index errors.
	CategoryStorage Category = "STORAGE"
	// CategoryService indicates external service errors.
	CategoryService Category = "SERVICE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// Storage errors (200-299)
	ErrCodeStoreUnavailable = "ERR_201_STORE_UNAVAILABLE"
	ErrCodeStoreCorrupt     = "ERR_202_STORE_CORRUPT"
	ErrCodeDocumentNotFound = "ERR_203_DOCUMENT_NOT_FOUND"
	ErrCodeChunkNotFound    = "ERR_204_CHUNK_NOT_FOUND"
	ErrCodeIndexWrite       = "ERR_205_INDEX_WRITE"

	// External service errors (300-399)
	ErrCodeEmbedderUnavailable  = "ERR_301_EMBEDDER_UNAVAILABLE"
	ErrCodeGeneratorUnavailable = "ERR_302_GENERATOR_UNAVAILABLE"
	ErrCodeServiceTimeout       = "ERR_303_SERVICE_TIMEOUT"

	// Validation errors (400-499)
	ErrCodeInvalidInput  = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidQuery  = "ERR_402_INVALID_QUERY"
	ErrCodeInvalidTenant = "ERR_403_INVALID_TENANT"

	// Internal errors (500-599)
	ErrCodeInternal       = "ERR_501_INTERNAL"
	ErrCodeChunkingFailed = "ERR_502_CHUNKING_FAILED"
	ErrCodeIngestFailed   = "ERR_503_INGEST_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryInternal
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategoryService
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	// Corpus store failures are the one class the pipeline cannot degrade around.
	switch code {
	case ErrCodeStoreUnavailable, ErrCodeStoreCorrupt:
		return SeverityFatal
	}

	// Degradable external services get warning severity
	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeServiceTimeout, ErrCodeEmbedderUnavailable, ErrCodeGeneratorUnavailable:
		return true
	default:
		return false
	}
}
