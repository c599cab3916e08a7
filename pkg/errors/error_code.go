package errors

// ErrorCode identifies the failure class an error belongs to. The ranges
// mirror the engine's error taxonomy: configuration problems surface
// synchronously at session creation, everything else during a run.
type ErrorCode int

const (
	// General errors (1-99)
	ErrCodeUnknown ErrorCode = 1

	// Configuration errors (100-199): rejected at session creation,
	// the session never starts.
	ErrCodeInvalidParameter    ErrorCode = 100
	ErrCodeInvalidWindow       ErrorCode = 101
	ErrCodeInvalidInterval     ErrorCode = 102
	ErrCodeUnknownAlgorithm    ErrorCode = 103
	ErrCodeInvalidConfig       ErrorCode = 104
	ErrCodeMissingParameter    ErrorCode = 105
	ErrCodeUnknownVariant      ErrorCode = 106
	ErrCodeInvalidRange        ErrorCode = 107
	ErrCodeSchemaVersion       ErrorCode = 108
	ErrCodeUnsupportedCategory ErrorCode = 109

	// Data source errors (200-299)
	ErrCodeDataSourceUnavailable ErrorCode = 200
	ErrCodeQueryFailed           ErrorCode = 201
	ErrCodeDataNotFound          ErrorCode = 202
	ErrCodeDatasetCorrupt        ErrorCode = 203
	ErrCodeDatasetLoadFailed     ErrorCode = 204

	// Computation errors (300-399): caught per point, the session continues
	// until the error-rate threshold escalates it.
	ErrCodeComputationFailed ErrorCode = 300
	ErrCodeAlgorithmPanic    ErrorCode = 301
	ErrCodeValueOutOfBounds  ErrorCode = 302

	// Session errors (400-499)
	ErrCodeSessionNotFound      ErrorCode = 400
	ErrCodeSessionTerminal      ErrorCode = 401
	ErrCodeSessionNotCancelable ErrorCode = 402
	ErrCodeErrorRateExceeded    ErrorCode = 403

	// Persistence errors (500-599)
	ErrCodeWriteFailed      ErrorCode = 500
	ErrCodeFlushFailed      ErrorCode = 501
	ErrCodeSinkClosed       ErrorCode = 502
	ErrCodeRetriesExhausted ErrorCode = 503

	// Feed / market data errors (700-799)
	ErrCodeFeedDisconnected ErrorCode = 700
	ErrCodeFeedParseFailed  ErrorCode = 701
	ErrCodeFetchFailed      ErrorCode = 702
	ErrCodeInvalidProvider  ErrorCode = 703
)
