package extractor

import (
	"errors"
	"fmt"
)

// Extraction stages.
const (
	StageText     = "text"
	StageConcepts = "concepts"
)

var (
	// ErrUnsupportedDocument is returned for binary files that are neither PDF nor text.
	ErrUnsupportedDocument = errors.New("unsupported document type")

	// ErrDocumentTooLarge is returned when a file exceeds the configured size cap.
	ErrDocumentTooLarge = errors.New("document exceeds size limit")

	// ErrMalformedOutput is returned when the model reply is JSON but not a concept map.
	ErrMalformedOutput = errors.New("malformed extraction output")
)

// ExtractionError reports a failure of the text or concept extraction stage.
// The graph is never modified when a batch fails with this error.
type ExtractionError struct {
	Stage string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("%s extraction failed: %v", e.Stage, e.Err)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// Is matches any *ExtractionError, or one with the same stage when target sets it.
func (e *ExtractionError) Is(target error) bool {
	t, ok := target.(*ExtractionError)
	if !ok {
		return false
	}
	return t.Stage == "" || t.Stage == e.Stage
}
