package normalize

import (
	"errors"
	"fmt"

	"github.com/radmetrics/platform/pkg/common/models"
)

// BatchError reports a batch in which no row survived validation. It
// carries counts and one failing row so callers can diagnose whether the
// whole file is in an unexpected format.
type BatchError struct {
	Parsed  int
	Dropped int
	Sample  *models.RawImportRow
}

func (e *BatchError) Error() string {
	if e.Sample != nil {
		return fmt.Sprintf("no rows survived validation (%d parsed, %d dropped; sample timestamp %q, rvu %q)",
			e.Parsed, e.Dropped, e.Sample.TimestampText, e.Sample.RVUText)
	}
	return fmt.Sprintf("no rows survived validation (%d parsed, %d dropped)", e.Parsed, e.Dropped)
}

func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}
