package polish

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrPaymentRequired is the gate's deny outcome: the daily free
	// allowance is used up and the paid balance is empty. It is an expected
	// terminal result, not a system failure.
	ErrPaymentRequired = errors.New("polish: free allowance exhausted and no balance")

	// ErrEmptyContent rejects requests whose text is empty after trimming.
	ErrEmptyContent = errors.New("polish: content is empty")

	// ErrInvalidStyle rejects unknown style tags.
	ErrInvalidStyle = errors.New("polish: unknown style")

	// ErrStaleLedger is returned by Store.Settle when the ledger row changed
	// between the gate read and the settlement write.
	ErrStaleLedger = errors.New("polish: ledger changed concurrently")
)

// UpstreamError reports a non-success transport response from the generation
// endpoint. The body is truncated; the full body is never stored.
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("polish: generation endpoint returned %d: %s", e.Status, e.Body)
}

// SchemaError reports an upstream payload that matched none of the known
// response shapes. It carries enough detail to add a new normalizer attempt
// later: the top-level keys that were present and, when a content field
// existed in an unrecognized shape, its type and a truncated sample.
type SchemaError struct {
	Keys         []string
	ContentShape string
	Sample       string
}

func (e *SchemaError) Error() string {
	msg := fmt.Sprintf("polish: unrecognized response format: keys received: [%s]", strings.Join(e.Keys, ", "))
	if e.ContentShape != "" {
		msg += fmt.Sprintf("; content field is %s: %s", e.ContentShape, e.Sample)
	}
	return msg
}
