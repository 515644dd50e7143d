package position

import "fmt"

// UpstreamReadError means a vault read failed or returned malformed data.
// Any such failure aborts the whole operation: a partial aggregate would
// misrepresent total exposure on a risk-reporting surface, so there is no
// partial-success path and no retry below the calling layer.
type UpstreamReadError struct {
	MarketID uint32
	Accessor string
	Err      error
}

func (e *UpstreamReadError) Error() string {
	return fmt.Sprintf("market %d: %s: %v", e.MarketID, e.Accessor, e.Err)
}

func (e *UpstreamReadError) Unwrap() error {
	return e.Err
}

func readErr(marketID uint32, accessor string, err error) error {
	return &UpstreamReadError{MarketID: marketID, Accessor: accessor, Err: err}
}
