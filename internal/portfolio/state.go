package portfolio

import "fmt"

// StateKind is the closed set of portfolio presentation states. An empty
// ledger is its own state, never a summary of zeros.
type StateKind int

const (
	StateLoading StateKind = iota
	StateEmpty
	StateSuccess
	StateError
)

func (k StateKind) String() string {
	switch k {
	case StateLoading:
		return "loading"
	case StateEmpty:
		return "empty"
	case StateSuccess:
		return "success"
	case StateError:
		return "error"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

func (k StateKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// State is one emission of the tracker. Summary and Groups are set only for
// StateSuccess; Err only for StateError. FromCache and LastUpdatedMs carry
// the quote provenance so stale data can be flagged.
type State struct {
	Kind          StateKind   `json:"kind"`
	Summary       *Summary    `json:"summary,omitempty"`
	Groups        []CoinGroup `json:"groups,omitempty"`
	FromCache     bool        `json:"is_from_cache"`
	LastUpdatedMs int64       `json:"last_updated_ms"`
	Err           string      `json:"error,omitempty"`
}
