package prompts

// Item is one user-authored prompt. Identity is positional: names may be
// blank or duplicated while editing.
type Item struct {
	Name            string `json:"name"`
	Text            string `json:"text"`
	Enabled         bool   `json:"enabled"`
	SkipSurrounding bool   `json:"skipSurrounding"`
}

// State is the full editable document: the ordered prompt list plus the
// shared before/after text wrapped around enabled items at batch time.
type State struct {
	Items      []Item `json:"items"`
	BeforeText string `json:"beforeText"`
	AfterText  string `json:"afterText"`
}

// Clone returns a deep copy; Items is the only reference field.
func (s State) Clone() State {
	out := s
	out.Items = make([]Item, len(s.Items))
	copy(out.Items, s.Items)
	return out
}

// EnabledItems returns the enabled prompts in list order.
func (s State) EnabledItems() []Item {
	var enabled []Item
	for _, item := range s.Items {
		if item.Enabled {
			enabled = append(enabled, item)
		}
	}
	return enabled
}

// Phase is the sync-gating state of the editable list. It is the single
// source of truth for whether inbound remote updates may be applied.
type Phase int

const (
	PhaseUninitialized Phase = iota
	PhaseClean
	PhaseDirty
	PhaseFlushing
)

func (p Phase) String() string {
	switch p {
	case PhaseUninitialized:
		return "uninitialized"
	case PhaseClean:
		return "clean"
	case PhaseDirty:
		return "dirty"
	case PhaseFlushing:
		return "flushing"
	default:
		return "unknown"
	}
}
