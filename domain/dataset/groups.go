package dataset

import "strings"

// GroupCategory is the closed set of ecological grouping labels the engine
// branches on. Raw strings are resolved once at load time; model code only
// ever sees the enum.
type GroupCategory int8

const (
	GroupUnknown GroupCategory = iota
	GroupWoody
	GroupNonWoody
	GroupSemiWoody
	GroupMycorrhizal
	GroupNonMycorrhizal
)

// String returns the canonical label for the category
func (g GroupCategory) String() string {
	switch g {
	case GroupWoody:
		return "woody"
	case GroupNonWoody:
		return "non-woody"
	case GroupSemiWoody:
		return "semi-woody"
	case GroupMycorrhizal:
		return "mycorrhizal"
	case GroupNonMycorrhizal:
		return "non-mycorrhizal"
	default:
		return "unknown"
	}
}

// ParseGroupCategory maps a raw table label onto the closed category set.
// Anything unrecognized becomes GroupUnknown rather than an error, so dirty
// labels degrade to the pooled model instead of aborting the run.
func ParseGroupCategory(raw string) GroupCategory {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "woody", "w":
		return GroupWoody
	case "non-woody", "nonwoody", "herbaceous", "h":
		return GroupNonWoody
	case "semi-woody", "semiwoody":
		return GroupSemiWoody
	case "mycorrhizal", "am", "em", "arbuscular", "ecto":
		return GroupMycorrhizal
	case "non-mycorrhizal", "nonmycorrhizal", "nm":
		return GroupNonMycorrhizal
	default:
		return GroupUnknown
	}
}

// ResolveGroups converts a raw label column to categories in one pass
func ResolveGroups(raw []string) []GroupCategory {
	out := make([]GroupCategory, len(raw))
	for i, s := range raw {
		out[i] = ParseGroupCategory(s)
	}
	return out
}
