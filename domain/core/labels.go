package core

import "strings"

// NormalizeTip canonicalizes a species identifier so that observation rows
// and phylogeny tip labels match regardless of case and space/underscore
// conventions ("Quercus robur" == "quercus_robur").
func NormalizeTip(label string) string {
	s := strings.TrimSpace(label)
	s = strings.ToLower(s)
	s = strings.Join(strings.Fields(s), "_")
	s = strings.ReplaceAll(s, " ", "_")
	for strings.Contains(s, "__") {
		s = strings.ReplaceAll(s, "__", "_")
	}
	return s
}
