package phylo

import (
	"phylosem/domain/core"
)

// DistanceMatrix holds cophenetic distances between a fixed set of tips.
// Rows and columns share the same tip order.
type DistanceMatrix struct {
	Labels []string
	index  map[string]int
	d      [][]float64
}

// Cophenetic computes patristic distances restricted to the requested tips.
// Every requested label must be present in the tree.
func (t *Tree) Cophenetic(labels []string) (*DistanceMatrix, error) {
	n := len(labels)
	m := &DistanceMatrix{
		Labels: make([]string, n),
		index:  make(map[string]int, n),
		d:      make([][]float64, n),
	}
	tipNode := make([]int, n)
	for i, raw := range labels {
		norm := core.NormalizeTip(raw)
		idx, ok := t.tips[norm]
		if !ok {
			return nil, core.TipNotFoundError(norm)
		}
		m.Labels[i] = norm
		m.index[norm] = i
		tipNode[i] = idx
		m.d[i] = make([]float64, n)
	}

	// root-to-node depths, then d(a,b) = depth(a)+depth(b)-2*depth(lca)
	depth := make([]float64, len(t.nodes))
	level := make([]int, len(t.nodes))
	var walk func(idx int, d float64, lv int)
	walk = func(idx int, d float64, lv int) {
		depth[idx] = d
		level[idx] = lv
		for _, c := range t.nodes[idx].children {
			walk(c, d+t.nodes[c].length, lv+1)
		}
	}
	walk(t.root, 0, 0)

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			l := t.lca(tipNode[i], tipNode[j], level)
			dist := depth[tipNode[i]] + depth[tipNode[j]] - 2*depth[l]
			m.d[i][j] = dist
			m.d[j][i] = dist
		}
	}
	return m, nil
}

// lca walks both nodes up to equal depth, then in lockstep
func (t *Tree) lca(a, b int, level []int) int {
	for level[a] > level[b] {
		a = t.nodes[a].parent
	}
	for level[b] > level[a] {
		b = t.nodes[b].parent
	}
	for a != b {
		a = t.nodes[a].parent
		b = t.nodes[b].parent
	}
	return a
}

// Distance returns the cophenetic distance between two tips
func (m *DistanceMatrix) Distance(a, b string) (float64, bool) {
	i, okA := m.index[core.NormalizeTip(a)]
	j, okB := m.index[core.NormalizeTip(b)]
	if !okA || !okB {
		return 0, false
	}
	return m.d[i][j], true
}

// Has reports whether a tip is in the matrix
func (m *DistanceMatrix) Has(label string) bool {
	_, ok := m.index[core.NormalizeTip(label)]
	return ok
}

// indexOf resolves a raw species name to its row index
func (m *DistanceMatrix) indexOf(label string) (int, bool) {
	i, ok := m.index[core.NormalizeTip(label)]
	return i, ok
}

// Subset restricts the matrix to the given tips, skipping any absent ones.
// The returned matrix shares no storage with the receiver.
func (m *DistanceMatrix) Subset(labels []string) *DistanceMatrix {
	var keep []int
	for _, raw := range labels {
		if i, ok := m.index[core.NormalizeTip(raw)]; ok {
			keep = append(keep, i)
		}
	}
	out := &DistanceMatrix{
		Labels: make([]string, len(keep)),
		index:  make(map[string]int, len(keep)),
		d:      make([][]float64, len(keep)),
	}
	for a, ia := range keep {
		out.Labels[a] = m.Labels[ia]
		out.index[m.Labels[ia]] = a
		out.d[a] = make([]float64, len(keep))
		for b, ib := range keep {
			out.d[a][b] = m.d[ia][ib]
		}
	}
	return out
}
