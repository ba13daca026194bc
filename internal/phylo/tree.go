// Package phylo provides phylogenetic tree parsing, cophenetic distances,
// and a distance-weighted neighbor predictor used to blend with the
// structural models.
package phylo

import (
	"fmt"
	"strconv"
	"strings"

	"phylosem/domain/core"
)

// node is one tree vertex; leaves carry a normalized tip label
type node struct {
	label    string
	length   float64
	parent   int
	children []int
}

// Tree is a rooted phylogeny with branch lengths
type Tree struct {
	nodes []node
	root  int
	tips  map[string]int
}

// Tips returns the normalized tip labels in parse order
func (t *Tree) Tips() []string {
	out := make([]string, 0, len(t.tips))
	for _, n := range t.nodes {
		if len(n.children) == 0 && n.label != "" {
			out = append(out, n.label)
		}
	}
	return out
}

// HasTip reports whether a normalized label is present
func (t *Tree) HasTip(label string) bool {
	_, ok := t.tips[core.NormalizeTip(label)]
	return ok
}

// ParseNewick parses a Newick string into a Tree. Tip labels are normalized
// so they can be matched against dataset species names.
func ParseNewick(s string) (*Tree, error) {
	p := &parser{src: strings.TrimSpace(s)}
	t := &Tree{tips: make(map[string]int)}
	if len(p.src) == 0 {
		return nil, core.ErrMalformedTree
	}
	root, err := p.clade(t, -1)
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == ';' {
		p.pos++
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return nil, fmt.Errorf("%w: trailing input at offset %d", core.ErrMalformedTree, p.pos)
	}
	t.root = root
	if len(t.tips) == 0 {
		return nil, core.ErrMalformedTree
	}
	return t, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

// clade parses either an internal node "(...)label:len" or a leaf "label:len"
func (p *parser) clade(t *Tree, parent int) (int, error) {
	p.skipSpace()
	idx := len(t.nodes)
	t.nodes = append(t.nodes, node{parent: parent})

	if p.pos < len(p.src) && p.src[p.pos] == '(' {
		p.pos++
		for {
			child, err := p.clade(t, idx)
			if err != nil {
				return 0, err
			}
			t.nodes[idx].children = append(t.nodes[idx].children, child)
			p.skipSpace()
			if p.pos >= len(p.src) {
				return 0, fmt.Errorf("%w: unterminated clade", core.ErrMalformedTree)
			}
			if p.src[p.pos] == ',' {
				p.pos++
				continue
			}
			if p.src[p.pos] == ')' {
				p.pos++
				break
			}
			return 0, fmt.Errorf("%w: unexpected %q at offset %d", core.ErrMalformedTree, p.src[p.pos], p.pos)
		}
	}

	label := p.token()
	if len(t.nodes[idx].children) == 0 {
		if label == "" {
			return 0, fmt.Errorf("%w: unlabeled tip at offset %d", core.ErrMalformedTree, p.pos)
		}
		norm := core.NormalizeTip(label)
		if _, dup := t.tips[norm]; dup {
			return 0, fmt.Errorf("%w: duplicate tip %q", core.ErrMalformedTree, norm)
		}
		t.nodes[idx].label = norm
		t.tips[norm] = idx
	}

	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == ':' {
		p.pos++
		raw := p.token()
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 {
			return 0, fmt.Errorf("%w: bad branch length %q", core.ErrMalformedTree, raw)
		}
		t.nodes[idx].length = v
	}
	return idx, nil
}

// token reads a label or number up to the next structural character. Labels
// may contain interior spaces ("Quercus robur"); whitespace before the
// delimiter is not part of the token.
func (p *parser) token() string {
	start := p.pos
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '(', ')', ',', ':', ';':
			return strings.TrimRight(p.src[start:p.pos], " \t\n\r")
		}
		p.pos++
	}
	return strings.TrimRight(p.src[start:p.pos], " \t\n\r")
}
