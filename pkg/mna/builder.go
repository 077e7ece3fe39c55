package mna

import (
	"errors"
	"fmt"

	"github.com/ohmlab/gospice/pkg/numeric"
)

var (
	// ErrNotAnalyzed reports a build before AnalyzeCircuit.
	ErrNotAnalyzed = errors.New("mna: circuit not analyzed")
	// ErrDuplicateBranch reports two components claiming the same branch name.
	ErrDuplicateBranch = errors.New("mna: duplicate branch name")
	// ErrUnknownNode reports a component node name missing from the NodeMap.
	ErrUnknownNode = errors.New("mna: unknown node name")
	// ErrNoNodes reports a component without node connections.
	ErrNoNodes = errors.New("mna: component has no nodes")
	// ErrNoUnknowns reports a circuit whose every node is ground, leaving a
	// zero-dimensional system.
	ErrNoUnknowns = errors.New("mna: circuit has no unknowns")
)

// Builder assembles the linear (G, rhs) pair for a component set. A Builder
// is built fresh for every analysis; it holds no accumulation state, and
// BuildMatrix allocates new zeroed buffers on every call so re-invocation
// with the same inputs is idempotent.
type Builder struct {
	nm *NodeMap
}

func NewBuilder() *Builder { return &Builder{} }

// AnalyzeCircuit derives the NodeMap from the component list: nodes in
// first-seen order with ground skipped, then one branch unknown per Branched
// component in list order.
func (b *Builder) AnalyzeCircuit(components []Component) (*NodeMap, error) {
	nm := newNodeMap()

	for _, c := range components {
		names := c.Nodes()
		if len(names) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrNoNodes, c.Name())
		}
		for _, name := range names {
			nm.addNode(name)
		}
	}

	for _, c := range components {
		br, ok := c.(Branched)
		if !ok {
			continue
		}
		if !nm.addBranch(br.BranchName()) {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateBranch, br.BranchName())
		}
	}

	if nm.Size() == 0 {
		return nil, ErrNoUnknowns
	}

	b.nm = nm
	return nm, nil
}

// NodeMap returns the map built by AnalyzeCircuit, or nil before it ran.
func (b *Builder) NodeMap() *NodeMap { return b.nm }

// Size returns the MNA system dimension.
func (b *Builder) Size() int {
	if b.nm == nil {
		return 0
	}
	return b.nm.Size()
}

// Validate checks that every node name used by the components is either
// ground or registered. Stamping an unknown name is silently skipped by the
// NodeMap contract, which can mask netlist bugs; callers that stamp a
// component list other than the one AnalyzeCircuit saw run Validate first.
// Validating the analyzed list itself can only fail if a component's Nodes()
// result is unstable between calls.
func (b *Builder) Validate(components []Component) error {
	if b.nm == nil {
		return ErrNotAnalyzed
	}
	for _, c := range components {
		for _, name := range c.Nodes() {
			if IsGround(name) {
				continue
			}
			if _, ok := b.nm.NodeIndex(name); !ok {
				return fmt.Errorf("%w: %q on component %s", ErrUnknownNode, name, c.Name())
			}
		}
	}
	return nil
}

// BuildMatrix stamps the given components onto freshly zeroed (G, rhs)
// buffers sized by the analyzed NodeMap.
func (b *Builder) BuildMatrix(components []Component, time float64) (*numeric.Matrix, *numeric.Vector, error) {
	if b.nm == nil {
		return nil, nil, ErrNotAnalyzed
	}

	size := b.nm.Size()
	g := numeric.NewMatrix(size, size)
	rhs := numeric.NewVector(size)

	for _, c := range components {
		if err := c.Stamp(g, rhs, b.nm, time); err != nil {
			return nil, nil, fmt.Errorf("mna: stamping %s: %w", c.Name(), err)
		}
	}
	return g, rhs, nil
}
