package mna

import "strings"

// NodeMap is the bijection from node and branch names to row/column indices
// of the MNA system. Node rows occupy [0, NumNodes), branch rows follow.
// Ground is excluded entirely: it has no row and no column. A NodeMap is
// built once per analysis and never mutated afterwards.
type NodeMap struct {
	nodes       map[string]int
	branches    map[string]int
	nodeNames   []string
	branchNames []string
}

// IsGround reports whether name denotes the ground node.
func IsGround(name string) bool {
	return name == "0" || strings.EqualFold(name, "gnd")
}

func newNodeMap() *NodeMap {
	return &NodeMap{
		nodes:    make(map[string]int),
		branches: make(map[string]int),
	}
}

func (nm *NodeMap) addNode(name string) {
	if IsGround(name) {
		return
	}
	if _, exists := nm.nodes[name]; exists {
		return
	}
	nm.nodes[name] = len(nm.nodeNames)
	nm.nodeNames = append(nm.nodeNames, name)
}

func (nm *NodeMap) addBranch(name string) bool {
	if _, exists := nm.branches[name]; exists {
		return false
	}
	nm.branches[name] = len(nm.branchNames)
	nm.branchNames = append(nm.branchNames, name)
	return true
}

func (nm *NodeMap) NumNodes() int    { return len(nm.nodeNames) }
func (nm *NodeMap) NumBranches() int { return len(nm.branchNames) }

// Size is the MNA system dimension: node count plus branch count.
func (nm *NodeMap) Size() int { return len(nm.nodeNames) + len(nm.branchNames) }

// NodeIndex looks up a node row. Ground and unregistered names report
// ok=false; stamping such an index is a no-op by contract.
func (nm *NodeMap) NodeIndex(name string) (int, bool) {
	idx, ok := nm.nodes[name]
	return idx, ok
}

// BranchIndex looks up a branch row in system coordinates.
func (nm *NodeMap) BranchIndex(name string) (int, bool) {
	idx, ok := nm.branches[name]
	if !ok {
		return 0, false
	}
	return len(nm.nodeNames) + idx, ok
}

// NodeNames returns the registered node names in index order.
func (nm *NodeMap) NodeNames() []string {
	out := make([]string, len(nm.nodeNames))
	copy(out, nm.nodeNames)
	return out
}

// BranchNames returns the registered branch names in index order.
func (nm *NodeMap) BranchNames() []string {
	out := make([]string, len(nm.branchNames))
	copy(out, nm.branchNames)
	return out
}

// IsNodeRow reports whether system row i is a node (KCL) equation rather
// than a branch equation.
func (nm *NodeMap) IsNodeRow(i int) bool {
	return i >= 0 && i < len(nm.nodeNames)
}
