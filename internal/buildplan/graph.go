package buildplan

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// libNode is a gonum graph node wrapping a library's name.
type libNode struct {
	id   int64
	name string
}

func (n *libNode) ID() int64 { return n.id }

// orderLibraries topologically sorts libs by their intra-package uses
// edges (dependency before dependent), reporting the first cycle found
// as an error.
func orderLibraries(libs []LibraryInput) ([]LibraryInput, error) {
	g := simple.NewDirectedGraph()
	nodes := make(map[string]*libNode, len(libs))
	for i, lib := range libs {
		n := &libNode{id: int64(i), name: lib.Name.String()}
		nodes[n.name] = n
		g.AddNode(n)
	}

	byName := make(map[string]LibraryInput, len(libs))
	for _, lib := range libs {
		byName[lib.Name.String()] = lib
	}

	for _, lib := range libs {
		from := nodes[lib.Name.String()]
		for _, used := range lib.IntraUses {
			to, ok := nodes[used.String()]
			if !ok {
				continue // cross-package uses resolve via dependencies, not this graph
			}
			// Edge points from the used (built first) to the user, so a
			// topological sort yields dependency-before-dependent order.
			g.SetEdge(g.NewEdge(to, from))
		}
	}

	sorted, err := topo.Sort(g)
	if err != nil {
		if uo, ok := err.(topo.Unorderable); ok {
			return nil, cycleError(uo)
		}
		return nil, err
	}

	out := make([]LibraryInput, 0, len(sorted))
	for _, n := range sorted {
		out = append(out, byName[n.(*libNode).name])
	}
	return out, nil
}

func cycleError(uo topo.Unorderable) error {
	var names []string
	for _, component := range uo {
		var cycle []string
		for _, n := range component {
			cycle = append(cycle, n.(*libNode).name)
		}
		names = append(names, "["+strings.Join(cycle, " -> ")+"]")
	}
	return fmt.Errorf("cyclic intra-package library dependency: %s", strings.Join(names, ", "))
}
