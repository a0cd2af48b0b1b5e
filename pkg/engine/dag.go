package engine

import (
	"fmt"
	"slices"

	"github.com/dominikbraun/graph"

	"github.com/openfroyo/vtyctl/pkg/schema"
)

// KindOrder is the dependency order between resource kinds. Creates and
// updates run in this order, deletes run in reverse so that nested or
// dependent configuration goes away before what it hangs off.
type KindOrder struct {
	order []schema.Kind
	rank  map[schema.Kind]int
}

// BuildKindOrder sorts the registry's kinds topologically along DependsOn.
// Kinds with no relation keep registration order.
func BuildKindOrder(reg *schema.Registry) (*KindOrder, error) {
	kinds := reg.Kinds()
	position := make(map[string]int, len(kinds))
	for i, k := range kinds {
		position[string(k)] = i
	}

	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	for _, k := range kinds {
		if err := g.AddVertex(string(k)); err != nil {
			return nil, fmt.Errorf("failed to add vertex %s: %w", k, err)
		}
	}
	for _, s := range reg.Schemas() {
		for _, dep := range s.DependsOn {
			// dep must be configured before s
			if err := g.AddEdge(string(dep), string(s.Kind)); err != nil {
				return nil, NewPermanentError(
					fmt.Sprintf("kind %s cannot depend on %s", s.Kind, dep), err,
				).WithCode(ErrCodeCycle)
			}
		}
	}

	sorted, err := graph.StableTopologicalSort(g, func(a, b string) bool {
		return position[a] < position[b]
	})
	if err != nil {
		return nil, NewPermanentError("failed to order resource kinds", err).WithCode(ErrCodeCycle)
	}

	o := &KindOrder{rank: make(map[schema.Kind]int, len(sorted))}
	for i, k := range sorted {
		o.order = append(o.order, schema.Kind(k))
		o.rank[schema.Kind(k)] = i
	}
	return o, nil
}

// Kinds returns kinds in apply order.
func (o *KindOrder) Kinds() []schema.Kind {
	return slices.Clone(o.order)
}

// Rank returns the position of a kind in apply order.
func (o *KindOrder) Rank(kind schema.Kind) int {
	if r, ok := o.rank[kind]; ok {
		return r
	}
	return len(o.order)
}

// Sort orders resource plans: creates, updates and noops by ascending kind
// rank, then deletes by descending rank. Ties keep their input order.
func (o *KindOrder) Sort(plans []ResourcePlan) {
	slices.SortStableFunc(plans, func(a, b ResourcePlan) int {
		aDel, bDel := a.Operation == OperationDelete, b.Operation == OperationDelete
		switch {
		case aDel && !bDel:
			return 1
		case !aDel && bDel:
			return -1
		case aDel && bDel:
			return o.Rank(b.Kind) - o.Rank(a.Kind)
		default:
			return o.Rank(a.Kind) - o.Rank(b.Kind)
		}
	})
	for i := range plans {
		plans[i].Order = i
	}
}
