// Package dependency derives the direct predecessor set of every operation of a job.
//
// Edges come from three sources: the stage chain of each make method, the join of a
// sub-assembly method into the operation of its parent that consumes it, and
// adjacent operations sharing a work center. Every edge must
// point forward in job order, so the graph is acyclic by construction. Only direct
// edges are kept.
package dependency

import (
	"fmt"
	"sort"

	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"
)

// EdgeReason names the rule that produced a candidate edge.
type EdgeReason string

const (
	ReasonStage      EdgeReason = "stage"
	ReasonBranchJoin EdgeReason = "branch-join"
	ReasonWorkCenter EdgeReason = "work-center"
)

// Edge is a candidate "From must finish before To" relation.
type Edge struct {
	From   string
	To     string
	Reason EdgeReason
}

func (e Edge) String() string {
	return fmt.Sprintf("%s -> %s (%s)", e.From, e.To, e.Reason)
}

// Snapshot is the state of a job the graph is derived from.
// Operations must be in job order (sort order, creation time, ID).
type Snapshot struct {
	Operations []*model.Operation
	Methods    []*model.JobMakeMethod
	Materials  []*model.JobMaterial
}

// Graph is the derived dependency graph.
type Graph struct {
	// DependsOn maps every operation to its direct predecessors sorted by position.
	DependsOn map[string][]string
	// Dropped lists candidate edges that pointed backwards in job order.
	Dropped []Edge
}

// Compute derives the graph of s. It is a pure function of its input.
func Compute(s Snapshot) Graph {
	n := len(s.Operations)
	pos := make(map[string]int, n)
	for i, op := range s.Operations {
		pos[op.ID] = i
	}

	byMethod := make(map[string][]*model.Operation)
	for _, op := range s.Operations {
		byMethod[op.JobMakeMethodID] = append(byMethod[op.JobMakeMethodID], op)
	}
	stages := make(map[string][][]*model.Operation, len(byMethod))
	for methodID, ops := range byMethod {
		stages[methodID] = splitStages(ops)
	}

	var candidates []Edge

	// Sorted method IDs keep the candidate list, and therefore Dropped, deterministic.
	methodIDs := make([]string, 0, len(stages))
	for id := range stages {
		methodIDs = append(methodIDs, id)
	}
	sort.Strings(methodIDs)
	for _, methodID := range methodIDs {
		st := stages[methodID]
		for k := 1; k < len(st); k++ {
			for _, to := range st[k] {
				for _, from := range st[k-1] {
					candidates = append(candidates, Edge{From: from.ID, To: to.ID, Reason: ReasonStage})
				}
			}
		}
	}

	candidates = append(candidates, branchJoins(s, stages, byMethod)...)

	for i := 1; i < n; i++ {
		prev, cur := s.Operations[i-1], s.Operations[i]
		if cur.WorkCenterID != "" && cur.WorkCenterID == prev.WorkCenterID {
			candidates = append(candidates, Edge{From: prev.ID, To: cur.ID, Reason: ReasonWorkCenter})
		}
	}

	preds := make([][]int, n)
	var dropped []Edge
	for _, e := range candidates {
		from, okFrom := pos[e.From]
		to, okTo := pos[e.To]
		if !okFrom || !okTo {
			continue
		}
		if from >= to {
			dropped = append(dropped, e)
			continue
		}
		preds[to] = append(preds[to], from)
	}

	direct := reduce(preds)
	g := Graph{DependsOn: make(map[string][]string, n), Dropped: dropped}
	for i, op := range s.Operations {
		ids := make([]string, len(direct[i]))
		for j, p := range direct[i] {
			ids[j] = s.Operations[p].ID
		}
		g.DependsOn[op.ID] = ids
	}
	return g
}

// splitStages groups a method's operations into stages. An operation running with
// its previous operation joins that operation's stage; the first always starts one.
func splitStages(ops []*model.Operation) [][]*model.Operation {
	var stages [][]*model.Operation
	for i, op := range ops {
		if i == 0 || op.OperationOrder != model.OperationOrderWithPrevious {
			stages = append(stages, []*model.Operation{op})
			continue
		}
		last := len(stages) - 1
		stages[last] = append(stages[last], op)
	}
	return stages
}

// branchJoins links the last stage of every sub-assembly method to the parent
// operation consuming it: the operation of its parent material, or the first
// operation of the parent method when the material is not assigned.
func branchJoins(s Snapshot, stages map[string][][]*model.Operation, byMethod map[string][]*model.Operation) []Edge {
	materials := make(map[string]*model.JobMaterial, len(s.Materials))
	for _, m := range s.Materials {
		materials[m.ID] = m
	}
	inMethod := func(methodID, opID string) bool {
		for _, op := range byMethod[methodID] {
			if op.ID == opID {
				return true
			}
		}
		return false
	}

	var edges []Edge
	for _, method := range s.Methods {
		if method.IsRoot() {
			continue
		}
		st := stages[method.ID]
		if len(st) == 0 {
			continue
		}
		parent, ok := materials[method.ParentMaterialID]
		if !ok {
			continue
		}
		join := parent.JobOperationID
		if join == "" || !inMethod(parent.JobMakeMethodID, join) {
			parentOps := byMethod[parent.JobMakeMethodID]
			if len(parentOps) == 0 {
				continue
			}
			join = parentOps[0].ID
		}
		for _, from := range st[len(st)-1] {
			edges = append(edges, Edge{From: from.ID, To: join, Reason: ReasonBranchJoin})
		}
	}
	return edges
}

// reduce removes every predecessor reachable through another predecessor.
// preds[i] holds positions smaller than i; the result is sorted ascending.
func reduce(preds [][]int) [][]int {
	n := len(preds)
	ancestors := make([]bitset, n)
	direct := make([][]int, n)
	for i := 0; i < n; i++ {
		ancestors[i] = newBitset(n)
		cand := uniqueSorted(preds[i])
		for _, p := range cand {
			ancestors[i].set(p)
			ancestors[i].union(ancestors[p])
		}
		for _, p := range cand {
			redundant := false
			for _, q := range cand {
				if q != p && ancestors[q].has(p) {
					redundant = true
					break
				}
			}
			if !redundant {
				direct[i] = append(direct[i], p)
			}
		}
	}
	return direct
}

func uniqueSorted(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	out := append([]int(nil), in...)
	sort.Ints(out)
	w := 1
	for r := 1; r < len(out); r++ {
		if out[r] != out[w-1] {
			out[w] = out[r]
			w++
		}
	}
	return out[:w]
}

type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (b bitset) set(i int)      { b[i/64] |= 1 << (uint(i) % 64) }
func (b bitset) has(i int) bool { return b[i/64]&(1<<(uint(i)%64)) != 0 }

func (b bitset) union(o bitset) {
	for i := range o {
		b[i] |= o[i]
	}
}

// Ancestors returns every transitive predecessor of each operation in dependsOn.
// Unknown predecessor IDs are ignored.
func Ancestors(dependsOn map[string][]string) map[string]map[string]struct{} {
	out := make(map[string]map[string]struct{}, len(dependsOn))
	var visit func(id string, seen map[string]bool) map[string]struct{}
	visit = func(id string, seen map[string]bool) map[string]struct{} {
		if a, ok := out[id]; ok {
			return a
		}
		a := make(map[string]struct{})
		if seen[id] {
			return a
		}
		seen[id] = true
		for _, p := range dependsOn[id] {
			if _, known := dependsOn[p]; !known {
				continue
			}
			a[p] = struct{}{}
			for q := range visit(p, seen) {
				a[q] = struct{}{}
			}
		}
		delete(seen, id)
		out[id] = a
		return a
	}
	for id := range dependsOn {
		visit(id, map[string]bool{})
	}
	return out
}

// HasCycle reports whether dependsOn contains a cycle.
func HasCycle(dependsOn map[string][]string) bool {
	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(dependsOn))
	var visit func(id string) bool
	visit = func(id string) bool {
		color[id] = grey
		for _, p := range dependsOn[id] {
			switch color[p] {
			case grey:
				return true
			case white:
				if visit(p) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}
	for id := range dependsOn {
		if color[id] == white && visit(id) {
			return true
		}
	}
	return false
}
