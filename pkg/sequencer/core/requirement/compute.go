// Package requirement derives per-operation quantity and time requirements of a
// make method from its dependency graph, and propagates them into sub-assembly methods.
package requirement

import (
	"fmt"

	"github.com/tigerroll/sequencer/pkg/sequencer/core/dependency"
	model "github.com/tigerroll/sequencer/pkg/sequencer/core/domain/model"

	"github.com/shopspring/decimal"
)

// Scale is the number of decimal places derived quantities and hours are rounded to.
const Scale = 4

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// MethodSnapshot is the state of one make method the requirements are derived from.
type MethodSnapshot struct {
	Method *model.JobMakeMethod
	// Quantity is the method's output quantity.
	Quantity decimal.Decimal
	// Operations are the method's operations in job order, with their stored dependencies.
	Operations []*model.Operation
	// Materials are the materials consumed by the method.
	Materials []*model.JobMaterial
}

// Plan is the derived state of one make method.
type Plan struct {
	// Requirements holds one row per operation, in job order.
	Requirements []*model.OperationRequirement
	// MaterialEstimates maps material IDs to their estimated quantity.
	MaterialEstimates map[string]decimal.Decimal
}

// Compute derives the requirements of s. It is a pure function of its input and
// fails only when the stored graph restricted to the method contains a cycle.
func Compute(s MethodSnapshot) (Plan, error) {
	plan := Plan{MaterialEstimates: make(map[string]decimal.Decimal, len(s.Materials))}
	if len(s.Operations) == 0 {
		for _, m := range s.Materials {
			plan.MaterialEstimates[m.ID] = round(m.QuantityPerParent.Mul(s.Quantity))
		}
		return plan, nil
	}

	inMethod := make(map[string]*model.Operation, len(s.Operations))
	for _, op := range s.Operations {
		inMethod[op.ID] = op
	}
	preds := make(map[string][]string, len(s.Operations))
	succs := make(map[string][]string, len(s.Operations))
	for _, op := range s.Operations {
		preds[op.ID] = nil
		for _, p := range op.DependsOn {
			if _, ok := inMethod[p]; !ok {
				continue
			}
			preds[op.ID] = append(preds[op.ID], p)
			succs[p] = append(succs[p], op.ID)
		}
	}
	order, err := topological(s.Operations, preds)
	if err != nil {
		return Plan{}, err
	}

	input := make(map[string]decimal.Decimal, len(order))
	output := make(map[string]decimal.Decimal, len(order))
	for i := len(order) - 1; i >= 0; i-- {
		op := order[i]
		out := s.Quantity
		if len(succs[op.ID]) > 0 {
			out = input[succs[op.ID][0]]
			for _, succ := range succs[op.ID][1:] {
				out = decimal.Max(out, input[succ])
			}
		}
		output[op.ID] = out
		input[op.ID] = inputFor(out, op.ScrapPercent)
	}

	first := s.Operations[0].ID
	materialQty := make(map[string]decimal.Decimal, len(order))
	for _, m := range s.Materials {
		consumer := m.JobOperationID
		if _, ok := inMethod[consumer]; !ok {
			consumer = first
		}
		est := round(m.QuantityPerParent.Mul(input[consumer]))
		plan.MaterialEstimates[m.ID] = est
		materialQty[consumer] = materialQty[consumer].Add(est)
	}

	hours := make(map[string]decimal.Decimal, len(order))
	for _, op := range order {
		perUnit := op.LaborTime.Add(op.MachineTime)
		hours[op.ID] = round(op.SetupTime.Add(perUnit.Mul(input[op.ID])))
	}

	ancestors := dependency.Ancestors(preds)
	for _, op := range s.Operations {
		accMaterial, accHours := materialQty[op.ID], hours[op.ID]
		for a := range ancestors[op.ID] {
			accMaterial = accMaterial.Add(materialQty[a])
			accHours = accHours.Add(hours[a])
		}
		plan.Requirements = append(plan.Requirements, &model.OperationRequirement{
			OperationID:                 op.ID,
			JobMakeMethodID:             s.Method.ID,
			JobID:                       op.JobID,
			CompanyID:                   op.CompanyID,
			InputQuantity:               input[op.ID],
			OutputQuantity:              output[op.ID],
			MaterialQuantity:            materialQty[op.ID],
			AccumulatedMaterialQuantity: accMaterial,
			EstimatedHours:              hours[op.ID],
			AccumulatedHours:            accHours,
		})
	}
	return plan, nil
}

// inputFor returns the quantity that must enter an operation for out to leave it.
func inputFor(out, scrapPercent decimal.Decimal) decimal.Decimal {
	yield := one.Sub(scrapPercent.Div(hundred))
	if !yield.IsPositive() {
		return round(out)
	}
	return round(out.Div(yield))
}

func round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Scale)
}

// topological orders ops so that every operation follows its predecessors.
// Ties keep job order.
func topological(ops []*model.Operation, preds map[string][]string) ([]*model.Operation, error) {
	indegree := make(map[string]int, len(ops))
	succs := make(map[string][]string, len(ops))
	for _, op := range ops {
		indegree[op.ID] = len(preds[op.ID])
		for _, p := range preds[op.ID] {
			succs[p] = append(succs[p], op.ID)
		}
	}

	done := make([]bool, len(ops))
	order := make([]*model.Operation, 0, len(ops))
	for len(order) < len(ops) {
		next := -1
		for i, op := range ops {
			if !done[i] && indegree[op.ID] == 0 {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, fmt.Errorf("dependency cycle among operations of method %s", ops[0].JobMakeMethodID)
		}
		done[next] = true
		order = append(order, ops[next])
		for _, s := range succs[ops[next].ID] {
			indegree[s]--
		}
	}
	return order, nil
}
