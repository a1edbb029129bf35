package flows

import (
	"fmt"
	"sort"
	"strings"
)

// DanglingRef is a branch pointer whose target is not a step of the same
// question.
type DanglingRef struct {
	StepID int64  `json:"step_id"`
	Branch Choice `json:"branch"`
	Target int64  `json:"target"`
}

// Report summarizes the shape of one question's flow graph. It is an
// authoring aid: nothing in it blocks traversal.
type Report struct {
	QuestionID          int64         `json:"question_id"`
	StartStepID         *int64        `json:"start_step_id"`
	StepCount           int           `json:"step_count"`
	Cycles              [][]int64     `json:"cycles"`
	Dangling            []DanglingRef `json:"dangling"`
	Unreachable         []int64       `json:"unreachable"`
	FinalWithSuccessors []int64       `json:"final_with_successors"`
}

// Analyze builds a Report from the steps of a single question.
func Analyze(questionID int64, steps []Step) *Report {
	rep := &Report{
		QuestionID:          questionID,
		StepCount:           len(steps),
		Cycles:              [][]int64{},
		Dangling:            []DanglingRef{},
		Unreachable:         []int64{},
		FinalWithSuccessors: []int64{},
	}
	if len(steps) == 0 {
		return rep
	}

	sorted := make([]Step, len(steps))
	copy(sorted, steps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].StepID < sorted[j].StepID })

	byID := make(map[int64]*Step, len(sorted))
	for i := range sorted {
		byID[sorted[i].StepID] = &sorted[i]
	}
	start := sorted[0].StepID
	rep.StartStepID = &start

	// Only edges inside the question take part in the graph.
	edges := make(map[int64][]int64, len(sorted))
	for _, st := range sorted {
		for _, c := range []Choice{ChoiceYes, ChoiceNo} {
			t := st.Target(c)
			if t == nil {
				continue
			}
			if _, ok := byID[*t]; !ok {
				rep.Dangling = append(rep.Dangling, DanglingRef{StepID: st.StepID, Branch: c, Target: *t})
				continue
			}
			edges[st.StepID] = append(edges[st.StepID], *t)
		}
		if st.IsFinal && (st.YesNextStep != nil || st.NoNextStep != nil) {
			rep.FinalWithSuccessors = append(rep.FinalWithSuccessors, st.StepID)
		}
	}

	reached := map[int64]bool{start: true}
	queue := []int64{start}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range edges[id] {
			if !reached[next] {
				reached[next] = true
				queue = append(queue, next)
			}
		}
	}
	for _, st := range sorted {
		if !reached[st.StepID] {
			rep.Unreachable = append(rep.Unreachable, st.StepID)
		}
	}

	rep.Cycles = findCycles(sorted, edges)
	return rep
}

// findCycles runs a depth-first search from every unvisited step and
// records the cycle closed by each back edge, rotated to start at its
// lowest id. Each distinct cycle is reported once.
func findCycles(steps []Step, edges map[int64][]int64) [][]int64 {
	const (
		white = iota
		grey
		black
	)
	color := make(map[int64]int, len(steps))
	seen := map[string]bool{}
	cycles := [][]int64{}
	var path []int64

	var visit func(id int64)
	visit = func(id int64) {
		color[id] = grey
		path = append(path, id)
		for _, next := range edges[id] {
			switch color[next] {
			case white:
				visit(next)
			case grey:
				i := len(path) - 1
				for path[i] != next {
					i--
				}
				cycle := canonicalCycle(path[i:])
				key := fmt.Sprint(cycle)
				if !seen[key] {
					seen[key] = true
					cycles = append(cycles, cycle)
				}
			}
		}
		path = path[:len(path)-1]
		color[id] = black
	}

	for _, st := range steps {
		if color[st.StepID] == white {
			visit(st.StepID)
		}
	}
	return cycles
}

func canonicalCycle(ids []int64) []int64 {
	low := 0
	for i, id := range ids {
		if id < ids[low] {
			low = i
		}
	}
	out := make([]int64, 0, len(ids))
	out = append(out, ids[low:]...)
	out = append(out, ids[:low]...)
	return out
}

// formatCycle renders a cycle as "3 -> 4 -> 3".
func formatCycle(cycle []int64) string {
	parts := make([]string, 0, len(cycle)+1)
	for _, id := range cycle {
		parts = append(parts, fmt.Sprint(id))
	}
	parts = append(parts, fmt.Sprint(cycle[0]))
	return strings.Join(parts, " -> ")
}
