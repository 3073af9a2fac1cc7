package ethsender

import (
	"sort"

	"github.com/dagrollup/rollupcore/domain/rollup/model/externalapi"
)

// kindPriority fixes the cross-kind tie-break spec.md §4.7/§5 require:
// "Commit before Prove for the same block before Execute".
func kindPriority(kind externalapi.SubmitterOperationKind) int {
	switch kind {
	case externalapi.SubmitCommit:
		return 0
	case externalapi.SubmitProve:
		return 1
	case externalapi.SubmitExecute:
		return 2
	default:
		return 3
	}
}

// byKindFIFO groups rows by kind, each group sorted ascending by Id --
// the kind's own FIFO order, since spec.md §3 requires per-kind ids to be
// contiguous and monotone. Used both to pick the next row to initialize
// (lowest id within the highest-priority nonempty kind) and to find a
// row's same-kind predecessor when checking the step-4 confirmation-order
// rule. Mirrors domain/txpool/mempool's per-account queues: one ordered
// sequence per key, drained lowest-first.
func byKindFIFO(rows []*externalapi.SubmitterOperation) map[externalapi.SubmitterOperationKind][]*externalapi.SubmitterOperation {
	groups := make(map[externalapi.SubmitterOperationKind][]*externalapi.SubmitterOperation)
	for _, r := range rows {
		groups[r.Kind] = append(groups[r.Kind], r)
	}
	for kind := range groups {
		group := groups[kind]
		sort.Slice(group, func(i, j int) bool { return group[i].Id < group[j].Id })
		groups[kind] = group
	}
	return groups
}

// flattenByPriority concatenates a kind-grouped queue back into one slice
// in the cross-kind priority order (all Commits, then all Proves, then
// all Executes), each group still ascending by Id.
func flattenByPriority(groups map[externalapi.SubmitterOperationKind][]*externalapi.SubmitterOperation) []*externalapi.SubmitterOperation {
	kinds := make([]externalapi.SubmitterOperationKind, 0, len(groups))
	for kind := range groups {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool { return kindPriority(kinds[i]) < kindPriority(kinds[j]) })

	flat := make([]*externalapi.SubmitterOperation, 0)
	for _, kind := range kinds {
		flat = append(flat, groups[kind]...)
	}
	return flat
}
