// elStrain: strain-level phasing of assembly graphs.
// Copyright (c) 2026 imec vzw.

// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version, and Additional Terms
// (see below).

// This program is distributed in the hope that it will be useful, but
// WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Affero General Public License for more details.

// You should have received a copy of the GNU Affero General Public
// License and Additional Terms along with this program. If not, see
// <https://github.com/ExaScience/elstrain/blob/master/LICENSE.txt>.

package clustering

// Union-find over dense integer ids, used to join clusters whose
// consensus sequences are indistinguishable.

func findRepNode(grouping []int, nodeID int) int {
	rep := nodeID
	for rep != grouping[rep] {
		rep = grouping[rep]
	}
	for nodeID != rep {
		next := grouping[nodeID]
		grouping[nodeID] = rep
		nodeID = next
	}
	return rep
}

func joinNodes(grouping []int, nodeID1, nodeID2 int) {
	rep1 := findRepNode(grouping, nodeID1)
	rep2 := findRepNode(grouping, nodeID2)
	if rep1 == rep2 {
		return
	}
	if rep1 < rep2 {
		grouping[rep2] = rep1
	} else {
		grouping[rep1] = rep2
	}
}

// groups returns the sets of joined nodes with more than one member,
// each sorted and ordered by their smallest node.
func groups(grouping []int) [][]int {
	byRep := make(map[int][]int)
	var reps []int
	for i := range grouping {
		rep := findRepNode(grouping, i)
		if _, ok := byRep[rep]; !ok {
			reps = append(reps, rep)
		}
		byRep[rep] = append(byRep[rep], i)
	}
	var result [][]int
	for _, rep := range reps {
		if members := byRep[rep]; len(members) > 1 {
			result = append(result, members)
		}
	}
	return result
}
