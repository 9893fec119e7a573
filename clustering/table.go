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

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

func clustersFile(dir, unitig string) string {
	return filepath.Join(dir, "clusters_"+unitig+".csv")
}

func statsFile(dir, unitig string) string {
	return filepath.Join(dir, "stats_"+unitig+".csv")
}

func writeCSV(filename string, records [][]string) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := f.Close(); err == nil {
			err = nerr
		}
	}()
	w := csv.NewWriter(f)
	if err := w.WriteAll(records); err != nil {
		return fmt.Errorf("writing %v: %w", filename, err)
	}
	return nil
}

func readCSV(filename string) ([][]string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %v: %w", filename, err)
	}
	return records, nil
}

// WriteTable stores the assignment and statistics of a unitig in dir.
func WriteTable(dir string, table Table) error {
	names := make([]string, 0, len(table.Assignment))
	for name := range table.Assignment {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ci, cj := table.Assignment[names[i]], table.Assignment[names[j]]
		if ci != cj {
			return ci < cj
		}
		return names[i] < names[j]
	})
	clusters := [][]string{{"read", "cluster"}}
	for _, name := range names {
		clusters = append(clusters, []string{name, strconv.Itoa(table.Assignment[name])})
	}
	if err := writeCSV(clustersFile(dir, table.Unitig), clusters); err != nil {
		return err
	}

	ids := make([]int, 0, len(table.Stats))
	for id := range table.Stats {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	stats := [][]string{{"cluster", "start", "end", "coverage"}}
	for _, id := range ids {
		s := table.Stats[id]
		stats = append(stats, []string{
			strconv.Itoa(id),
			strconv.Itoa(s.Start),
			strconv.Itoa(s.End),
			strconv.FormatFloat(s.Coverage, 'g', -1, 64),
		})
	}
	return writeCSV(statsFile(dir, table.Unitig), stats)
}

// ReadTable loads the clustering result of unitig from dir. It returns
// false if no table was stored for the unitig.
func ReadTable(dir, unitig string) (Table, bool, error) {
	table := Table{Unitig: unitig, Assignment: make(Assignment), Stats: make(StatsTable)}
	clusters, err := readCSV(clustersFile(dir, unitig))
	if errors.Is(err, fs.ErrNotExist) {
		return table, false, nil
	}
	if err != nil {
		return table, false, err
	}
	for _, record := range clusters[min(1, len(clusters)):] {
		if len(record) != 2 {
			return table, false, fmt.Errorf("clusters table of %v: malformed record %v", unitig, record)
		}
		id, err := strconv.Atoi(record[1])
		if err != nil {
			return table, false, fmt.Errorf("clusters table of %v: %w", unitig, err)
		}
		table.Assignment[record[0]] = id
	}
	stats, err := readCSV(statsFile(dir, unitig))
	if err != nil {
		return table, false, err
	}
	for _, record := range stats[min(1, len(stats)):] {
		if len(record) != 4 {
			return table, false, fmt.Errorf("stats table of %v: malformed record %v", unitig, record)
		}
		var s Stats
		id, err1 := strconv.Atoi(record[0])
		start, err2 := strconv.Atoi(record[1])
		end, err3 := strconv.Atoi(record[2])
		coverage, err4 := strconv.ParseFloat(record[3], 64)
		if err := errors.Join(err1, err2, err3, err4); err != nil {
			return table, false, fmt.Errorf("stats table of %v: %w", unitig, err)
		}
		s.Start, s.End, s.Coverage = start, end, coverage
		table.Stats[id] = s
	}
	return table, true, nil
}
