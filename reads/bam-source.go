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

package reads

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/bits-and-blooms/bitset"

	"github.com/exascience/elstrain/fasta"
)

// Filter holds the thresholds applied while reading alignments.
type Filter struct {
	MinMappingQuality  int
	MinAlignmentLength int
	ClipLength         int
	AlleleFrequency    float64
}

// BAMSource reads unitig alignments from a coordinate-sorted, indexed
// BAM file. Every query opens its own file handle, so a BAMSource can
// be shared between goroutines.
type BAMSource struct {
	path   string
	filter Filter
	logger *slog.Logger
	header *sam.Header
	refs   map[string]*sam.Reference
	index  *bam.Index
}

// OpenBAM reads the header of the BAM file at path and its .bai index.
func OpenBAM(path string, filter Filter, logger *slog.Logger) (*BAMSource, error) {
	if logger == nil {
		logger = slog.Default()
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening bam: %w", err)
	}
	defer f.Close()
	br, err := bam.NewReader(f, 1)
	if err != nil {
		return nil, fmt.Errorf("reading bam header %v: %w", path, err)
	}
	defer br.Close()

	idxFile, err := os.Open(path + ".bai")
	if err != nil {
		return nil, fmt.Errorf("bam index missing for %v: %w", path, err)
	}
	defer idxFile.Close()
	index, err := bam.ReadIndex(idxFile)
	if err != nil {
		return nil, fmt.Errorf("reading bam index %v.bai: %w", path, err)
	}

	source := &BAMSource{
		path:   path,
		filter: filter,
		logger: logger,
		header: br.Header(),
		refs:   make(map[string]*sam.Reference),
		index:  index,
	}
	for _, ref := range source.header.Refs() {
		source.refs[ref.Name()] = ref
	}
	return source, nil
}

// Unitigs returns the reference names of the BAM header in header
// order.
func (source *BAMSource) Unitigs() []string {
	refs := source.header.Refs()
	names := make([]string, len(refs))
	for i, ref := range refs {
		names[i] = ref.Name()
	}
	return names
}

// each calls fn for every record aligned to unitig.
func (source *BAMSource) each(unitig string, fn func(*sam.Record)) error {
	ref, ok := source.refs[unitig]
	if !ok {
		return nil
	}
	chunks, err := source.index.Chunks(ref, 0, ref.Len())
	if err != nil {
		source.logger.Debug("no indexed alignments", "unitig", unitig, "error", err)
		return nil
	}
	if len(chunks) == 0 {
		return nil
	}
	f, err := os.Open(source.path)
	if err != nil {
		return fmt.Errorf("opening bam: %w", err)
	}
	defer f.Close()
	br, err := bam.NewReader(f, 1)
	if err != nil {
		return fmt.Errorf("reading bam %v: %w", source.path, err)
	}
	defer br.Close()
	it, err := bam.NewIterator(br, chunks)
	if err != nil {
		return fmt.Errorf("bam region %v: %w", unitig, err)
	}
	for it.Next() {
		rec := it.Record()
		if rec.Ref == nil || rec.Ref.Name() != unitig {
			continue
		}
		fn(rec)
	}
	if err := it.Error(); err != nil {
		_ = it.Close()
		return fmt.Errorf("iterating bam region %v: %w", unitig, err)
	}
	return it.Close()
}

func (source *BAMSource) keep(rec *sam.Record) bool {
	if rec.Flags&(sam.Unmapped|sam.Secondary) != 0 {
		return false
	}
	if int(rec.MapQ) < source.filter.MinMappingQuality {
		return false
	}
	return rec.End()-rec.Start() >= source.filter.MinAlignmentLength
}

// Fetch returns the primary and supplementary alignments to unitig of
// the named reads.
func (source *BAMSource) Fetch(unitig string, names []string) ([]*sam.Record, error) {
	wanted := make(map[string]bool, len(names))
	for _, name := range names {
		wanted[name] = true
	}
	var result []*sam.Record
	err := source.each(unitig, func(rec *sam.Record) {
		if rec.Flags&(sam.Unmapped|sam.Secondary) != 0 || !wanted[rec.Name] {
			return
		}
		result = append(result, rec)
	})
	return result, err
}

// walkCigar calls visit for every reference position of the alignment
// with the aligned base, or GapCall for deletions.
func walkCigar(rec *sam.Record, visit func(pos int, base byte)) {
	seq := rec.Seq.Expand()
	ref, query := rec.Pos, 0
	for _, op := range rec.Cigar {
		n := op.Len()
		switch op.Type() {
		case sam.CigarMatch, sam.CigarEqual, sam.CigarMismatch:
			if query+n <= len(seq) {
				for k := 0; k < n; k++ {
					visit(ref+k, fasta.ToUpperAndN(seq[query+k]))
				}
			}
			ref += n
			query += n
		case sam.CigarDeletion:
			for k := 0; k < n; k++ {
				visit(ref+k, GapCall)
			}
			ref += n
		case sam.CigarSkipped:
			ref += n
		case sam.CigarInsertion, sam.CigarSoftClipped:
			query += n
		}
	}
}

func alleleIndex(base byte) int {
	switch base {
	case 'A':
		return 0
	case 'C':
		return 1
	case 'G':
		return 2
	case 'T':
		return 3
	case GapCall:
		return 4
	}
	return -1
}

// informativePositions returns the positions whose second most
// frequent allele reaches the allele frequency threshold.
func informativePositions(records []*sam.Record, length int, frequency float64) []int {
	if length <= 0 {
		return nil
	}
	counts := make([][5]int32, length)
	for _, rec := range records {
		walkCigar(rec, func(pos int, base byte) {
			if pos < 0 || pos >= length {
				return
			}
			if a := alleleIndex(base); a >= 0 {
				counts[pos][a]++
			}
		})
	}
	mask := bitset.New(uint(length))
	for pos := range counts {
		var depth, first, second int32
		for _, c := range counts[pos] {
			depth += c
			if c > first {
				first, second = c, first
			} else if c > second {
				second = c
			}
		}
		if depth > 0 && second > 0 && float64(second)/float64(depth) >= frequency {
			mask.Set(uint(pos))
		}
	}
	positions := make([]int, 0, mask.Count())
	for pos, ok := mask.NextSet(0); ok; pos, ok = mask.NextSet(pos + 1) {
		positions = append(positions, int(pos))
	}
	return positions
}

func clipLengths(rec *sam.Record) (left, right int) {
	isClip := func(op sam.CigarOp) bool {
		return op.Type() == sam.CigarSoftClipped || op.Type() == sam.CigarHardClipped
	}
	for _, op := range rec.Cigar {
		if !isClip(op) {
			break
		}
		left += op.Len()
	}
	for i := len(rec.Cigar) - 1; i >= 0; i-- {
		if !isClip(rec.Cigar[i]) {
			break
		}
		right += rec.Cigar[i].Len()
	}
	return left, right
}

var saTag = sam.NewTag("SA")

// supplementaryLinks parses the SA tag into links to other unitigs.
func supplementaryLinks(rec *sam.Record) (links []ClipLink) {
	aux := rec.AuxFields.Get(saTag)
	if aux == nil {
		return nil
	}
	value, ok := aux.Value().(string)
	if !ok {
		return nil
	}
	strand := Forward
	if rec.Flags&sam.Reverse != 0 {
		strand = Reverse
	}
	for _, entry := range strings.Split(value, ";") {
		fields := strings.Split(entry, ",")
		if len(fields) < 3 || fields[0] == rec.Ref.Name() {
			continue
		}
		if _, err := strconv.Atoi(fields[1]); err != nil {
			continue
		}
		orientation := Forward
		if fields[2] != strand {
			orientation = Reverse
		}
		links = append(links, ClipLink{Unitig: fields[0], Orientation: orientation})
	}
	return links
}

func (source *BAMSource) clipLinks(rec *sam.Record) (left, right []ClipLink) {
	leftClip, rightClip := clipLengths(rec)
	minClip := source.filter.ClipLength
	if leftClip < minClip && rightClip < minClip {
		return nil, nil
	}
	links := supplementaryLinks(rec)
	switch {
	case leftClip >= minClip && rightClip >= minClip:
		if rightClip >= leftClip {
			return nil, links
		}
		return links, nil
	case rightClip >= minClip:
		return nil, links
	default:
		return links, nil
	}
}

// Load builds the read set of unitig: the informative positions from a
// pileup of the filtered alignments and, per read, its allele calls and
// clip links.
func (source *BAMSource) Load(unitig string) (*Set, error) {
	ref, ok := source.refs[unitig]
	if !ok {
		return nil, fmt.Errorf("unitig %v not present in %v", unitig, source.path)
	}
	var records []*sam.Record
	if err := source.each(unitig, func(rec *sam.Record) {
		if source.keep(rec) {
			records = append(records, rec)
		}
	}); err != nil {
		return nil, err
	}
	positions := informativePositions(records, ref.Len(), source.filter.AlleleFrequency)
	positionIndex := make(map[int]int, len(positions))
	for i, pos := range positions {
		positionIndex[pos] = i
	}
	readSet := make([]Read, 0, len(records))
	for _, rec := range records {
		read := Read{
			Name:  rec.Name,
			Start: rec.Start(),
			End:   rec.End(),
			Calls: make([]byte, len(positions)),
		}
		if len(positions) > 0 {
			first := sort.SearchInts(positions, read.Start)
			if first < len(positions) && positions[first] < read.End {
				walkCigar(rec, func(pos int, base byte) {
					if i, ok := positionIndex[pos]; ok {
						read.Calls[i] = base
					}
				})
			}
		}
		read.LeftClips, read.RightClips = source.clipLinks(rec)
		readSet = append(readSet, read)
	}
	source.logger.Debug("loaded reads", "unitig", unitig, "reads", len(readSet), "positions", len(positions))
	return NewSet(unitig, ref.Len(), positions, readSet), nil
}
