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

package gfa

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

const (
	depthTag  = "dp"
	weightTag = "RC"
)

// parseTag splits an optional field of the form TAG:TYPE:VALUE.
func parseTag(field string) (tag, typ, value string, ok bool) {
	parts := strings.SplitN(field, ":", 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}

func parseSegment(fields []string) (Segment, error) {
	if len(fields) < 3 {
		return Segment{}, fmt.Errorf("segment line with %v fields", len(fields))
	}
	s := Segment{Name: fields[1]}
	if fields[2] != "*" {
		s.Sequence = []byte(fields[2])
	}
	for _, field := range fields[3:] {
		tag, typ, value, ok := parseTag(field)
		if !ok || !strings.EqualFold(tag, depthTag) || (typ != "i" && typ != "f") {
			continue
		}
		depth, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return s, fmt.Errorf("segment %v: invalid depth %q", s.Name, value)
		}
		s.Depth = depth
	}
	return s, nil
}

func parseLink(fields []string) (Link, error) {
	if len(fields) < 6 {
		return Link{}, fmt.Errorf("link line with %v fields", len(fields))
	}
	l := Link{From: fields[1], FromOrient: fields[2], To: fields[3], ToOrient: fields[4], Overlap: fields[5]}
	for _, o := range []string{l.FromOrient, l.ToOrient} {
		if o != Forward && o != Reverse {
			return l, fmt.Errorf("link %v-%v: invalid orientation %q", l.From, l.To, o)
		}
	}
	for _, field := range fields[6:] {
		tag, typ, value, ok := parseTag(field)
		if !ok || tag != weightTag || typ != "i" {
			continue
		}
		weight, err := strconv.Atoi(value)
		if err != nil {
			return l, fmt.Errorf("link %v-%v: invalid weight %q", l.From, l.To, value)
		}
		l.Weight = weight
	}
	return l, nil
}

func parsePath(fields []string) (Path, error) {
	if len(fields) < 3 {
		return Path{}, fmt.Errorf("path line with %v fields", len(fields))
	}
	p := Path{Name: fields[1], Segments: strings.Split(fields[2], ",")}
	if len(fields) > 3 && fields[3] != "*" {
		p.Overlaps = strings.Split(fields[3], ",")
	}
	return p, nil
}

// Read parses GFA1 segment, link, and path lines. Other record types
// are ignored. Links are added after all segments are known.
func Read(r io.Reader) (*Graph, error) {
	g := New()
	var links []Link
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), math.MaxInt32)
	lineNumber := 0
	for scanner.Scan() {
		lineNumber++
		line := scanner.Text()
		if line == "" {
			continue
		}
		fields := strings.Split(line, "\t")
		switch fields[0] {
		case "S":
			s, err := parseSegment(fields)
			if err != nil {
				return nil, fmt.Errorf("gfa line %v: %w", lineNumber, err)
			}
			if !g.AddSegment(s) {
				return nil, fmt.Errorf("gfa line %v: duplicate segment %v", lineNumber, s.Name)
			}
		case "L":
			l, err := parseLink(fields)
			if err != nil {
				return nil, fmt.Errorf("gfa line %v: %w", lineNumber, err)
			}
			links = append(links, l)
		case "P":
			p, err := parsePath(fields)
			if err != nil {
				return nil, fmt.Errorf("gfa line %v: %w", lineNumber, err)
			}
			g.AddPath(p)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading gfa: %w", err)
	}
	for _, l := range links {
		if _, ok := g.Segment(l.From); !ok {
			return nil, fmt.Errorf("link references unknown segment %v", l.From)
		}
		if _, ok := g.Segment(l.To); !ok {
			return nil, fmt.Errorf("link references unknown segment %v", l.To)
		}
		g.AddLink(l)
	}
	return g, nil
}

// ReadFile parses the GFA file at filename.
func ReadFile(filename string) (*Graph, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	g, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%v: %w", filename, err)
	}
	return g, nil
}

// Write writes the graph as GFA1: a header, then segments in insertion
// order, links in a deterministic order, and paths.
func Write(w io.Writer, g *Graph) error {
	out := bufio.NewWriter(w)
	fmt.Fprintln(out, "H\tVN:Z:1.0")
	for _, s := range g.Segments() {
		seq := string(s.Sequence)
		if seq == "" {
			seq = "*"
		}
		fmt.Fprintf(out, "S\t%s\t%s\t%s:f:%s\n", s.Name, seq, depthTag, strconv.FormatFloat(s.Depth, 'f', -1, 64))
	}
	for _, l := range g.Links() {
		fmt.Fprintf(out, "L\t%s\t%s\t%s\t%s\t%s\t%s:i:%d\n", l.From, l.FromOrient, l.To, l.ToOrient, l.Overlap, weightTag, l.Weight)
	}
	for _, p := range g.Paths() {
		overlaps := "*"
		if len(p.Overlaps) > 0 {
			overlaps = strings.Join(p.Overlaps, ",")
		}
		fmt.Fprintf(out, "P\t%s\t%s\t%s\n", p.Name, strings.Join(p.Segments, ","), overlaps)
	}
	return out.Flush()
}

// WriteFile writes the graph to filename.
func WriteFile(filename string, g *Graph) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := f.Close(); err == nil {
			err = nerr
		}
	}()
	return Write(f, g)
}
