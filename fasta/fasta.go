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

package fasta

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Record is a single named FASTA sequence.
type Record struct {
	Name string
	Seq  []byte
}

const lineWidth = 80

var iupacUpperTable = map[byte]byte{
	'A': 'A', 'a': 'A',
	'C': 'C', 'c': 'C',
	'G': 'G', 'g': 'G',
	'T': 'T', 't': 'T',
	'N': 'N', 'n': 'N',
	'R': 'N', 'r': 'N',
	'Y': 'N', 'y': 'N',
	'M': 'N', 'm': 'N',
	'K': 'N', 'k': 'N',
	'W': 'N', 'w': 'N',
	'S': 'N', 's': 'N',
	'B': 'N', 'b': 'N',
	'D': 'N', 'd': 'N',
	'H': 'N', 'h': 'N',
	'V': 'N', 'v': 'N',
}

// ToUpperAndN normalizes ambiguity codes to N and converts all codes
// to upper case.
func ToUpperAndN(base byte) byte {
	if n, ok := iupacUpperTable[base]; ok {
		return n
	}
	return base
}

func contigFromHeader(b []byte) string {
	i := 1
	for ; i < len(b); i++ {
		if c := b[i]; c >= '!' && c <= '~' {
			break
		}
	}
	j := i
	for ; j < len(b); j++ {
		if c := b[j]; c < '!' || c > '~' {
			break
		}
	}
	return string(b[i:j])
}

// Parse reads all records from r. Sequences are converted to upper
// case with ambiguity codes normalized.
func Parse(r io.Reader) (records []Record, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<30)
	var current *Record
	for scanner.Scan() {
		b := scanner.Bytes()
		if len(b) == 0 {
			continue
		}
		if b[0] == '>' {
			records = append(records, Record{Name: contigFromHeader(b)})
			current = &records[len(records)-1]
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("invalid fasta input: missing first header")
		}
		for _, c := range b {
			current.Seq = append(current.Seq, ToUpperAndN(c))
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading fasta input: %w", err)
	}
	return records, nil
}

// ReadFirst returns the first record of a FASTA file, and false if the
// file contains no records.
func ReadFirst(filename string) (Record, bool, error) {
	f, err := os.Open(filename)
	if err != nil {
		return Record{}, false, err
	}
	defer f.Close()
	records, err := Parse(bufio.NewReader(f))
	if err != nil {
		return Record{}, false, fmt.Errorf("%v: %w", filename, err)
	}
	if len(records) == 0 {
		return Record{}, false, nil
	}
	return records[0], true, nil
}

// Write writes records to w, wrapping sequence lines.
func Write(w io.Writer, records ...Record) error {
	out := bufio.NewWriter(w)
	for _, record := range records {
		if _, err := fmt.Fprintf(out, ">%s\n", record.Name); err != nil {
			return err
		}
		for seq := record.Seq; len(seq) > 0; {
			n := lineWidth
			if n > len(seq) {
				n = len(seq)
			}
			if _, err := out.Write(seq[:n]); err != nil {
				return err
			}
			if err := out.WriteByte('\n'); err != nil {
				return err
			}
			seq = seq[n:]
		}
	}
	return out.Flush()
}

// WriteFile creates filename and writes records to it.
func WriteFile(filename string, records ...Record) (err error) {
	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := f.Close(); err == nil {
			err = nerr
		}
	}()
	return Write(f, records...)
}
