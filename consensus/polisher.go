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

package consensus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
	"github.com/google/uuid"

	"github.com/exascience/elstrain/config"
	"github.com/exascience/elstrain/fasta"
	"github.com/exascience/elstrain/internal"
)

// FlyePolisher polishes cluster sequences with the Flye polisher.
// Scratch files live under Dir/flye_inputs and Dir/flye_outputs.
type FlyePolisher struct {
	Dir       string
	Mode      string
	Threads   int
	Timeout   time.Duration
	KeepFiles bool
	Logger    *slog.Logger
}

func (p FlyePolisher) readsFlag() string {
	if p.Mode == config.ModeNano {
		return "--nano-hq"
	}
	return "--pacbio-hifi"
}

// WriteJobBAM writes the records of job to a coordinate-sorted BAM file
// with a single reference named after the unitig, shifting positions
// to the start of the job's reference sequence.
func WriteJobBAM(filename string, job Job) (err error) {
	ref, err := sam.NewReference(job.Unitig, "", "", len(job.Reference), nil, nil)
	if err != nil {
		return err
	}
	header, err := sam.NewHeader(nil, []*sam.Reference{ref})
	if err != nil {
		return err
	}
	header.SortOrder = sam.Coordinate

	shifted := make([]sam.Record, len(job.Records))
	for i, rec := range job.Records {
		shifted[i] = *rec
		shifted[i].Ref = ref
		shifted[i].Pos = rec.Pos - job.Start
		shifted[i].MateRef = nil
		shifted[i].MatePos = -1
		shifted[i].TempLen = 0
	}
	sort.SliceStable(shifted, func(i, j int) bool { return shifted[i].Pos < shifted[j].Pos })

	f, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer func() {
		if nerr := f.Close(); err == nil {
			err = nerr
		}
	}()
	w, err := bam.NewWriter(f, header, 1)
	if err != nil {
		return err
	}
	for i := range shifted {
		if err := w.Write(&shifted[i]); err != nil {
			_ = w.Close()
			return fmt.Errorf("writing %v: %w", filename, err)
		}
	}
	return w.Close()
}

// Polish implements Polisher.
func (p FlyePolisher) Polish(ctx context.Context, job Job) (consensus []byte, err error) {
	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	salt := uuid.NewString()
	inputs := filepath.Join(p.Dir, "flye_inputs")
	output := filepath.Join(p.Dir, "flye_outputs", "flye_consensus_"+job.Name+"_"+salt)
	if err := internal.MkdirAll(0o755, inputs, output); err != nil {
		return nil, err
	}
	prefix := filepath.Join(inputs, job.Name+"_"+salt)
	faName, bamName := prefix+".fa", prefix+".bam"
	if !p.KeepFiles {
		defer func() {
			if rerr := internal.RemoveFiles(faName, bamName, bamName+".bai", output); rerr != nil {
				logger.Warn("removing polisher scratch files", "job", job.Name, "error", rerr)
			}
		}()
	}

	if err := fasta.WriteFile(faName, fasta.Record{Name: job.Unitig, Seq: job.Reference}); err != nil {
		return nil, fmt.Errorf("writing polish target: %w", err)
	}
	if err := WriteJobBAM(bamName, job); err != nil {
		return nil, fmt.Errorf("writing polish reads: %w", err)
	}

	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	if err := internal.RunCmd(ctx, "samtools", "index", bamName); err != nil {
		return nil, err
	}
	args := []string{"--polish-target", faName, p.readsFlag(), bamName, "-o", output}
	if p.Threads > 0 {
		args = append(args, "-t", strconv.Itoa(p.Threads))
	}
	if err := internal.RunCmd(ctx, "flye", args...); err != nil {
		return nil, err
	}
	record, ok, err := fasta.ReadFirst(filepath.Join(output, "polished_1.fasta"))
	if err != nil {
		return nil, fmt.Errorf("reading polisher output: %w", err)
	}
	if !ok {
		return nil, errors.New("polisher output is empty")
	}
	return record.Seq, nil
}
