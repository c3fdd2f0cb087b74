// Copyright (c) 2024, The Emergent Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package output

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"gonum.org/v1/gonum/mat"

	"github.com/emer/spikesim/chunk"
)

// FileWriter is the keyed-file Target: each chunk is written to a new file
// at Path(c), with one entry per key holding the gonum binary encoding of
// the block.
type FileWriter struct {

	// keys to write, in order
	Keys []string

	// file path for a chunk
	Path func(c chunk.Chunk) string
}

func (fw *FileWriter) Commit(c chunk.Chunk, r *Result) error {
	blks := make([]*mat.Dense, len(fw.Keys))
	for i, key := range fw.Keys {
		blk, ok := r.Blocks[key]
		if !ok || blk == nil {
			return fmt.Errorf("%w: %q", ErrMissingKey, key)
		}
		blks[i] = blk
	}
	fn := fw.Path(c)
	f, err := os.OpenFile(fn, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0666)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%w: %s", ErrExists, fn)
		}
		return err
	}
	if err := writeBlocks(f, fw.Keys, blks); err != nil {
		f.Close()
		return errors.Join(fmt.Errorf("output: writing %s: %w", fn, err), os.Remove(fn))
	}
	if err := f.Close(); err != nil {
		return errors.Join(err, os.Remove(fn))
	}
	for _, key := range fw.Keys {
		delete(r.Blocks, key)
	}
	return nil
}

// writeBlocks writes one zip entry per key
func writeBlocks(w io.Writer, keys []string, blks []*mat.Dense) error {
	zw := zip.NewWriter(w)
	for i, key := range keys {
		ew, err := zw.Create(key)
		if err != nil {
			return err
		}
		if _, err := blks[i].MarshalBinaryTo(ew); err != nil {
			return fmt.Errorf("%q: %w", key, err)
		}
	}
	return zw.Close()
}

// ReadChunkFile reads all blocks of a chunk file written by FileWriter
func ReadChunkFile(fn string) (map[string]*mat.Dense, error) {
	zr, err := zip.OpenReader(fn)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	blks := make(map[string]*mat.Dense, len(zr.File))
	for _, zf := range zr.File {
		rc, err := zf.Open()
		if err != nil {
			return nil, err
		}
		m := &mat.Dense{}
		_, err = m.UnmarshalBinaryFrom(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("output: reading %q from %s: %w", zf.Name, fn, err)
		}
		blks[zf.Name] = m
	}
	return blks, nil
}
