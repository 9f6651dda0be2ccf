// sisrs: site identification from short read sequences.
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
// <https://github.com/exascience/sisrs/blob/master/LICENSE.txt>.

package internal

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
)

// Directory returns the sorted names of the entries in the given
// directory, or the base name of file if it is not a directory.
func Directory(file string) (files []string, err error) {
	info, err := os.Stat(file)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{filepath.Base(file)}, nil
	}
	f, err := os.Open(file)
	if err != nil {
		return nil, err
	}
	defer func() {
		nerr := f.Close()
		if err == nil {
			err = nerr
		}
	}()
	files, err = f.Readdirnames(0)
	sort.Strings(files)
	return files, err
}

// Exists reports whether filename exists.
func Exists(filename string) bool {
	_, err := os.Stat(filename)
	return err == nil
}

// FirstMissing returns the first of the given files that does not
// exist, or "" if all of them do.
func FirstMissing(filenames ...string) string {
	for _, filename := range filenames {
		if !Exists(filename) {
			return filename
		}
	}
	return ""
}

// CopyFile copies src to dst, creating the parent directory of dst
// if necessary.
func CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer func() {
		nerr := in.Close()
		if err == nil {
			err = nerr
		}
	}()
	if err = os.MkdirAll(filepath.Dir(dst), 0700); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		nerr := out.Close()
		if err == nil {
			err = nerr
		}
	}()
	_, err = io.Copy(out, in)
	return err
}

// RemoveIfExists removes filename, ignoring a missing file.
func RemoveIfExists(filename string) error {
	if err := os.Remove(filename); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
