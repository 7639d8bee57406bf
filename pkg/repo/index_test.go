/*
   cbmimage - Commodore 8-bit disk image library
   Copyright (c) 2024, The OpenCBM team

   This file is part of cbmimage.

   cbmimage is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   cbmimage is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with cbmimage. If not, see <http://www.gnu.org/licenses/>.
*/

package repo

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
)

//
func TestIndexAndSearch(t *testing.T) {

	dir := t.TempDir()

	images := filepath.Join(dir, "images")
	if err := os.MkdirAll(images, 0755); err != nil {
		t.Fatal(err)
	}

	// an empty, but well-formed D64 image
	if err := ioutil.WriteFile(
		filepath.Join(images, "demo.d64"),
		make([]byte, 174848), 0644); err != nil {
		t.Fatal(err)
	}

	// files without an image name stay out of the index
	if err := ioutil.WriteFile(
		filepath.Join(images, "notes.txt"),
		[]byte("games list"), 0644); err != nil {
		t.Fatal(err)
	}

	index, err := NewIndex(filepath.Join(dir, "index"), images)
	if err != nil {
		t.Fatalf("cannot create index: %v", err)
	}
	defer index.Stop()

	if err := index.Start(); err != nil {
		t.Fatalf("cannot start index: %v", err)
	}

	res, err := index.Search("demo", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}

	if len(res.Hits) != 1 || res.Hits[0].Path != "demo.d64" {
		t.Errorf("search gave %v", res.Hits)
	}
	if !res.Complete {
		t.Error("single-hit search reported as incomplete")
	}

	if res, err := index.Search("games", 10); err != nil {
		t.Fatalf("search: %v", err)
	} else if len(res.Hits) != 0 {
		t.Errorf("non-image file was indexed: %v", res.Hits)
	}

	if _, err := index.Search("  ", 10); err == nil {
		t.Error("empty search term accepted")
	}
}

//
func TestIsImage(t *testing.T) {

	for _, tc := range []struct {
		path string
		want bool
	}{
		{"demo.d64", true},
		{"sub/demo.d81.gz", true},
		{"demo.D2M", true},
		{"notes.txt", false},
		{"plain", false},
	} {
		if got := isImage(tc.path); got != tc.want {
			t.Errorf("isImage(%q) = %v, want %v", tc.path, got, tc.want)
		}
	}
}

//
func TestSearchable(t *testing.T) {

	if got := searchable("games/the_demo.d64"); got != "games/the demo d64" {
		t.Errorf("searchable gave %q", got)
	}
}

//
func TestScanUnreadableFile(t *testing.T) {

	dir := t.TempDir()

	if err := ioutil.WriteFile(
		filepath.Join(dir, "odd.d64"), []byte("hello"), 0644); err != nil {
		t.Fatal(err)
	}

	i := &Index{root: dir}

	e := i.scan("odd.d64")
	if e.Name == "" {
		t.Error("unreadable image not indexed by name")
	}
	if e.DiskName != "" || e.Files != "" {
		t.Errorf("unreadable image has contents indexed: %+v", e)
	}
}
