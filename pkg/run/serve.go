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

package run

import (
	log "github.com/sirupsen/logrus"

	"github.com/OpenCBM/libcbmimage/pkg/control"
	"github.com/OpenCBM/libcbmimage/pkg/repo"
)

//
func NewServe() *Serve {

	s := &Serve{}
	s.Command = *NewCommand(
		"serve [-a|--address {address}] [-r|--repo {dir}] [--index {dir}]",
		"serve a repository of images over HTTP",
		`
Use the serve command to expose a directory tree of disk images through an
HTTP API: image info, directory listings, validation, and, when an index
location is given, full-text search across the images.
`,
		s.Run)

	s.BindString(&s.Address, "address", "a", "CBMIMAGE_ADDRESS", ":8262",
		"listen address for the API", false)
	s.BindString(&s.Repo, "repo", "r", "CBMIMAGE_REPO", ".",
		"directory holding the disk images", false)
	s.BindString(&s.Index, "index", "x", "CBMIMAGE_INDEX", "",
		"directory for the search index; no search when left empty", false)

	return s
}

//
type Serve struct {
	Command

	Address string
	Repo    string
	Index   string
}

//
func (s *Serve) Run() error {

	s.ParseSettings()

	var index *repo.Index

	if s.Index != "" {
		var err error
		if index, err = repo.NewIndex(s.Index, s.Repo); err != nil {
			return err
		}
		if err := index.Start(); err != nil {
			return err
		}
		defer index.Stop()
	} else {
		log.Info("no index location given, search is disabled")
	}

	return control.NewAPIServer(s.Address, s.Repo, index).Serve()
}

//
func NewSearch() *Search {

	s := &Search{}
	s.Command = *NewCommand(
		"search [-r|--repo {dir}] [--index {dir}] {term}",
		"search a repository of images",
		`
Use the search command to find disk images in a repository by file name,
disk name, or the names of the files they contain. The index is created on
first use and kept up to date on subsequent runs.
`,
		s.Run)

	s.BindString(&s.Repo, "repo", "r", "CBMIMAGE_REPO", ".",
		"directory holding the disk images", false)
	s.BindString(&s.Index, "index", "x", "CBMIMAGE_INDEX", "",
		"directory for the search index", true)
	s.BindInt(&s.Max, "max", "m", 25,
		"maximum number of hits to report", false)

	return s
}

//
type Search struct {
	Command

	Repo  string
	Index string
	Max   int
}

//
func (s *Search) Run() error {

	s.ParseSettings()

	index, err := repo.NewIndex(s.Index, s.Repo)
	if err != nil {
		return err
	}
	defer index.Stop()

	if err := index.Start(); err != nil {
		return err
	}

	term := ""
	if len(s.Args) > 0 {
		term = s.Args[0]
	}

	res, err := index.Search(term, s.Max)
	if err != nil {
		return err
	}

	for _, hit := range res.Hits {
		log.WithField("image", hit.Path).Info("hit")
	}
	log.Infof("%d of %d matching images shown", len(res.Hits), res.Total)

	return nil
}
