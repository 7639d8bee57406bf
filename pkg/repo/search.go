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
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
	log "github.com/sirupsen/logrus"
)

//
type Hit struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

//
type SearchResult struct {
	Hits     []Hit  `json:"hits"`
	Total    uint64 `json:"total"`
	Complete bool   `json:"complete"`
}

/*
	Search finds disk images, returning at most max hits ordered by score.
	A plain term is matched against all the indexed aspects of an image,
	with the image's own name weighing more than a file buried inside it.
	Terms with query syntax in them (e.g. `DiskName:games` or `+demo
	-Type:D81`) are passed to the query language unchanged.
*/
func (i *Index) Search(term string, max int) (*SearchResult, error) {

	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("no search term")
	}

	log.Debugf("searching for '%s'", term)

	req := bleve.NewSearchRequestOptions(imageQuery(term), max+1, 0, false)
	res, err := i.index.Search(req)
	if err != nil {
		return nil, err
	}

	ret := &SearchResult{
		Total:    res.Total,
		Complete: true,
	}

	for _, h := range res.Hits {
		ret.Hits = append(ret.Hits, Hit{Path: h.ID, Score: h.Score})
	}

	if len(ret.Hits) > max {
		ret.Hits = ret.Hits[:max]
		ret.Complete = false
	}

	return ret, nil
}

/*
	imageQuery builds the query for a search term: either a disjunction
	over the Entry aspects of an image, boosted so that hits on the image
	name rank above hits on the disk name, which in turn rank above hits
	on the stored files, or the raw query language when the term uses its
	syntax.
*/
func imageQuery(term string) query.Query {

	if strings.ContainsAny(term, ":+-\"*^") {
		return bleve.NewQueryStringQuery(term)
	}

	aspects := []struct {
		field string
		boost float64
	}{
		{"Name", 3.0},
		{"DiskName", 2.0},
		{"Files", 1.0},
		{"Type", 0.5},
	}

	var parts []query.Query
	for _, a := range aspects {
		m := bleve.NewMatchQuery(term)
		m.SetField(a.field)
		m.SetBoost(a.boost)
		parts = append(parts, m)
	}

	return bleve.NewDisjunctionQuery(parts...)
}
