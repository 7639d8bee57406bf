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

package control

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/OpenCBM/libcbmimage/pkg/cbmimage"
	"github.com/OpenCBM/libcbmimage/pkg/format"
	"github.com/OpenCBM/libcbmimage/pkg/repo"
)

//
type APIServer interface {
	Serve() error
	Stop() error
}

/*
	NewAPIServer creates an HTTP server exposing a repository of disk
	images: image info, directory listings, validation results and, when an
	index is given, full-text search.
*/
func NewAPIServer(addr, repoDir string, index *repo.Index) APIServer {
	return &api{address: addr, repo: repoDir, index: index}
}

//
type api struct {
	address string
	repo    string
	index   *repo.Index
	server  *http.Server
}

//
func (a *api) Serve() error {

	router := mux.NewRouter().StrictSlash(true)

	addRoute(router, "list", "GET", "/list", a.list)
	addRoute(router, "search", "GET", "/search", a.search)
	addRoute(router, "info", "GET", "/image/{image:.+}/info", a.info)
	addRoute(router, "dir", "GET", "/image/{image:.+}/dir", a.dir)
	addRoute(router, "validate", "GET", "/image/{image:.+}/validate", a.validate)

	addr := a.address
	if len(strings.Split(addr, ":")) < 2 {
		addr = fmt.Sprintf("%s:8262", a.address)
	}

	log.Infof("cbmimage API starts listening on %s", addr)
	a.server = &http.Server{Addr: addr, Handler: router}

	err := a.server.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

//
func (a *api) Stop() error {
	if a.server != nil {
		log.Info("API server stopping...")
		err := a.server.Shutdown(context.Background())
		a.server = nil
		return err
	}
	return nil
}

//
func addRoute(r *mux.Router, name, method, pattern string,
	handler http.HandlerFunc) {
	r.Methods(method).
		Path(pattern).
		Name(name).
		Handler(requestLogger(handler, name))
}

//
func requestLogger(h http.Handler, name string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log.WithFields(log.Fields{
			"method":  r.Method,
			"request": r.RequestURI,
			"handler": name,
		}).Debug("API request")
		h.ServeHTTP(w, r)
	})
}

//
func (a *api) open(w http.ResponseWriter, r *http.Request) *cbmimage.Image {

	name := mux.Vars(r)["image"]

	path := filepath.Join(a.repo, filepath.Clean("/"+name))

	im, err := format.Load(path, cbmimage.TypeUnknown)
	if err != nil {
		handleError(fmt.Errorf("cannot open image '%s': %v", name, err),
			http.StatusNotFound, w)
		return nil
	}

	return im
}

//
type imageInfo struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Tracks     int    `json:"tracks"`
	Blocks     int    `json:"blocks"`
	BlocksFree int    `json:"blocksFree,omitempty"`
	DiskName   string `json:"diskName,omitempty"`
	Geos       bool   `json:"geos,omitempty"`
}

//
func (a *api) info(w http.ResponseWriter, r *http.Request) {

	im := a.open(w, r)
	if im == nil {
		return
	}
	defer im.Close()

	info := &imageInfo{
		Name:   im.Filename(),
		Type:   im.TypeName(),
		Tracks: im.MaxTrack(),
		Blocks: im.MaxLBA(),
		Geos:   im.IsGeos(),
	}

	if h := im.DirHeader(); h != nil {
		name, _ := h.Name.Extract()
		info.DiskName = strings.TrimSpace(name)
		info.BlocksFree = h.FreeBlocks
	}

	sendJSONReply(info, http.StatusOK, w)
}

//
type dirEntry struct {
	Name   string `json:"name"`
	Type   string `json:"type"`
	Blocks int    `json:"blocks"`
	Track  int    `json:"track"`
	Sector int    `json:"sector"`
	Locked bool   `json:"locked,omitempty"`
	Open   bool   `json:"open,omitempty"`
	Geos   bool   `json:"geos,omitempty"`
}

//
func (a *api) dir(w http.ResponseWriter, r *http.Request) {

	im := a.open(w, r)
	if im == nil {
		return
	}
	defer im.Close()

	dir, err := im.OpenDir()
	if err != nil {
		handleError(err, http.StatusInternalServerError, w)
		return
	}
	defer dir.Close()

	entries := []dirEntry{}

	for dir.Next() {
		e := dir.Entry()
		if e.IsDeleted() {
			continue
		}
		name, _ := e.Name.Extract()
		entries = append(entries, dirEntry{
			Name:   strings.TrimSpace(name),
			Type:   e.Type.String(),
			Blocks: e.BlockCount,
			Track:  e.StartBlock.Track,
			Sector: e.StartBlock.Sector,
			Locked: e.Locked,
			Open:   !e.Closed,
			Geos:   e.IsGeos,
		})
	}

	sendJSONReply(entries, http.StatusOK, w)
}

//
type validationResult struct {
	Clean    bool     `json:"clean"`
	Error    string   `json:"error,omitempty"`
	Findings []string `json:"findings,omitempty"`
}

//
func (a *api) validate(w http.ResponseWriter, r *http.Request) {

	im := a.open(w, r)
	if im == nil {
		return
	}
	defer im.Close()

	res := &validationResult{Clean: true}

	im.SetReporter(func(msg string) {
		res.Findings = append(res.Findings, msg)
	})

	if err := im.Validate(); err != nil {
		res.Clean = false
		res.Error = err.Error()
	}

	sendJSONReply(res, http.StatusOK, w)
}

//
func (a *api) list(w http.ResponseWriter, r *http.Request) {

	images := []string{}

	err := filepath.Walk(a.repo,
		func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				return nil
			}
			if _, typ, _ := format.SplitNameTypeCompressor(path); typ != "" {
				rel, _ := filepath.Rel(a.repo, path)
				images = append(images, rel)
			}
			return nil
		})

	if err != nil {
		handleError(err, http.StatusInternalServerError, w)
		return
	}

	sendJSONReply(images, http.StatusOK, w)
}

//
func (a *api) search(w http.ResponseWriter, r *http.Request) {

	if a.index == nil {
		handleError(fmt.Errorf("no search index configured"),
			http.StatusNotImplemented, w)
		return
	}

	term := r.URL.Query().Get("q")

	max := 25
	if m := r.URL.Query().Get("max"); m != "" {
		var err error
		if max, err = strconv.Atoi(m); err != nil || max < 1 {
			handleError(fmt.Errorf("invalid max parameter '%s'", m),
				http.StatusBadRequest, w)
			return
		}
	}

	res, err := a.index.Search(term, max)
	if err != nil {
		handleError(err, http.StatusBadRequest, w)
		return
	}

	sendJSONReply(res, http.StatusOK, w)
}

//
func sendJSONReply(obj interface{}, status int, w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(obj); err != nil {
		log.Errorf("error sending JSON reply: %v", err)
	}
}

//
func handleError(e error, status int, w http.ResponseWriter) {
	log.Error(e)
	http.Error(w, e.Error(), status)
}
