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
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"

	"github.com/OpenCBM/libcbmimage/pkg/cbmimage"
	"github.com/OpenCBM/libcbmimage/pkg/format"
)

// index writes are batched; a batch is forced out whenever the repository
// has settled down, or as soon as more than this many additions and
// removals are pending
const batchLimit = 100

//
const watchSettle = 5 * time.Second

/*
	Entry is the indexed view of one disk image: its path within the
	repository, the disk name from the image header, the names of the
	files stored on it, and the image type. Punctuation-heavy file names
	are softened so that the individual words remain searchable.
*/
type Entry struct {
	Name     string
	DiskName string
	Files    string
	Type     string
}

//
type Index struct {
	// where the index itself lives
	location string
	// the repository root holding the images
	root string

	index bleve.Index
	// true until a just-created index has been filled for the first time
	fresh bool

	watcher *repoWatcher
	stopped bool

	batch   *bleve.Batch
	pending int
}

/*
	NewIndex opens the full-text index for a repository of disk images,
	creating it when there is none yet at the given location. Searches can
	then find an image by its file name, its disk name, or the files it
	contains; see Search.
*/
func NewIndex(location, root string) (*Index, error) {

	i := &Index{}

	var err error
	if i.location, err = filepath.Abs(location); err != nil {
		return nil, err
	}
	if i.root, err = filepath.Abs(root); err != nil {
		return nil, err
	}

	logger := log.WithFields(
		log.Fields{"location": i.location, "root": i.root})

	if _, err = os.Stat(i.location); os.IsNotExist(err) {
		logger.Info("creating new index")
		i.index, err = bleve.New(i.location, bleve.NewIndexMapping())
		i.fresh = true
	} else if err == nil {
		logger.Info("opening index")
		i.index, err = bleve.Open(i.location)
	}

	if err != nil {
		logger.Errorf("cannot open index: %v", err)
		return nil, err
	}

	i.batch = i.index.NewBatch()
	return i, nil
}

// isImage reports whether a repository path looks like a disk image: its
// name must carry one of the image extensions, possibly below a
// compressor extension.
func isImage(path string) bool {
	_, typ, _ := format.SplitNameTypeCompressor(path)
	return typ != ""
}

/*
	Start brings the index in sync with the repository and begins watching
	it: stale entries are pruned, images that changed since the last run
	are rescanned, and from then on file system events keep the index
	fresh.
*/
func (i *Index) Start() error {

	started := time.Now()

	if err := i.prune(); err != nil {
		return fmt.Errorf("error pruning index: %v", err)
	}
	if err := i.refresh(); err != nil {
		return fmt.Errorf("error refreshing index: %v", err)
	}

	var err error
	if i.watcher, err = newRepoWatcher(i.root); err != nil {
		return fmt.Errorf("error starting repo watcher: %v", err)
	}
	i.watcher.run(watchSettle, i.applyChange, i.flush)

	i.flush()

	log.WithField("duration", time.Since(started)).Info("index ready")
	return nil
}

//
func (i *Index) Stop() {

	if i.watcher != nil {
		i.watcher.stop()
	}

	if i.index != nil {
		i.index.Close()
	}

	i.stopped = true
}

/*
	prune drops entries whose backing file no longer exists, or no longer
	carries an image name; the latter happens when an image is renamed to
	park it outside the collection.
*/
func (i *Index) prune() error {

	if i.fresh {
		return nil
	}

	advanced, err := i.index.Advanced()
	if err != nil {
		return err
	}

	reader, err := advanced.Reader()
	if err != nil {
		return err
	}
	defer reader.Close()

	ids, err := reader.DocIDReaderAll()
	if err != nil {
		return err
	}
	defer ids.Close()

	dropped := 0

	for {
		internal, err := ids.Next()
		if err != nil {
			return err
		}
		if internal == nil {
			break
		}

		id, err := reader.ExternalID(internal)
		if err != nil {
			return err
		}

		_, statErr := os.Stat(filepath.Join(i.root, id))
		if os.IsNotExist(statErr) || !isImage(id) {
			i.remove(id)
			dropped++
		}
	}

	if dropped > 0 {
		log.Infof("pruned %d stale entries", dropped)
	}
	return nil
}

/*
	refresh walks the repository and rescans every image that was modified
	after the index store was last written. A fresh index has no such
	cutoff, so everything is scanned.
*/
func (i *Index) refresh() error {

	var cutoff time.Time
	if !i.fresh {
		if store, err := os.Stat(
			filepath.Join(i.location, "store")); err == nil {
			cutoff = store.ModTime()
			log.Debugf("rescanning images changed since %v", cutoff)
		}
	}
	i.fresh = false

	return filepath.Walk(i.root,
		func(path string, info os.FileInfo, err error) error {

			if err != nil {
				return err
			}
			if i.stopped {
				return fmt.Errorf("forced exit")
			}

			if info.IsDir() || !isImage(path) {
				return nil
			}
			if info.ModTime().After(cutoff) {
				i.add(i.relative(path))
			}

			return nil
		})
}

// applyChange is the watcher callback: images are rescanned or dropped,
// anything else in the tree is ignored.
func (i *Index) applyChange(path string, gone bool) {

	rel := i.relative(path)

	switch {
	case gone:
		// deletions are applied regardless of the name; a rename away
		// from an image extension delivers the old, indexed name here
		i.remove(rel)
	case isImage(rel):
		i.add(rel)
	default:
		log.WithField("path", rel).Debug("ignoring non-image file")
	}
}

/*
	scan opens the image behind a repository entry and pulls out what is
	worth indexing: the disk name and the names of the directory entries.
	A file that is not a readable disk image still gets indexed by name.
*/
func (i *Index) scan(path string) Entry {

	e := Entry{Name: searchable(path)}

	im, err := format.Load(filepath.Join(i.root, path), cbmimage.TypeUnknown)
	if err != nil {
		log.WithField("file", path).Debugf("not indexing contents: %v", err)
		return e
	}
	defer im.Close()

	// keep the index quiet about whatever validation would find
	im.SetReporter(func(string) {})

	e.Type = im.TypeName()

	if h := im.DirHeader(); h != nil {
		name, _ := h.Name.Extract()
		e.DiskName = strings.TrimSpace(name)
	}

	dir, err := im.OpenDir()
	if err != nil {
		return e
	}
	defer dir.Close()

	var files []string
	for dir.Next() {
		entry := dir.Entry()
		if entry.IsDeleted() {
			continue
		}
		name, _ := entry.Name.Extract()
		files = append(files, strings.TrimSpace(name))
	}
	e.Files = strings.Join(files, " ")

	return e
}

//
func (i *Index) add(path string) {

	log.WithField("file", path).Debug("indexing image")

	if err := i.batch.Index(path, i.scan(path)); err != nil {
		log.WithField("file", path).Errorf("cannot index: %v", err)
		return
	}

	if i.pending++; i.pending > batchLimit {
		i.flush()
	}
}

//
func (i *Index) remove(path string) {
	log.WithField("file", path).Debug("dropping index entry")
	i.batch.Delete(path)
	i.pending++
}

// flush pushes the pending batch into the index. Not thread safe; after
// Start, all additions and removals come from the watcher goroutine.
func (i *Index) flush() {

	if i.pending == 0 {
		return
	}

	log.Debugf("flushing %d pending index actions", i.pending)
	if err := i.index.Batch(i.batch); err != nil {
		log.Errorf("cannot execute index batch: %v", err)
	}

	i.batch = i.index.NewBatch()
	i.pending = 0
}

//
func (i *Index) relative(path string) string {
	if rel, err := filepath.Rel(i.root, path); err == nil &&
		!strings.HasPrefix(rel, "..") {
		return rel
	}
	return path
}

// punctuation that commonly glues words together in image file names
const nameGlue = "`~!@#$%^&*_-+=()[]{}|;:',.<>?"

// searchable breaks a path apart at the usual file name punctuation, so
// a search for a single word of it can match.
func searchable(path string) string {
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(nameGlue, r) {
			return ' '
		}
		return r
	}, path)
}
