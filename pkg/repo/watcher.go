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
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

/*
	repoWatcher feeds file changes below the repository root into the
	index. The whole tree is watched recursively; directories created
	later join the watch. File events are handed to the apply callback
	right away, and once the tree has been quiet for the settle duration,
	the flush callback runs, so batched index writes reach the disk
	without the index having to poll.
*/
type repoWatcher struct {
	fs   *fsnotify.Watcher
	root string
	done chan struct{}
}

//
func newRepoWatcher(root string) (*repoWatcher, error) {

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &repoWatcher{
		fs:   fs,
		root: root,
		done: make(chan struct{}),
	}

	if err := filepath.Walk(root,
		func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if info.IsDir() {
				log.WithField("path", path).Debug("watching directory")
				return fs.Add(path)
			}
			return nil
		}); err != nil {
		fs.Close()
		return nil, err
	}

	return w, nil
}

/*
	run drains events on its own goroutine until the watcher is stopped.
	apply receives the affected path and whether the file is gone; flush
	runs after the tree has settled, and a final time when the watcher
	shuts down.
*/
func (w *repoWatcher) run(settle time.Duration,
	apply func(path string, gone bool), flush func()) {

	go func() {
		defer close(w.done)

		timer := time.NewTimer(settle)
		timer.Stop()

		for {
			select {

			case evt, ok := <-w.fs.Events:
				if !ok {
					flush()
					return
				}
				w.handle(evt, apply)
				timer.Reset(settle)

			case err, ok := <-w.fs.Errors:
				if ok {
					log.Errorf("repo watcher: %v", err)
				}

			case <-timer.C:
				flush()
			}
		}
	}()
}

//
func (w *repoWatcher) handle(evt fsnotify.Event, apply func(string, bool)) {

	switch {

	case evt.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		// a rename delivers the old name; the new one arrives as a
		// separate create event
		apply(evt.Name, true)

	case evt.Op&(fsnotify.Create|fsnotify.Write) != 0:
		info, err := os.Lstat(evt.Name)
		if err != nil {
			log.Debugf("cannot stat '%s': %v", evt.Name, err)
			return
		}

		if info.IsDir() {
			if evt.Op&fsnotify.Create != 0 {
				if err := w.fs.Add(evt.Name); err != nil {
					log.Errorf("cannot watch '%s': %v", evt.Name, err)
				}
			}
			return
		}

		apply(evt.Name, false)
	}
}

// stop shuts the watcher down and waits for its goroutine to finish. A
// stopped watcher cannot be restarted.
func (w *repoWatcher) stop() {
	if w.fs == nil {
		return
	}
	w.fs.Close()
	<-w.done
	w.fs = nil
}
