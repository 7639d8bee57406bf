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

package format

import (
	"io/ioutil"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/OpenCBM/libcbmimage/pkg/cbmimage"
)

/*
	Load reads a disk image from a file, transparently unpacking gzip, zip
	and 7-zip containers. When hint is TypeUnknown, the image type is taken
	from the file name if it carries one of the known extensions, with the
	buffer size as the final arbiter.
*/
func Load(path string, hint cbmimage.ImageType) (*cbmimage.Image, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	name, typ, compressor := SplitNameTypeCompressor(path)

	reader, err := NewImageReader(f, compressor)
	if err != nil {
		f.Close()
		return nil, err
	}
	defer reader.Close()

	if reader.Type() != "" {
		typ = reader.Type()
	}
	if reader.Name() != "" {
		name = reader.Name()
	}

	buffer, err := ioutil.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	if hint == cbmimage.TypeUnknown && typ != "" {
		hint = cbmimage.TypeByName(typ)
	}

	im, err := cbmimage.Open(buffer, hint)
	if err != nil {
		// fall back to pure size detection when the extension lied
		if hint != cbmimage.TypeUnknown {
			log.WithField("file", path).Debugf(
				"type hint failed (%v), detecting by size", err)
			im, err = cbmimage.Open(buffer, cbmimage.TypeUnknown)
		}
		if err != nil {
			return nil, err
		}
	}

	im.SetFilename(name)

	log.WithFields(log.Fields{
		"file": path,
		"type": im.TypeName(),
	}).Debug("image loaded")

	return im, nil
}

// Save writes the raw image bytes back to a file, including the trailing
// error map when the image carries one.
func Save(im *cbmimage.Image, path string) error {

	raw := im.Raw()
	if em := im.ErrorMap(); em != nil {
		raw = append(append([]byte{}, raw...), em...)
	}

	return ioutil.WriteFile(path, raw, 0644)
}
