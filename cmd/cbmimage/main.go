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

package main

import (
	"fmt"
	"os"

	"github.com/OpenCBM/libcbmimage/pkg/run"
)

//
var CBMImageVersion string

//
func synopsis() {
	fmt.Print(`
synopsis: cbmimage {dir|bam|checkbam|validate|fat|read|showfile|search|serve|version} ...

run 'cbmimage {action} -h|--help' to see detailed info

`)
}

//
func version() {
	fmt.Printf("\ncbmimage %s\n\n", CBMImageVersion)
}

//
func main() {

	var action string
	var args []string

	if len(os.Args) > 1 {
		action = os.Args[1]
	}

	if len(os.Args) > 2 {
		args = os.Args[2:]
	}

	switch action {

	case "dir":
		run.DieOnError(run.NewDir().Execute(args))

	case "bam":
		run.DieOnError(run.NewBAM().Execute(args))

	case "checkbam":
		run.DieOnError(run.NewCheckBAM().Execute(args))

	case "validate":
		run.DieOnError(run.NewValidate().Execute(args))

	case "fat":
		run.DieOnError(run.NewFAT().Execute(args))

	case "read":
		run.DieOnError(run.NewRead().Execute(args))

	case "showfile":
		run.DieOnError(run.NewShowFile().Execute(args))

	case "search":
		run.DieOnError(run.NewSearch().Execute(args))

	case "serve":
		version()
		run.DieOnError(run.NewServe().Execute(args))

	case "version":
		version()

	case "":
		fallthrough
	case "-h":
		fallthrough
	case "--help":
		synopsis()

	default:
		run.Die("unknown action: %s\n", action)
	}
}
