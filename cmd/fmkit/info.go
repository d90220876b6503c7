package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/scanforge/fmkit/internal/fm"
)

func runInfo(args []string) error {
	fs := flag.NewFlagSet("info", flag.ExitOnError)
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: fmkit info <file.fm>")
	}
	path := fs.Arg(0)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r, err := fm.NewReader(f)
	if err != nil {
		return err
	}
	fmt.Printf("%s: version %d, compression %s\n", path, r.Version(), r.Compression())

	type scanInfo struct {
		scan   *fm.Scan
		frames int
	}
	scans := make(map[string]*scanInfo)
	var order []string
	current := ""
	records := 0
	for {
		rec, err := r.ReadRecord()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		records++
		switch {
		case rec.Scan != nil:
			if _, ok := scans[rec.Scan.Name]; !ok {
				scans[rec.Scan.Name] = &scanInfo{scan: rec.Scan}
				order = append(order, rec.Scan.Name)
			}
			current = rec.Scan.Name
		case rec.Frame != nil:
			name := rec.Frame.Scan
			if name == "" {
				name = current
			}
			if si, ok := scans[name]; ok {
				si.frames++
			}
		}
	}

	fmt.Printf("%d records, %d scans\n", records, len(order))
	for _, name := range order {
		si := scans[name]
		s := si.scan
		fmt.Printf("  scan %q: image %dx%d, depth %dx%d, %d frames\n",
			name, s.ImageWidth, s.ImageHeight, s.DepthWidth, s.DepthHeight, si.frames)
	}
	return nil
}
