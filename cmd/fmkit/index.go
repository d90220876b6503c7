package main

import (
	"errors"
	"flag"
	"fmt"
	"log"

	"github.com/scanforge/fmkit/internal/fmstore"
)

func runIndex(args []string) error {
	fs := flag.NewFlagSet("index", flag.ExitOnError)
	dbPath := fs.String("db", "fmkit.db", "catalogue database path")
	list := fs.Bool("ls", false, "list the catalogue instead of indexing")
	fs.Parse(args)

	store, err := fmstore.Open(*dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	if *list {
		return listCatalogue(store)
	}

	if fs.NArg() == 0 {
		return errors.New("usage: fmkit index [-db path] <file.fm> [...] (or -ls)")
	}
	for _, path := range fs.Args() {
		if err := store.IndexFile(path); err != nil {
			return err
		}
		log.Printf("[index] indexed %s", path)
	}
	return nil
}

func listCatalogue(store *fmstore.Store) error {
	files, err := store.Files()
	if err != nil {
		return err
	}
	for _, f := range files {
		fmt.Printf("%s (version %d, %s, indexed %s)\n",
			f.Path, f.FormatVersion, f.Compression, f.IndexedAt.Format("2006-01-02 15:04:05"))
		scans, err := store.ScansForFile(f.ID)
		if err != nil {
			return err
		}
		for _, sc := range scans {
			fmt.Printf("  scan %q: depth %dx%d, %d frames, time %d..%d\n",
				sc.Name, sc.DepthWidth, sc.DepthHeight, sc.FrameCount, sc.FirstTime, sc.LastTime)
		}
	}
	return nil
}
