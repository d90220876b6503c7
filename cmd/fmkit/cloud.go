package main

import (
	"errors"
	"flag"
	"log"
	"math"
	"os"

	"github.com/scanforge/fmkit/internal/cloud"
	"github.com/scanforge/fmkit/internal/fm"
	"github.com/scanforge/fmkit/internal/mesh"
)

func runCloud(args []string) error {
	fs := flag.NewFlagSet("cloud", flag.ExitOnError)
	output := fs.String("o", "cloud.obj", "output OBJ path")
	minConfidence := fs.String("min-depth-confidence", "high", "minimum depth confidence: low, medium or high")
	minZ := fs.Float64("min-z", math.Inf(-1), "minimum point Z-coordinate")
	maxZ := fs.Float64("max-z", math.Inf(1), "maximum point Z-coordinate")
	maxZDist := fs.Float64("max-z-distance", math.Inf(1), "maximum point distance from the Z axis")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return errors.New("usage: fmkit cloud [flags] <file.fm>")
	}

	confidence, err := fm.ParseDepthConfidence(*minConfidence)
	if err != nil {
		return err
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	scans, frames, err := fm.ReadAll(f)
	if err != nil {
		return err
	}

	params := cloud.DefaultParams()
	params.MinDepthConfidence = confidence
	params.MinZ = *minZ
	params.MaxZ = *maxZ
	params.MaxZDistance = *maxZDist

	points, err := cloud.Build(scans, frames, params)
	if err != nil {
		return err
	}
	log.Printf("[cloud] %d points from %d frames", len(points), len(frames))

	var m mesh.Mesh
	for _, p := range points {
		m.AddVertex([3]float64{p.X, p.Y, p.Z})
	}

	out, err := os.Create(*output)
	if err != nil {
		return err
	}
	defer out.Close()
	return m.WriteOBJ(out)
}
