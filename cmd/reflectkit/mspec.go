package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/floats"

	"github.com/cwbudde/algo-reflect/internal/log"
	"github.com/cwbudde/algo-reflect/spectral/specfile"
	"github.com/cwbudde/algo-reflect/spectral/synth"
)

// traceFile is the document written by mspec -o.
type traceFile struct {
	Azimuth        float64            `json:"azimuth" msgpack:"azimuth"`
	ReduceVelocity float64            `json:"reduce_velocity" msgpack:"reduce_velocity"`
	Amplitude      string             `json:"amplitude" msgpack:"amplitude"`
	Source         string             `json:"source" msgpack:"source"`
	Traces         []synth.Timeseries `json:"traces" msgpack:"traces"`
}

func runMspec(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("mspec", "<spectral-file>", stderr)
	configPath := fs.String("config", "", "JSON run configuration; flags override it")
	reduceVel := fs.Float64("reduce-vel", synth.DefaultReduceVelocity, "reducing velocity, km/s")
	offset := fs.Float64("offset", synth.DefaultTimeOffset, "time offset added to the reduced time, s")
	amp := fs.String("amp", string(synth.Velocity), "amplitude style: displacement or velocity")
	source := fs.String("source", string(synth.Step), "source style: step or impulse")
	taperName := fs.String("taper", "none", "end taper: none, hann, tukey or cosine")
	taperAlpha := fs.Float64("taper-alpha", 0.1, "tapered fraction of a tukey taper")
	workers := fs.Int("workers", 0, "parallel workers (0 means one per CPU)")
	byteOrder := fs.String("byte-order", "little", "byte order of the spectral file: little or big")
	debug := fs.Bool("debug", false, "enable debug logging")
	out := fs.String("o", "", "write traces to a .json or .msgpack file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return flag.ErrHelp
	}

	cfg, err := loadRunConfig(*configPath)
	if err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "reduce-vel":
			cfg.ReduceVelocity = reduceVel
		case "offset":
			cfg.TimeOffset = offset
		case "amp":
			cfg.Amplitude = amp
		case "source":
			cfg.Source = source
		case "taper":
			cfg.Taper = taperName
		case "taper-alpha":
			cfg.TaperAlpha = taperAlpha
		case "workers":
			cfg.Workers = workers
		case "byte-order":
			cfg.ByteOrder = byteOrder
		case "debug":
			cfg.Debug = debug
		}
	})
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := log.Init(cfg.GetDebug()); err != nil {
		return err
	}

	order, err := cfg.GetByteOrder()
	if err != nil {
		return err
	}

	h, spectra, err := specfile.DecodeFile(fs.Arg(0), specfile.WithByteOrder(order))
	if err != nil {
		return err
	}
	log.Infow("decoded spectral file",
		"path", fs.Arg(0),
		"spectra", len(spectra),
		"band", fmt.Sprintf("%d..%d", h.BandStart(), h.BandEnd()),
		"samples", h.NumTimePoints())

	opts, err := cfg.SynthOptions()
	if err != nil {
		return err
	}
	opts = append(opts, synth.WithLogger(log.Logger()))

	traces, err := synth.Synthesize(h, spectra, opts...)
	if err != nil {
		return err
	}

	if err := printTraces(stdout, spectra, traces); err != nil {
		return err
	}

	if *out == "" {
		return nil
	}

	doc := traceFile{
		Azimuth:        h.Azimuth,
		ReduceVelocity: cfg.GetReduceVelocity(),
		Amplitude:      string(cfg.GetAmplitude()),
		Source:         string(cfg.GetSource()),
		Traces:         traces,
	}
	if err := writeTraces(*out, doc); err != nil {
		return err
	}
	log.Infow("wrote traces", "path", *out, "traces", len(traces))

	return nil
}

func printTraces(w io.Writer, spectra []specfile.RawSpectrum, traces []synth.Timeseries) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Station\tRange [km]\tDepth [km]\tMech\tStart [s]\tdt [s]\tSamples\tPeak |Z|\tPeak |R|\tPeak |T|\tPeak |U0(f)|\n")

	for i, ts := range traces {
		fmt.Fprintf(tw, "%s\t%g\t%g\t%s\t%.3f\t%g\t%d\t%.4g\t%.4g\t%.4g\t%.4g\n",
			ts.Station(), ts.Range, ts.Depth, ts.Mechanism, ts.TimeReduce, ts.Dt, len(ts.Z),
			peak(ts.Z), peak(ts.R), peak(ts.T), peak(specfile.Amplitude(spectra[i].U0)))
	}

	return tw.Flush()
}

func peak(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}

	return floats.Norm(v, math.Inf(1))
}

func writeTraces(path string, doc traceFile) error {
	var (
		data []byte
		err  error
	)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(doc, "", "  ")
	case ".msgpack", ".mpk":
		data, err = msgpack.Marshal(doc)
	default:
		return fmt.Errorf("unsupported trace file extension %q", filepath.Ext(path))
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}
