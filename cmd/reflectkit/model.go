package main

import (
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/cwbudde/algo-reflect/earth/crustone"
	"github.com/cwbudde/algo-reflect/earth/flatten"
	"github.com/cwbudde/algo-reflect/earth/ger"
	"github.com/cwbudde/algo-reflect/earth/ingest"
	"github.com/cwbudde/algo-reflect/earth/model"
	"github.com/cwbudde/algo-reflect/internal/config"
	"github.com/cwbudde/algo-reflect/internal/log"
)

func newFlagSet(name, args string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: reflectkit %s [flags] %s\n\nFlags:\n", name, args)
		fs.PrintDefaults()
	}

	return fs
}

func isGER(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".ger")
}

// loadModel reads GER text for a .ger path and an interchange document
// otherwise.
func loadModel(path string) (*model.Model, error) {
	if isGER(path) {
		return ger.ReadFile(path)
	}

	return model.LoadFile(path)
}

// saveModel writes m to path, or GER text to stdout when path is empty or
// "-".
func saveModel(path string, m *model.Model, stdout io.Writer) error {
	switch {
	case path == "" || path == "-":
		return ger.Write(stdout, m)
	case isGER(path):
		return ger.WriteFile(path, m)
	default:
		return model.SaveFile(path, m)
	}
}

func loadRunConfig(path string) (*config.RunConfig, error) {
	if path == "" {
		return config.EmptyRunConfig(), nil
	}

	return config.LoadRunConfig(path)
}

func runBuild(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("build", "", stderr)
	configPath := fs.String("config", "", "JSON run configuration; flags override it")
	reference := fs.String("reference", ingest.PREM, "embedded profile name or path of an ND file")
	maxDepth := fs.Float64("max-depth", config.DefaultMaxDepth, "depth of the halfspace, km")
	crust := fs.String("crust", config.CrustNone, "crust modification: none, oceanic or crust1")
	crustDir := fs.String("crust-dir", "", "directory holding the Crust-1.0 grid files")
	lat := fs.Float64("lat", 0, "latitude for -crust crust1, degrees")
	lon := fs.Float64("lon", 0, "longitude for -crust crust1, degrees")
	step := fs.Float64("gradient-step", 0, "gradient sublayer thickness, km (0 keeps the model default)")
	factor := fs.Float64("factor", config.DefaultVelocityFactor, "largest flattened velocity step per sublayer, km/s")
	doFlatten := fs.Bool("flatten", false, "apply the earth-flattening transform")
	debug := fs.Bool("debug", false, "enable debug logging")
	out := fs.String("o", "", "output file (.ger, .json, .yaml, .msgpack); GER to stdout if empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadRunConfig(*configPath)
	if err != nil {
		return err
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "reference":
			cfg.Reference = reference
		case "max-depth":
			cfg.MaxDepth = maxDepth
		case "crust":
			cfg.Crust = crust
		case "crust-dir":
			cfg.CrustDir = crustDir
		case "lat":
			cfg.Lat = lat
		case "lon":
			cfg.Lon = lon
		case "gradient-step":
			cfg.GradientStep = step
		case "factor":
			cfg.VelocityFactor = factor
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

	m, err := ingest.ModelFromReference(cfg.GetReference(), cfg.GetMaxDepth())
	if err != nil {
		return err
	}
	log.Debugw("loaded reference", "name", m.Name, "layers", len(m.Layers))

	switch cfg.GetCrust() {
	case config.CrustOceanic:
		if m, err = ingest.ModifyModelCrustOceanic(m); err != nil {
			return err
		}
	case config.CrustOne:
		c1, err := crustone.Load(cfg.GetCrustDir())
		if err != nil {
			return err
		}

		if m, err = ingest.ModifyModelCrustOne(m, c1, cfg.GetLat(), cfg.GetLon()); err != nil {
			return err
		}
	}

	if s := cfg.GetGradientStep(); s > 0 {
		m.GradientStep = s
	}

	if *doFlatten {
		f := cfg.GetVelocityFactor()
		if m, err = flatten.Model(m, flatten.WithFactors(f, f)); err != nil {
			return err
		}
	}

	log.Infow("built model",
		"name", m.Name,
		"layers", len(m.Layers),
		"halfspace_km", m.HalfspaceDepth(),
		"flattened", m.Flattened)

	return saveModel(*out, m, stdout)
}

func runConvert(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("convert", "<in> [out]", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return flag.ErrHelp
	}

	m, err := loadModel(fs.Arg(0))
	if err != nil {
		return err
	}

	return saveModel(fs.Arg(1), m, stdout)
}

func runFlatten(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("flatten", "<in> [out]", stderr)
	factor := fs.Float64("factor", config.DefaultVelocityFactor, "largest flattened velocity step per sublayer, km/s")
	fixed := fs.Bool("one-per-layer", false, "flatten each layer into exactly one sublayer")
	radius := fs.Float64("radius", flatten.EarthRadius, "earth radius, km")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() < 1 || fs.NArg() > 2 {
		fs.Usage()
		return flag.ErrHelp
	}

	m, err := loadModel(fs.Arg(0))
	if err != nil {
		return err
	}

	opts := []flatten.Option{flatten.WithFactors(*factor, *factor), flatten.WithRadius(*radius)}
	if *fixed {
		opts = append(opts, flatten.WithFixedStep())
	}

	flat, err := flatten.Model(m, opts...)
	if err != nil {
		return err
	}

	return saveModel(fs.Arg(1), flat, stdout)
}

func runInfo(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("info", "<model>", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		fs.Usage()
		return flag.ErrHelp
	}

	m, err := loadModel(fs.Arg(0))
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Model:      %s\n", m.Name)
	fmt.Fprintf(stdout, "Flattened:  %t\n", m.Flattened)
	fmt.Fprintf(stdout, "Halfspace:  %.4f km\n", m.HalfspaceDepth())
	fmt.Fprintf(stdout, "Distances:  %v km, azimuth %g\n", m.Distance.Distances(), m.Distance.Azimuth)
	fmt.Fprintf(stdout, "Sources:    %v km\n\n", m.SourceDepths)

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "#\tTop [km]\tThick [km]\tVp\tdVp\tVs\tdVs\tRho\tQp\tQs\tType\n")

	top := 0.0
	for i, l := range m.Layers {
		fmt.Fprintf(tw, "%d\t%.4f\t%.4f\t%.4f\t%+.5f\t%.4f\t%+.5f\t%.4f\t%g\t%g\t%s\n",
			i, top, l.Thickness, l.Vp, l.VpGradient, l.Vs, l.VsGradient, l.Rho, l.Qp, l.Qs, l.Type)
		top += l.Thickness
	}

	return tw.Flush()
}

func runCrust(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("crust", "", stderr)
	dir := fs.String("dir", ".", "directory holding the Crust-1.0 grid files")
	lat := fs.Float64("lat", 0, "latitude, degrees")
	lon := fs.Float64("lon", 0, "longitude, degrees")
	if err := fs.Parse(args); err != nil {
		return err
	}

	c1, err := crustone.Load(*dir)
	if err != nil {
		return err
	}

	p, err := c1.Profile(*lat, *lon)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "Crust-1.0 at %g/%g: elevation %.3f km, thickness %.3f km\n\n", *lat, *lon, p.Elevation(), p.Thickness())

	tw := tabwriter.NewWriter(stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Layer\tTop [km]\tBottom [km]\tVp\tVs\tRho\n")
	for i, l := range p.Layers {
		fmt.Fprintf(tw, "%s\t%.3f\t%.3f\t%.2f\t%.2f\t%.2f\n", crustone.LayerNames[i], l.Top, l.Bottom, l.Vp, l.Vs, l.Rho)
	}
	fmt.Fprintf(tw, "%s\t%.3f\t\t%.2f\t%.2f\t%.2f\n", crustone.LayerNames[crustone.NumLayers-1], p.Mantle.Top, p.Mantle.Vp, p.Mantle.Vs, p.Mantle.Rho)

	return tw.Flush()
}

func runReferences(args []string, stdout, stderr io.Writer) error {
	fs := newFlagSet("references", "", stderr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	for _, name := range ingest.ReferenceNames() {
		fmt.Fprintln(stdout, name)
	}

	return nil
}
