package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"phylosem/adapters/memstore"
	"phylosem/adapters/postgres"
	"phylosem/internal"
	"phylosem/internal/config"
	"phylosem/internal/copula"
	"phylosem/internal/engine"
	"phylosem/internal/phylo"
	"phylosem/internal/testkit"
	"phylosem/ports"
)

func main() {
	species := flag.Int("species", 200, "synthetic community size")
	seed := flag.Int64("seed", 7, "data generator seed")
	form := flag.String("form", "composite", "mean structure: composite, deconstructed, or semi")
	withTree := flag.Bool("tree", true, "enable the phylogenetic blend")
	flag.Parse()

	if err := run(*species, *seed, *form, *withTree); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(species int, seed int64, formName string, withTree bool) error {
	ctx := context.Background()
	log := internal.NewDefaultLogger()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	var store ports.ArtifactStore = memstore.New()
	if cfg.Database.Enabled {
		db, err := postgres.Connect(ctx, cfg.Database.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			return err
		}
		store = postgres.NewArtifactStore(db)
		log.Info("[Main] using postgres artifact store")
	}

	var kind engine.FormKind
	switch formName {
	case "composite":
		kind = engine.FormComposite
	case "deconstructed":
		kind = engine.FormDeconstructed
	case "semi":
		kind = engine.FormSemiNonlinear
	default:
		return fmt.Errorf("unknown form %q", formName)
	}

	gen := testkit.DefaultConfig()
	gen.Species = species
	gen.Seed = seed
	data := testkit.Generate(gen)

	in := engine.RunInput{
		Data:        data,
		Axes:        []string{"L", "T", "M", "N", "R"},
		Kind:        kind,
		Cluster:     "family",
		GroupColumn: "woodiness",
		DefaultDistricts: []copula.DefaultDistrict{
			{AxisA: "T", AxisB: "M"},
		},
	}
	if withTree {
		tree, err := phylo.ParseNewick(testkit.BalancedNewick(data.Species))
		if err != nil {
			return err
		}
		in.Tree = tree
	}

	result, err := engine.New(cfg, store, log).Run(ctx, in)
	if err != nil {
		return err
	}

	fmt.Printf("run %s\n", result.RunID)
	for _, s := range result.Summaries {
		fmt.Printf("  %s: R2 %.3f ± %.3f over %d cells (%d skipped)\n",
			s.Axis, s.R2Mean, s.R2SD, s.Cells, s.Skipped)
	}
	for _, d := range result.DSep {
		fmt.Printf("  d-sep %s: C=%.2f df=%d p=%.4f\n", d.Group, d.C, d.DF, d.PValue)
	}
	for _, d := range result.Districts {
		tag := ""
		if d.Default {
			tag = " (default)"
		}
		fmt.Printf("  district %s~%s%s: rho=%.3f aic=%.1f\n", d.AxisA, d.AxisB, tag, d.Rho, d.AIC)
	}
	for _, b := range result.Blends {
		fmt.Printf("  blend %s: alpha=%.1f R2 sem=%.3f phylo=%.3f blend=%.3f\n",
			b.Axis, b.Alpha, b.R2SEM, b.R2Phylo, b.R2Blend)
	}
	return nil
}
