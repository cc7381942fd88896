package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/faulttwin/faulttwin/internal/config"
	"github.com/faulttwin/faulttwin/internal/inference"
	"github.com/faulttwin/faulttwin/internal/model"
)

func validateCmd(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("validate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "config.yaml", "path to config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if err := validate(*configPath, stdout); err != nil {
		fmt.Fprintf(stderr, "faulttwin: %v\n", err)
		return 1
	}
	return 0
}

// validate loads the config and the model artifacts and builds the
// inference adapter, which checks the feature schema.
func validate(path string, out io.Writer) error {
	cfg, err := config.Load(path)
	if err != nil {
		return err
	}
	arts, err := model.LoadArtifacts(model.Files(cfg.Models))
	if err != nil {
		return err
	}
	inf, err := inference.New(arts)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "config:     %s ok\n", path)
	fmt.Fprintf(out, "source:     %s\n", cfg.Source.Type)
	fmt.Fprintf(out, "classifier: %d trees, %d classes\n", arts.Classifier.NumTrees(), arts.Classifier.NumClasses())
	fmt.Fprintf(out, "regressor:  %d trees\n", arts.Regressor.NumTrees())
	fmt.Fprintf(out, "labels:     %v\n", []string(arts.Labels))
	fmt.Fprintf(out, "features:   %v\n", inf.Features())
	fmt.Fprintf(out, "alerts:     %d rules, %d webhooks\n", len(cfg.Alerts.Rules), len(cfg.Alerts.Webhooks))
	return nil
}
