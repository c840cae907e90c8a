package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"project-tracker-api/internal/config"
	"project-tracker-api/internal/logging"
	"project-tracker-api/internal/models"
	"project-tracker-api/internal/store"
	"project-tracker-api/internal/workflow"
	"project-tracker-api/pkg/exporter"
)

func main() {
	var (
		status = flag.String("status", "", "Only export projects in this status")
		search = flag.String("search", "", "Case-insensitive match on name, client or contact")
		out    = flag.String("out", "", "Output path (default: <prefix>_YYYYMMDD.xlsx in the working directory)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	ctx := context.Background()
	st, err := store.Open(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}
	defer st.Close(ctx)

	svc := workflow.NewService(st, workflow.WithLogger(log))
	projects, err := svc.List(ctx, models.ProjectQuery{Status: models.Status(*status), Search: *search})
	if err != nil {
		log.WithError(err).Fatal("failed to list projects")
	}

	path := *out
	if path == "" {
		path = exporter.FileName(exporter.PrefixFor(models.Status(*status)), time.Now())
	}
	file, err := os.Create(path)
	if err != nil {
		log.WithError(err).Fatal("failed to create output file")
	}
	if err := exporter.Write(file, projects); err != nil {
		file.Close()
		log.WithError(err).Fatal("export failed")
	}
	if err := file.Close(); err != nil {
		log.WithError(err).Fatal("export failed")
	}

	log.WithFields(logrus.Fields{"file": path, "projects": len(projects)}).Info("export written")
}
