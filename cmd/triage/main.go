package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/phishdesk/email-triage/config"
	"github.com/phishdesk/email-triage/ingest"
	"github.com/phishdesk/email-triage/pipeline"
	"github.com/phishdesk/email-triage/storage"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	ingestDir := flag.String("ingest", "", "directory of .eml/.msg files to ingest (defaults to the configured input dir)")
	reparseID := flag.String("reparse", "", "re-run parsing for a stored email by record ID")
	showCaps := flag.Bool("capabilities", false, "print enabled parser strategies and exit")
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	caps := pipeline.AllCapabilities()
	if *showCaps {
		fmt.Printf("container parser (.msg): %v\n", caps.ContainerParser)
		fmt.Printf("fallback MIME parser:    %v\n", caps.FallbackMIMEParser)
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}

	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}

	ctx := context.Background()

	db, err := storage.NewPostgresDB(ctx, cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	store := storage.NewRecordStore(db)
	if err := store.Init(ctx); err != nil {
		log.WithError(err).Fatal("failed to initialize schema")
	}

	blobs, err := storage.NewFileBlobStore(cfg.AttachmentDir)
	if err != nil {
		log.WithError(err).Fatal("failed to open attachment store")
	}

	runner := pipeline.NewRunner(caps, cfg.DefaultRegion)
	svc := ingest.NewService(store, blobs, runner)

	if *reparseID != "" {
		id, err := uuid.Parse(*reparseID)
		if err != nil {
			log.WithError(err).Fatal("invalid record ID")
		}
		result, err := svc.Reparse(ctx, id)
		if err != nil {
			log.WithError(err).Fatal("reparse failed")
		}
		log.WithFields(logrus.Fields{
			"id":      id,
			"success": result.Success,
		}).Info(result.Message)
		return
	}

	dir := *ingestDir
	if dir == "" {
		dir = cfg.InputDir
	}
	if _, err := os.Stat(dir); err != nil {
		log.WithError(err).WithField("dir", dir).Fatal("input directory not accessible")
	}

	result, err := svc.IngestDirectory(ctx, dir)
	if err != nil {
		log.WithError(err).Fatal("ingestion failed")
	}

	log.WithFields(logrus.Fields{
		"created":    len(result.Created),
		"duplicates": len(result.Duplicates),
		"failures":   len(result.Failures),
		"skipped":    len(result.Skipped),
	}).Info("ingestion complete")

	for _, name := range result.Duplicates {
		log.WithField("file", name).Debug("duplicate content, skipped")
	}
	for _, note := range result.Skipped {
		log.Warn(note)
	}
}
