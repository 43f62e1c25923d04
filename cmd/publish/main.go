package main

import (
	"context"
	"log"
	"time"

	"math-showcase/config"
	"math-showcase/storage"
)

func main() {
	log.Println("Starte Veröffentlichung des Output-Baums...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Fehler beim Laden der Konfiguration: %v", err)
	}
	if !cfg.S3Enabled() {
		log.Fatal("S3_URL, S3_BUCKET, S3_KEY und S3_SECRET müssen gesetzt sein")
	}

	// 1. S3-Client erstellen
	s3Client, err := storage.NewS3Client(cfg)
	if err != nil {
		log.Fatalf("Fehler beim Erstellen des S3-Clients: %v", err)
	}
	publisher := storage.NewPublisher(s3Client, cfg)
	ctx := context.Background()

	// 2. Output-Baum als Snapshot hochladen
	snapshot, count, err := publisher.PublishTree(ctx, cfg.PublicDataDir, time.Now())
	if err != nil {
		log.Fatalf("Fehler beim Hochladen nach S3: %v", err)
	}
	log.Printf("%d Dateien nach s3://%s/%s hochgeladen", count, cfg.S3Bucket, snapshot)

	// 3. Alte Snapshots rotieren
	deleted, err := publisher.RotateSnapshots(ctx)
	if err != nil {
		log.Fatalf("Fehler bei der Rotation alter Snapshots: %v", err)
	}
	log.Printf("%d alte Snapshots gelöscht.", len(deleted))

	log.Println("Veröffentlichung erfolgreich abgeschlossen.")
}
