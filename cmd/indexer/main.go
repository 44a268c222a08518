package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"lectio/internal/config"
	"lectio/internal/embedding"
	"lectio/internal/extract"
	"lectio/internal/models"
	"lectio/internal/pipeline"
	"lectio/internal/storage"
	"lectio/internal/util"
	"lectio/internal/vectorstore"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()

	course := flag.String("course", "", "course name the documents belong to")
	flag.Parse()
	if strings.TrimSpace(*course) == "" {
		log.Fatal("missing -course")
	}

	paths := flag.Args()
	if len(paths) == 0 {
		var err error
		paths, err = listPDFs(filepath.Join(cfg.DataInRoot, *course))
		if err != nil {
			log.Fatal(err)
		}
	}
	if len(paths) == 0 {
		log.Fatalf("no PDF documents to index for course %s", *course)
	}

	provider, ref, err := embedding.FirstProvider(cfg.EmbedProviders, cfg.EmbedDim)
	if err != nil {
		log.Fatal(err)
	}
	log.Printf("lectio indexer course=%s documents=%d embed_provider=%q dim=%d", *course, len(paths), ref.Raw, cfg.EmbedDim)

	store, err := openStore(cfg, *course)
	if err != nil {
		log.Fatal(err)
	}

	var (
		docRepo *storage.DocumentRepo
		runRepo *storage.RunRepo
	)
	if cfg.PostgresURL != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		db, err := storage.NewDB(ctx, cfg.PostgresURL)
		if err != nil {
			cancel()
			log.Fatal(err)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			cancel()
			log.Fatal(err)
		}
		if err := storage.NewCourseRepo(db).EnsureCourse(ctx, *course); err != nil {
			cancel()
			log.Fatal(err)
		}
		cancel()
		docRepo = storage.NewDocumentRepo(db)
		runRepo = storage.NewRunRepo(db)
	}

	ctx := context.Background()
	docIDs := map[string]string{}
	if docRepo != nil {
		paths = dedupeIndexed(ctx, docRepo, paths, docIDs)
		if len(paths) == 0 {
			log.Printf("every document is already indexed for course %s, nothing to do", *course)
			return
		}
	}

	embedder := embedding.NewEmbedder(provider, cfg, log.Default())
	driver := pipeline.NewDriver(extract.NewPDFExtractor(), embedder, store, cfg.ChunkSize, cfg.ChunkOverlap, log.Default())

	res, runErr := driver.Run(ctx, *course, paths)

	manifestPath := filepath.Join(cfg.RunsRoot, res.RunID, "manifest.json")
	if err := util.WriteJSONAtomic(manifestPath, res); err != nil {
		log.Printf("write run manifest: %v", err)
	} else {
		log.Printf("run manifest written to %s", manifestPath)
	}

	if docRepo != nil {
		recordDocuments(ctx, docRepo, *course, res, docIDs)
	}
	if runRepo != nil {
		run := models.IngestRun{
			RunID:       res.RunID,
			Course:      res.Course,
			Status:      res.Status,
			ChunkCount:  res.ChunkCount,
			VectorCount: len(res.AppendedIDs),
			FailStage:   string(res.FailStage),
			FailReason:  res.FailReason,
			StartedAt:   res.StartedAt,
			FinishedAt:  res.FinishedAt,
		}
		if err := runRepo.InsertRun(ctx, run, res.Stages); err != nil {
			log.Printf("record ingest run: %v", err)
		}
	}

	if runErr != nil {
		log.Fatalf("run %s failed at stage %s: %s", res.RunID, res.FailStage, res.FailReason)
	}
}

// openStore loads the course store if any artifact exists, creating a fresh
// one only when neither file is present. A half pair stays on disk and the
// run aborts with ErrStoreCorrupted instead of paving over it.
func openStore(cfg config.Config, course string) (*vectorstore.Store, error) {
	store, err := vectorstore.Load(cfg.StoreRoot, course)
	if errors.Is(err, os.ErrNotExist) {
		return vectorstore.CreateEmpty(cfg.StoreRoot, course, cfg.EmbedDim)
	}
	if err != nil {
		return nil, err
	}
	return store, nil
}

func listPDFs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if strings.HasSuffix(strings.ToLower(e.Name()), ".pdf") {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// dedupeIndexed drops documents the catalog already records as indexed and
// fills docIDs with the content hash of every remaining path.
func dedupeIndexed(ctx context.Context, repo *storage.DocumentRepo, paths []string, docIDs map[string]string) []string {
	keep := make([]string, 0, len(paths))
	for _, path := range paths {
		id, err := hashFile(path)
		if err != nil {
			// Let the pipeline surface unreadable files.
			keep = append(keep, path)
			continue
		}
		docIDs[path] = id
		status, err := repo.DocumentStatus(ctx, id)
		if err != nil {
			log.Printf("catalog lookup for %s: %v", filepath.Base(path), err)
			keep = append(keep, path)
			continue
		}
		if status == "ok" {
			log.Printf("skipping already indexed document %s", filepath.Base(path))
			continue
		}
		keep = append(keep, path)
	}
	return keep
}

func recordDocuments(ctx context.Context, repo *storage.DocumentRepo, course string, res pipeline.Result, docIDs map[string]string) {
	for _, doc := range res.Documents {
		id := docIDs[doc.Path]
		if id == "" {
			var err error
			if id, err = hashFile(doc.Path); err != nil {
				continue
			}
		}
		status := doc.Status
		if res.Status == pipeline.StatusFailed && status == "ok" {
			status = "failed"
		}
		err := repo.UpsertDocument(ctx, models.Document{
			DocID:      id,
			Course:     course,
			Filename:   doc.SourceID,
			Status:     status,
			FailReason: doc.FailReason,
		})
		if err != nil {
			log.Printf("record document %s: %v", doc.SourceID, err)
		}
	}
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return util.SHA256HexFromReader(f)
}
