// Command migrate imports a directory of Markdown articles into the
// database, storing each one the way the editor would.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/debemdeboas/newsroom/internal/config"
	"github.com/debemdeboas/newsroom/internal/convert"
	"github.com/debemdeboas/newsroom/internal/db"
	"github.com/debemdeboas/newsroom/internal/logger"
	"github.com/debemdeboas/newsroom/internal/repository"
	"github.com/debemdeboas/newsroom/internal/util/compression"
)

var log zerolog.Logger

func main() {
	path := flag.String("path", "", "Path to the directory containing .md files")
	dbPath := flag.String("db", "", "SQLite database to import into (defaults to the configured one)")
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	raw := flag.Bool("raw", false, "store files as they are instead of in the editor's canonical form")
	flag.Parse()

	config.LoadEnv()
	if err := config.LoadConfig(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg := config.Get()
	log = logger.New(cfg.Logging.Level)
	db.SetLogger(log)
	repository.SetLogger(log)

	if *path == "" {
		log.Fatal().Msg("--path is required")
	}
	if *dbPath == "" {
		*dbPath = cfg.Database.Path
	}

	compressor, err := compression.ForName(cfg.Database.Compression)
	if err != nil {
		log.Fatal().Err(err).Msg("Unknown compression")
	}
	sqlite := db.NewSQLite(*dbPath)
	if err := sqlite.InitDB(); err != nil {
		log.Fatal().Err(err).Msg("Error initializing database")
	}
	defer sqlite.Close()

	dst := repository.NewDBArticleRepository(sqlite, compressor, 0)
	imported, failed := migrate(repository.NewFSArticleRepository(*path, 0), dst, !*raw)
	log.Info().Int("imported", imported).Int("failed", failed).Str("db", *dbPath).Msg("Migration finished")
	if failed > 0 {
		os.Exit(1)
	}
}

// migrate copies every article from src into dst, keeping ids and creation
// dates. Files that cannot be read into the editor are skipped.
func migrate(src, dst repository.ArticleRepository, canonical bool) (imported, failed int) {
	articles, _, err := src.GetArticles()
	if err != nil {
		log.Error().Err(err).Msg("Error reading articles")
		return 0, 1
	}

	for _, a := range articles {
		if canonical {
			stored, err := convert.Canonical(string(a.Markdown))
			if err != nil {
				log.Error().Err(err).Str("article", string(a.ID)).Msg("Error converting article")
				failed++
				continue
			}
			a.Markdown = []byte(stored)
		}
		if a.Info != nil && a.Info.TitleData != nil && !a.Info.Date.IsZero() {
			a.CreatedDate = a.Info.Date.UTC()
		}
		a.Path = ""
		if err := dst.SaveArticle(&a); err != nil {
			log.Error().Err(err).Str("article", string(a.ID)).Msg("Error saving article")
			failed++
			continue
		}
		log.Info().Str("article", string(a.ID)).Str("title", a.Title).Msg("Imported article")
		imported++
	}
	return imported, failed
}
