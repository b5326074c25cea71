package main

import (
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/mbolis/survey-board/app"
	"github.com/mbolis/survey-board/config"
	"github.com/mbolis/survey-board/database"
	"github.com/mbolis/survey-board/httpx"
	"github.com/mbolis/survey-board/images"
	"github.com/mbolis/survey-board/log"
	"github.com/mbolis/survey-board/routes"
	"github.com/mbolis/survey-board/survey"
)

func main() {
	cfg, err := config.ParseFlags(os.Args[1:])
	if err != nil {
		log.Fatal("main.config:", err)
	}
	if cfg.Debug {
		log.SetLevel(log.DebugLevel)
	}

	db, err := database.Open(cfg.DBUrl)
	if err != nil {
		log.Fatal("main.db.open:", err)
	}
	defer db.Close()

	codec := images.NewCodec(cfg.PublicDir)

	app := app.App{
		DB:           db,
		BearerServer: httpx.NewBearerServer(db, cfg),
		Config:       cfg,
		Surveys:      survey.NewStore(db, codec, survey.WithTextSampleLimit(cfg.TextSampleLimit)),
	}

	handler := routes.Wire(app)

	err = runServer(cfg, handler)
	if !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("main.server:", err)
	}
}

func runServer(cfg config.Config, handler http.Handler) error {
	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Info("Listening on " + cfg.Url())
	return srv.ListenAndServe()
}
