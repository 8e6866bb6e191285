package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/reisap/rest-hapi/config"
	documentapi "github.com/reisap/rest-hapi/delivery/document-api"
	"github.com/reisap/rest-hapi/repository/document"
	"github.com/reisap/rest-hapi/repository/document/inmemory"
	"github.com/reisap/rest-hapi/types/model"
	"github.com/reisap/rest-hapi/usecase/association"
	"github.com/reisap/rest-hapi/usecase/authorize"
	"github.com/reisap/rest-hapi/usecase/crud"
)

func init() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).With().Logger()
}

func main() {
	opts, err := config.Load(os.Getenv("REST_HAPI_CONFIG"))
	if err != nil {
		log.Fatal().Msgf("Failed to load configuration: %v", err)
	}

	users := &model.Model{
		Name: "users",
		Associations: []model.Association{
			model.ManyToMany{As: "groups", TargetModel: "groups", LinkingModel: "group_users"},
			model.OneToMany{As: "posts", TargetModel: "posts", ForeignField: "userId"},
		},
	}
	groups := &model.Model{
		Name: "groups",
		Associations: []model.Association{
			model.ManyToMany{As: "users", TargetModel: "users", LinkingModel: "group_users"},
		},
	}
	posts := &model.Model{Name: "posts"}

	registry, cerr := model.NewRegistry(users, groups, posts)
	if cerr != nil {
		log.Fatal().Msgf("Invalid collection setup: %v", cerr.Err())
	}

	provider := document.Collections{
		"users":  inmemory.New(),
		"groups": inmemory.New(),
		"posts":  inmemory.New(),
	}

	engine := crud.New(registry, provider, opts)
	manager := association.New(registry, engine)
	gate := authorize.New(opts)

	auth := documentapi.WithCallerScope([]byte(os.Getenv("REST_HAPI_TOKEN_SECRET")))

	router := httprouter.New()
	documentapi.New(engine, manager, gate, users).Register(router, "/users", auth)
	documentapi.New(engine, manager, gate, groups).Register(router, "/groups", auth)
	documentapi.New(engine, manager, gate, posts).Register(router, "/posts", auth)

	address := "localhost:9090"

	server := http.Server{
		Addr:         address,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	go func() {
		sigint := make(chan os.Signal, 1)
		signal.Notify(sigint, os.Interrupt)
		<-sigint

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		log.Info().Msgf("Shutting down HTTP server..")
		if err := server.Shutdown(ctx); err != nil {
			log.Err(err).Msgf("HTTP server Shutdown")
		}
		log.Info().Msgf("Stopped serving new connections.")
		close(idleConnsClosed)
	}()

	log.Info().Msgf("Serving at %v..", address)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatal().Msgf("HTTP server ListenAndServe: %v", err)
	}

	<-idleConnsClosed
	log.Info().Msgf("Bye bye")
}
