package pipeline

import (
	"github.com/rs/zerolog/log"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/models"
	"github.com/mikhail349/new-admin-panel-sprint-3/internal/transform"
	"github.com/mikhail349/new-admin-panel-sprint-3/sources"
)

const (
	StreamFilmwork = "filmwork"
	StreamGenre    = "genre"
	StreamPerson   = "person"
)

// StreamOrder is the order streams run in within one tick.
var StreamOrder = []string{StreamFilmwork, StreamGenre, StreamPerson}

type Indices struct {
	Movies  string `koanf:"movies" validate:"required"`
	Genres  string `koanf:"genres" validate:"required"`
	Persons string `koanf:"persons" validate:"required"`
}

type Config struct {
	RowsLimit int      `koanf:"rows_limit" validate:"gt=0"`
	Streams   []string `koanf:"streams" validate:"min=1,dive,oneof=filmwork genre person"`
	Indices   Indices  `koanf:"indices"`
}

func DefaultConfig() Config {
	return Config{
		RowsLimit: 100,
		Streams:   append([]string(nil), StreamOrder...),
		Indices:   Indices{Movies: "movies", Genres: "genres", Persons: "persons"},
	}
}

// enabled reports the configured streams in StreamOrder.
func (c Config) enabled() []string {
	want := make(map[string]bool, len(c.Streams))
	for _, s := range c.Streams {
		want[s] = true
	}
	var out []string
	for _, s := range StreamOrder {
		if want[s] {
			out = append(out, s)
		}
	}
	return out
}

// Build binds the enabled streams to a live connection.
func Build(cfg Config, db sources.Querier, state WatermarkStore, loader Loader) []Stream {
	var streams []Stream
	for _, name := range cfg.enabled() {
		switch name {
		case StreamFilmwork:
			streams = append(streams, NewEtl[models.FilmworkRow](name, cfg.Indices.Movies,
				sources.NewFilmworkExtractor(db, state, cfg.RowsLimit), transform.Filmworks, loader, state))
		case StreamGenre:
			streams = append(streams, NewEtl[models.GenreRow](name, cfg.Indices.Genres,
				sources.NewGenreExtractor(db, state, cfg.RowsLimit), transform.Genres, loader, state))
		case StreamPerson:
			streams = append(streams, NewEtl[models.PersonRow](name, cfg.Indices.Persons,
				sources.NewPersonExtractor(db, state, cfg.RowsLimit), transform.Persons, loader, state))
		}
	}
	log.Trace().Strs("streams", cfg.enabled()).Msg("streams bound to connection")
	return streams
}
