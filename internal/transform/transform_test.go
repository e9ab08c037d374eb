package transform

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/models"
)

const (
	filmID   = "3d825f60-9fff-4dfe-b294-1a45fa1e115d"
	personA  = "5b4bf1bc-3397-4e83-9b17-8b10c6544ed1"
	personB  = "26e83050-29ef-4163-a99d-b546cac208f8"
	genreID  = "120a21cf-9097-479e-904a-13dd7198c1dd"
	genre2ID = "b92ef010-5e4c-4fd0-99d6-41b6456272cd"
)

func ptr[T any](v T) *T { return &v }

func TestFilmworks(t *testing.T) {
	created := time.Date(2021, 6, 16, 0, 0, 0, 0, time.UTC)
	rows := []models.FilmworkRow{
		{
			ID:           filmID,
			Title:        "Star Wars",
			Description:  ptr("A long time ago"),
			Rating:       ptr(8.6),
			CreationDate: &created,
			Type:         "movie",
			Credits: []models.Credit{
				{ID: personA, Name: "Mark Hamill", Role: "actor"},
				{ID: personB, Name: "George Lucas", Role: "director"},
				{ID: personB, Name: "George Lucas", Role: "writer"},
				{ID: personA, Name: "Mark Hamill", Role: "actor"},
			},
			Genres: []models.Stub{
				{ID: genre2ID, Name: "Sci-Fi"},
				{ID: genreID, Name: "Action"},
			},
		},
	}

	docs, err := Filmworks(rows)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	fw, ok := docs[0].(*models.Filmwork)
	require.True(t, ok)
	assert.Equal(t, filmID, fw.DocumentID())
	assert.Equal(t, []models.Stub{{ID: personA, Name: "Mark Hamill"}}, fw.Actors)
	assert.Equal(t, []models.Stub{{ID: personB, Name: "George Lucas"}}, fw.Directors)
	assert.Equal(t, []models.Stub{{ID: personB, Name: "George Lucas"}}, fw.Writers)
	assert.Equal(t, []string{"Mark Hamill"}, fw.ActorsNames)
	assert.Equal(t, []string{"Action", "Sci-Fi"}, fw.GenresNames)
	assert.NotNil(t, fw.Producers)
	assert.Empty(t, fw.Producers)
	require.NotNil(t, fw.CreationDate)
	assert.Equal(t, "2021-06-16", *fw.CreationDate)
}

func TestFilmworks_EmptyRelationsSerializeAsEmptyLists(t *testing.T) {
	docs, err := Filmworks([]models.FilmworkRow{{ID: filmID, Title: "Untitled"}})
	require.NoError(t, err)

	b, err := json.Marshal(docs[0])
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	for _, field := range []string{"actors", "writers", "directors", "producers", "genres", "actors_names", "writers_names", "directors_names", "genres_names"} {
		assert.Equal(t, []any{}, got[field], field)
	}
	assert.Nil(t, got["description"])
	assert.Nil(t, got["imdb_rating"])
}

func TestFilmworks_InvalidRows(t *testing.T) {
	tests := []struct {
		name string
		row  models.FilmworkRow
	}{
		{name: "missing title", row: models.FilmworkRow{ID: filmID}},
		{name: "bad id", row: models.FilmworkRow{ID: "42", Title: "x"}},
		{name: "unknown role", row: models.FilmworkRow{ID: filmID, Title: "x", Credits: []models.Credit{{ID: personA, Name: "A", Role: "stuntman"}}}},
		{name: "rating out of range", row: models.FilmworkRow{ID: filmID, Title: "x", Rating: ptr(11.0)}},
		{name: "unknown type", row: models.FilmworkRow{ID: filmID, Title: "x", Type: "podcast"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs, err := Filmworks([]models.FilmworkRow{tt.row})
			assert.ErrorIs(t, err, ErrInvalidRow)
			assert.Nil(t, docs)
		})
	}
}

func TestGenres(t *testing.T) {
	docs, err := Genres([]models.GenreRow{
		{ID: genreID, Name: "Action"},
		{ID: "B92EF010-5E4C-4FD0-99D6-41B6456272CD", Name: "Sci-Fi", Description: ptr("Space")},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, &models.Genre{ID: genre2ID, Name: "Sci-Fi", Description: ptr("Space")}, docs[1])

	_, err = Genres([]models.GenreRow{{ID: genreID}})
	assert.ErrorIs(t, err, ErrInvalidRow)
}

func TestPersons(t *testing.T) {
	docs, err := Persons([]models.PersonRow{
		{ID: personA, FullName: "George Lucas", Roles: []string{"writer", "director", "writer"}, FilmIDs: []string{filmID}},
		{ID: personB, FullName: "Nobody"},
	})
	require.NoError(t, err)
	require.Len(t, docs, 2)

	p := docs[0].(*models.Person)
	assert.Equal(t, []models.Role{models.RoleDirector, models.RoleWriter}, p.Roles)
	assert.Equal(t, []string{filmID}, p.FilmIDs)

	empty := docs[1].(*models.Person)
	assert.NotNil(t, empty.Roles)
	assert.NotNil(t, empty.FilmIDs)

	_, err = Persons([]models.PersonRow{{ID: personA, FullName: "X", Roles: []string{"grip"}}})
	assert.ErrorIs(t, err, ErrInvalidRow)
}
