package sources

import (
	"github.com/jackc/pgx/v5"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/models"
)

// Checkpoint keys of the film work stream.
const (
	OriginFilmwork       = "film_work"
	OriginFilmworkGenre  = "film_work_genre"
	OriginFilmworkPerson = "film_work_person"
)

const filmworkColumns = `
	fw.id::text AS id,
	fw.title,
	fw.description,
	fw.rating,
	fw.creation_date,
	fw.file_path,
	fw.type::text AS type,
	COALESCE(
		json_agg(
			DISTINCT jsonb_build_object('id', p.id, 'name', p.full_name, 'role', pfw.role)
		) FILTER (WHERE p.id IS NOT NULL),
		'[]'
	) AS credits,
	COALESCE(
		json_agg(
			DISTINCT jsonb_build_object('id', g.id, 'name', g.name)
		) FILTER (WHERE g.id IS NOT NULL),
		'[]'
	) AS genres`

// changed film works
var filmworkByFilmwork = origin{
	key: OriginFilmwork,
	query: `
SELECT` + filmworkColumns + `,
	fw.updated_at
FROM content.film_work fw
LEFT JOIN content.person_film_work pfw ON pfw.film_work_id = fw.id
LEFT JOIN content.person p ON p.id = pfw.person_id
LEFT JOIN content.genre_film_work gfw ON gfw.film_work_id = fw.id
LEFT JOIN content.genre g ON g.id = gfw.genre_id
%s
GROUP BY fw.id
ORDER BY fw.updated_at, id
LIMIT @limit`,
	filter: `WHERE (fw.updated_at, fw.id::text) > (@watermark::timestamptz, @after_id::text)`,
}

// film works whose genres changed
var filmworkByGenre = origin{
	key: OriginFilmworkGenre,
	query: `
SELECT` + filmworkColumns + `,
	MAX(g.updated_at) AS updated_at
FROM content.film_work fw
JOIN content.genre_film_work gfw ON gfw.film_work_id = fw.id
JOIN content.genre g ON g.id = gfw.genre_id
LEFT JOIN content.person_film_work pfw ON pfw.film_work_id = fw.id
LEFT JOIN content.person p ON p.id = pfw.person_id
GROUP BY fw.id
%s
ORDER BY updated_at, id
LIMIT @limit`,
	filter: `HAVING (MAX(g.updated_at), fw.id::text) > (@watermark::timestamptz, @after_id::text)`,
}

// film works whose people changed
var filmworkByPerson = origin{
	key: OriginFilmworkPerson,
	query: `
SELECT` + filmworkColumns + `,
	MAX(p.updated_at) AS updated_at
FROM content.film_work fw
JOIN content.person_film_work pfw ON pfw.film_work_id = fw.id
JOIN content.person p ON p.id = pfw.person_id
LEFT JOIN content.genre_film_work gfw ON gfw.film_work_id = fw.id
LEFT JOIN content.genre g ON g.id = gfw.genre_id
GROUP BY fw.id
%s
ORDER BY updated_at, id
LIMIT @limit`,
	filter: `HAVING (MAX(p.updated_at), fw.id::text) > (@watermark::timestamptz, @after_id::text)`,
}

// FilmworkExtractor finds film works changed directly, through a genre or
// through a person. Each origin keeps its own watermark; a film work may be
// returned by more than one origin.
type FilmworkExtractor struct {
	extractor[models.FilmworkRow]
}

func NewFilmworkExtractor(db Querier, state WatermarkReader, limit int) *FilmworkExtractor {
	return &FilmworkExtractor{
		extractor: newExtractor("filmwork", db, state, limit,
			[]origin{filmworkByFilmwork, filmworkByGenre, filmworkByPerson},
			scanFilmwork),
	}
}

func scanFilmwork(rows pgx.Rows) (models.FilmworkRow, error) {
	var r models.FilmworkRow
	err := rows.Scan(
		&r.ID,
		&r.Title,
		&r.Description,
		&r.Rating,
		&r.CreationDate,
		&r.FilePath,
		&r.Type,
		&r.Credits,
		&r.Genres,
		&r.UpdatedAt,
	)
	return r, err
}
