package sources

import (
	"github.com/jackc/pgx/v5"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/models"
)

// OriginGenre is the checkpoint key of the genre stream.
const OriginGenre = "genre"

// only genres attached to at least one film work
var genreByGenre = origin{
	key: OriginGenre,
	query: `
SELECT
	g.id::text AS id,
	g.name,
	g.description,
	g.updated_at
FROM content.genre g
JOIN content.genre_film_work gfw ON gfw.genre_id = g.id
%s
GROUP BY g.id
ORDER BY g.updated_at, id
LIMIT @limit`,
	filter: `WHERE (g.updated_at, g.id::text) > (@watermark::timestamptz, @after_id::text)`,
}

type GenreExtractor struct {
	extractor[models.GenreRow]
}

func NewGenreExtractor(db Querier, state WatermarkReader, limit int) *GenreExtractor {
	return &GenreExtractor{
		extractor: newExtractor("genre", db, state, limit, []origin{genreByGenre}, scanGenre),
	}
}

func scanGenre(rows pgx.Rows) (models.GenreRow, error) {
	var r models.GenreRow
	err := rows.Scan(&r.ID, &r.Name, &r.Description, &r.UpdatedAt)
	return r, err
}
