package sources

import (
	"github.com/jackc/pgx/v5"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/models"
)

// OriginPerson is the checkpoint key of the person stream.
const OriginPerson = "person"

var personByPerson = origin{
	key: OriginPerson,
	query: `
SELECT
	p.id::text AS id,
	p.full_name,
	ARRAY_AGG(DISTINCT pfw.role)::text[] AS roles,
	ARRAY_AGG(DISTINCT pfw.film_work_id)::text[] AS film_ids,
	p.updated_at
FROM content.person p
JOIN content.person_film_work pfw ON pfw.person_id = p.id
%s
GROUP BY p.id
ORDER BY p.updated_at, id
LIMIT @limit`,
	filter: `WHERE (p.updated_at, p.id::text) > (@watermark::timestamptz, @after_id::text)`,
}

type PersonExtractor struct {
	extractor[models.PersonRow]
}

func NewPersonExtractor(db Querier, state WatermarkReader, limit int) *PersonExtractor {
	return &PersonExtractor{
		extractor: newExtractor("person", db, state, limit, []origin{personByPerson}, scanPerson),
	}
}

func scanPerson(rows pgx.Rows) (models.PersonRow, error) {
	var r models.PersonRow
	err := rows.Scan(&r.ID, &r.FullName, &r.Roles, &r.FilmIDs, &r.UpdatedAt)
	return r, err
}
