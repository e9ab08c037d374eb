// Package transform maps source rows onto sink documents. It performs no I/O.
package transform

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/mikhail349/new-admin-panel-sprint-3/internal/models"
)

var (
	// ErrInvalidRow means a row does not satisfy the document contract. It
	// points at a mismatch between a source query and the document schema.
	ErrInvalidRow = errors.New("invalid row")
)

var validate = validator.New()

// Filmworks builds one document per row. Persons are bucketed by role.
func Filmworks(rows []models.FilmworkRow) ([]models.Document, error) {
	docs := make([]models.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := filmwork(row)
		if err != nil {
			return nil, fmt.Errorf("%w: film_work %s: %v", ErrInvalidRow, row.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func Genres(rows []models.GenreRow) ([]models.Document, error) {
	docs := make([]models.Document, 0, len(rows))
	for _, row := range rows {
		id, err := normalizeID(row.ID)
		if err != nil {
			return nil, fmt.Errorf("%w: genre %s: %v", ErrInvalidRow, row.ID, err)
		}
		doc := &models.Genre{
			ID:          id,
			Name:        row.Name,
			Description: row.Description,
		}
		if err := validate.Struct(doc); err != nil {
			return nil, fmt.Errorf("%w: genre %s: %v", ErrInvalidRow, row.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func Persons(rows []models.PersonRow) ([]models.Document, error) {
	docs := make([]models.Document, 0, len(rows))
	for _, row := range rows {
		doc, err := person(row)
		if err != nil {
			return nil, fmt.Errorf("%w: person %s: %v", ErrInvalidRow, row.ID, err)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

func filmwork(row models.FilmworkRow) (*models.Filmwork, error) {
	id, err := normalizeID(row.ID)
	if err != nil {
		return nil, err
	}

	credits, err := bucketCredits(row.Credits)
	if err != nil {
		return nil, err
	}

	genres, err := stubs(row.Genres)
	if err != nil {
		return nil, err
	}

	doc := &models.Filmwork{
		ID:             id,
		Title:          row.Title,
		Description:    row.Description,
		ImdbRating:     row.Rating,
		FileURL:        row.FilePath,
		Type:           row.Type,
		Genres:         genres,
		GenresNames:    names(genres),
		Actors:         credits[models.RoleActor],
		Writers:        credits[models.RoleWriter],
		Directors:      credits[models.RoleDirector],
		Producers:      credits[models.RoleProducer],
		ActorsNames:    names(credits[models.RoleActor]),
		WritersNames:   names(credits[models.RoleWriter]),
		DirectorsNames: names(credits[models.RoleDirector]),
	}
	if row.CreationDate != nil {
		d := row.CreationDate.Format("2006-01-02")
		doc.CreationDate = &d
	}

	if err := validate.Struct(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func person(row models.PersonRow) (*models.Person, error) {
	id, err := normalizeID(row.ID)
	if err != nil {
		return nil, err
	}

	roles := make([]models.Role, 0, len(row.Roles))
	seen := make(map[models.Role]struct{}, len(row.Roles))
	for _, name := range row.Roles {
		r, err := models.ParseRole(name)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		roles = append(roles, r)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i] < roles[j] })

	filmIDs := make([]string, 0, len(row.FilmIDs))
	for _, fid := range row.FilmIDs {
		n, err := normalizeID(fid)
		if err != nil {
			return nil, err
		}
		filmIDs = append(filmIDs, n)
	}
	sort.Strings(filmIDs)

	doc := &models.Person{
		ID:       id,
		FullName: row.FullName,
		Roles:    roles,
		FilmIDs:  filmIDs,
	}
	if err := validate.Struct(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// bucketCredits groups credits by role. Every known role gets a non nil
// slice, a person appears at most once per role.
func bucketCredits(credits []models.Credit) (map[models.Role][]models.Stub, error) {
	buckets := make(map[models.Role][]models.Stub, len(models.Roles))
	for _, r := range models.Roles {
		buckets[r] = []models.Stub{}
	}

	seen := make(map[models.Role]map[string]struct{}, len(models.Roles))
	for _, c := range credits {
		role, err := models.ParseRole(c.Role)
		if err != nil {
			return nil, err
		}
		id, err := normalizeID(c.ID)
		if err != nil {
			return nil, err
		}
		if seen[role] == nil {
			seen[role] = make(map[string]struct{})
		}
		if _, dup := seen[role][id]; dup {
			continue
		}
		seen[role][id] = struct{}{}
		buckets[role] = append(buckets[role], models.Stub{ID: id, Name: c.Name})
	}

	for _, b := range buckets {
		sortStubs(b)
	}
	return buckets, nil
}

func stubs(in []models.Stub) ([]models.Stub, error) {
	out := make([]models.Stub, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		id, err := normalizeID(s.ID)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, models.Stub{ID: id, Name: s.Name})
	}
	sortStubs(out)
	return out, nil
}

func names(in []models.Stub) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, s.Name)
	}
	return out
}

func sortStubs(s []models.Stub) {
	sort.Slice(s, func(i, j int) bool {
		if s[i].Name != s[j].Name {
			return s[i].Name < s[j].Name
		}
		return s[i].ID < s[j].ID
	})
}

func normalizeID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("id %q: %w", id, err)
	}
	return u.String(), nil
}
