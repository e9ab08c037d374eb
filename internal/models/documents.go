package models

// Document is anything the loader can upsert. The id doubles as the sink
// document id.
type Document interface {
	DocumentID() string
}

// Stub is the {id, name} shape nested in film work documents.
type Stub struct {
	ID   string `json:"id" validate:"required,uuid"`
	Name string `json:"name" validate:"required"`
}

type Filmwork struct {
	ID             string   `json:"id" validate:"required,uuid"`
	Title          string   `json:"title" validate:"required"`
	Description    *string  `json:"description"`
	ImdbRating     *float64 `json:"imdb_rating" validate:"omitempty,gte=0,lte=10"`
	CreationDate   *string  `json:"creation_date"`
	FileURL        *string  `json:"file_url"`
	Type           string   `json:"type" validate:"omitempty,oneof=movie tv_show"`
	GenresNames    []string `json:"genres_names" validate:"required"`
	ActorsNames    []string `json:"actors_names" validate:"required"`
	WritersNames   []string `json:"writers_names" validate:"required"`
	DirectorsNames []string `json:"directors_names" validate:"required"`
	Actors         []Stub   `json:"actors" validate:"required,dive"`
	Writers        []Stub   `json:"writers" validate:"required,dive"`
	Directors      []Stub   `json:"directors" validate:"required,dive"`
	Producers      []Stub   `json:"producers" validate:"required,dive"`
	Genres         []Stub   `json:"genres" validate:"required,dive"`
}

func (f *Filmwork) DocumentID() string { return f.ID }

type Genre struct {
	ID          string  `json:"id" validate:"required,uuid"`
	Name        string  `json:"name" validate:"required"`
	Description *string `json:"description"`
}

func (g *Genre) DocumentID() string { return g.ID }

type Person struct {
	ID       string   `json:"id" validate:"required,uuid"`
	FullName string   `json:"full_name" validate:"required"`
	Roles    []Role   `json:"roles" validate:"required"`
	FilmIDs  []string `json:"film_ids" validate:"required,dive,uuid"`
}

func (p *Person) DocumentID() string { return p.ID }
