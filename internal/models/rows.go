package models

import (
	"fmt"
	"strings"
	"time"
)

// Rows as projected by the source queries. One struct per stream, optional
// columns are pointers.

// Credit is one (person, role) pair aggregated onto a film work row.
type Credit struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type FilmworkRow struct {
	ID           string
	Title        string
	Description  *string
	Rating       *float64
	CreationDate *time.Time
	FilePath     *string
	Type         string
	Credits      []Credit
	Genres       []Stub
	UpdatedAt    time.Time
}

type GenreRow struct {
	ID          string
	Name        string
	Description *string
	UpdatedAt   time.Time
}

type PersonRow struct {
	ID        string
	FullName  string
	Roles     []string
	FilmIDs   []string
	UpdatedAt time.Time
}

// Watermark is the serialized position of the last row seen for a change
// origin: its updated_at and, after a "|", its id. The id orders rows that
// share a timestamp. The zero value means no checkpoint.
type Watermark string

const cursorSep = "|"

var watermarkLayouts = []string{
	time.RFC3339Nano,
	// written by the previous python service
	"2006-01-02 15:04:05.999999-07:00",
	"2006-01-02 15:04:05.999999",
}

// NewWatermark positions a watermark on the row (t, id). An empty id gives a
// bare timestamp.
func NewWatermark(t time.Time, id string) Watermark {
	ts := t.UTC().Format(time.RFC3339Nano)
	if id == "" {
		return Watermark(ts)
	}
	return Watermark(ts + cursorSep + id)
}

func (w Watermark) IsZero() bool {
	return w == ""
}

func (w Watermark) String() string {
	return string(w)
}

// Cursor splits the watermark into its timestamp and row id. Watermarks
// without an id, such as the python service's, return an empty id.
func (w Watermark) Cursor() (ts, id string) {
	ts, id, _ = strings.Cut(string(w), cursorSep)
	return ts, id
}

// Time parses the timestamp part of the watermark.
func (w Watermark) Time() (time.Time, error) {
	ts, _ := w.Cursor()
	for _, layout := range watermarkLayouts {
		if t, err := time.Parse(layout, ts); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised watermark %q", string(w))
}

func (r FilmworkRow) Watermark() Watermark { return NewWatermark(r.UpdatedAt, r.ID) }

func (r GenreRow) Watermark() Watermark { return NewWatermark(r.UpdatedAt, r.ID) }

func (r PersonRow) Watermark() Watermark { return NewWatermark(r.UpdatedAt, r.ID) }
