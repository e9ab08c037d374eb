package server

import (
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/mikhail349/new-admin-panel-sprint-3/checkpoint"
)

// CheckpointSource exposes the live checkpoint set. *engine.Scheduler
// satisfies it.
type CheckpointSource interface {
	Checkpoints() checkpoint.Set
}

func CheckpointRouter(src CheckpointSource) chi.Router {
	router := chi.NewRouter()

	router.Get("/", listCheckpoints(src))
	router.Get("/{key}", getCheckpoint(src))

	return router
}

func listCheckpoints(src CheckpointSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		set := src.Checkpoints()
		keys := make([]string, 0, len(set))
		for k := range set {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		out := make([]CheckpointModel, 0, len(keys))
		for _, k := range keys {
			out = append(out, CheckpointModel{Key: k, Watermark: set[k]})
		}
		SendResponse(w, true, out, "")
	}
}

func getCheckpoint(src CheckpointSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := chi.URLParam(r, "key")
		wm, ok := src.Checkpoints()[key]
		if !ok {
			SendResponseWithStatus(w, false, nil, "no checkpoint for "+key, http.StatusNotFound)
			return
		}
		SendResponse(w, true, CheckpointModel{Key: key, Watermark: wm}, "")
	}
}
