package api

import (
	"log/slog"
	"net/http"

	"github.com/ggoodman/casting-api/storage"
)

type movieJSON struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	ReleaseDate string `json:"release_date"`
}

func movieOut(m storage.Movie) movieJSON {
	return movieJSON{ID: m.ID, Title: m.Title, ReleaseDate: formatReleaseDate(m.ReleaseDate)}
}

func (h *Handler) handleListMovies(w http.ResponseWriter, r *http.Request) {
	req, err := pageRequest(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	page, err := h.store.ListMovies(r.Context(), req)
	if err != nil {
		h.writeStoreError(w, r, "movies.list", err)
		return
	}
	if len(page.Items) == 0 && page.Page > 1 {
		writeError(w, http.StatusNotFound, codeNotFound, "Page out of range.")
		return
	}
	items := make([]movieJSON, 0, len(page.Items))
	for _, m := range page.Items {
		items = append(items, movieOut(m))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"movies":  items,
		"total":   page.Total,
		"page":    page.Page,
	})
}

func (h *Handler) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	m, err := h.store.GetMovie(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, "movies.get", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "movie": movieOut(m)})
}

func (h *Handler) handleCreateMovie(w http.ResponseWriter, r *http.Request) {
	obj, err := decodeObject(w, r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	p, err := decodeMoviePatch(obj)
	if err == nil && (p.Title == nil || p.ReleaseDate == nil) {
		err = errMissingFields("title", "release_date")
	}
	if err != nil {
		writeRequestError(w, err)
		return
	}
	m, err := h.store.CreateMovie(r.Context(), storage.Movie{Title: *p.Title, ReleaseDate: *p.ReleaseDate})
	if err != nil {
		h.writeStoreError(w, r, "movies.create", err)
		return
	}
	h.log.InfoContext(r.Context(), "movies.create.ok", slog.Int64("id", m.ID))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "movies": movieOut(m)})
}

func (h *Handler) handleUpdateMovie(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	obj, err := decodeObject(w, r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	p, err := decodeMoviePatch(obj)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	m, err := h.store.UpdateMovie(r.Context(), id, p)
	if err != nil {
		h.writeStoreError(w, r, "movies.update", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "movies": movieOut(m)})
}

func (h *Handler) handleDeleteMovie(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	if err := h.store.DeleteMovie(r.Context(), id); err != nil {
		h.writeStoreError(w, r, "movies.delete", err)
		return
	}
	h.log.InfoContext(r.Context(), "movies.delete.ok", slog.Int64("id", id))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": id})
}
