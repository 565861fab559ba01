package api

import (
	"log/slog"
	"net/http"

	"github.com/ggoodman/casting-api/storage"
)

type actorJSON struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

func actorOut(a storage.Actor) actorJSON {
	return actorJSON(a)
}

func (h *Handler) handleListActors(w http.ResponseWriter, r *http.Request) {
	req, err := pageRequest(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	page, err := h.store.ListActors(r.Context(), req)
	if err != nil {
		h.writeStoreError(w, r, "actors.list", err)
		return
	}
	if len(page.Items) == 0 && page.Page > 1 {
		writeError(w, http.StatusNotFound, codeNotFound, "Page out of range.")
		return
	}
	items := make([]actorJSON, 0, len(page.Items))
	for _, a := range page.Items {
		items = append(items, actorOut(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"actors":  items,
		"total":   page.Total,
		"page":    page.Page,
	})
}

func (h *Handler) handleGetActor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	a, err := h.store.GetActor(r.Context(), id)
	if err != nil {
		h.writeStoreError(w, r, "actors.get", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "actor": actorOut(a)})
}

func (h *Handler) handleCreateActor(w http.ResponseWriter, r *http.Request) {
	obj, err := decodeObject(w, r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	p, err := decodeActorPatch(obj)
	if err == nil && (p.Name == nil || p.Age == nil || p.Gender == nil) {
		err = errMissingFields("name", "age", "gender")
	}
	if err != nil {
		writeRequestError(w, err)
		return
	}
	a, err := h.store.CreateActor(r.Context(), storage.Actor{Name: *p.Name, Age: *p.Age, Gender: *p.Gender})
	if err != nil {
		h.writeStoreError(w, r, "actors.create", err)
		return
	}
	h.log.InfoContext(r.Context(), "actors.create.ok", slog.Int64("id", a.ID))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "actor": actorOut(a)})
}

func (h *Handler) handleUpdateActor(w http.ResponseWriter, r *http.Request) {
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
	p, err := decodeActorPatch(obj)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	a, err := h.store.UpdateActor(r.Context(), id, p)
	if err != nil {
		h.writeStoreError(w, r, "actors.update", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "actor": actorOut(a)})
}

func (h *Handler) handleDeleteActor(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeRequestError(w, err)
		return
	}
	if err := h.store.DeleteActor(r.Context(), id); err != nil {
		h.writeStoreError(w, r, "actors.delete", err)
		return
	}
	h.log.InfoContext(r.Context(), "actors.delete.ok", slog.Int64("id", id))
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": id})
}
