package comanda

import (
	"net/http"

	"github.com/appetiteclub/comanda/internal/prefs"
	"github.com/aquamarinepk/aqm"
	"github.com/go-chi/chi/v5"
)

func (h *Handler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListFavorites")
	defer finish()

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"favorites": h.prefs.Favorites(r.Context()),
	}, nil)
}

func (h *Handler) GetFavorite(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.GetFavorite")
	defer finish()

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"favorite": h.prefs.IsFavorite(r.Context(), chi.URLParam(r, "id")),
	}, nil)
}

func (h *Handler) ToggleFavorite(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ToggleFavorite")
	defer finish()
	log := h.log(r)

	var fav prefs.Favorite
	if !decodeBody(w, r, &fav) {
		return
	}
	if fav.ID == "" {
		aqm.RespondError(w, http.StatusBadRequest, "Favorite id is required")
		return
	}

	on, err := h.prefs.ToggleFavorite(r.Context(), fav)
	if err != nil {
		log.Errorf("cannot toggle favorite: %v", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not save favorite")
		return
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"favorite":  on,
		"favorites": h.prefs.Favorites(r.Context()),
	}, nil)
}

func (h *Handler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.RemoveFavorite")
	defer finish()
	log := h.log(r)

	id := chi.URLParam(r, "id")
	if h.prefs.IsFavorite(r.Context(), id) {
		if _, err := h.prefs.ToggleFavorite(r.Context(), prefs.Favorite{ID: id}); err != nil {
			log.Errorf("cannot remove favorite: %v", err)
			aqm.RespondError(w, http.StatusInternalServerError, "Could not save favorite")
			return
		}
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"favorites": h.prefs.Favorites(r.Context()),
	}, nil)
}

func (h *Handler) ListSearches(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.ListSearches")
	defer finish()

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"searches": h.prefs.RecentSearches(r.Context()),
	}, nil)
}

func (h *Handler) PushSearch(w http.ResponseWriter, r *http.Request) {
	w, r, finish := h.tlm.Start(w, r, "Handler.PushSearch")
	defer finish()
	log := h.log(r)

	var payload struct {
		Term string `json:"term"`
	}
	if !decodeBody(w, r, &payload) {
		return
	}

	searches, err := h.prefs.PushSearch(r.Context(), payload.Term)
	if err != nil {
		log.Errorf("cannot save search: %v", err)
		aqm.RespondError(w, http.StatusInternalServerError, "Could not save search")
		return
	}

	aqm.Respond(w, http.StatusOK, map[string]interface{}{
		"searches": searches,
	}, nil)
}
