package handlers

import (
	"net/http"

	"github.com/rs/zerolog/hlog"

	"wownote/internal/content"
	"wownote/internal/events"
	"wownote/internal/models"
	"wownote/internal/store"
)

func (a *API) handleListTabs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	tabs, err := a.content.ListTabs(ctx)
	if err != nil {
		fail(w, r, err)
		return
	}
	if tabs == nil {
		tabs = []models.Tab{}
	}
	respondJSON(w, http.StatusOK, tabs)
}

func (a *API) handleCreateTab(w http.ResponseWriter, r *http.Request) {
	var req store.TabInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	tab, err := a.content.CreateTab(ctx, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	a.publish(r.Context(), events.TabCreated, map[string]any{"tab_id": tab.ID, "name": tab.Name})
	respondJSON(w, http.StatusCreated, tab)
}

func (a *API) handleUpdateTab(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "tab")
	if err != nil {
		fail(w, r, err)
		return
	}
	var req store.TabPatch
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	tab, err := a.content.UpdateTab(ctx, id, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	a.publish(r.Context(), events.TabUpdated, map[string]any{"tab_id": tab.ID})
	respondJSON(w, http.StatusOK, tab)
}

func (a *API) handleDeleteTab(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "tab")
	if err != nil {
		fail(w, r, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if err := a.content.DeleteTab(ctx, id); err != nil {
		fail(w, r, err)
		return
	}
	a.publish(r.Context(), events.TabDeleted, map[string]any{"tab_id": id})
	respondMessage(w, http.StatusOK, "Tab deleted")
}

func (a *API) handleCreatePage(w http.ResponseWriter, r *http.Request) {
	var req store.PageInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	page, err := a.content.CreatePage(ctx, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	a.publish(r.Context(), events.PageCreated, map[string]any{"page_id": page.ID, "tab_id": page.TabID})
	respondJSON(w, http.StatusCreated, page)
}

func (a *API) handleGetPage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "page")
	if err != nil {
		fail(w, r, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	page, err := a.content.GetPage(ctx, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	if page.Sections == nil {
		page.Sections = []models.Section{}
	}
	respondJSON(w, http.StatusOK, page)
}

func (a *API) handleUpdatePage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "page")
	if err != nil {
		fail(w, r, err)
		return
	}
	var req store.PagePatch
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	page, err := a.content.UpdatePage(ctx, id, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	a.publish(r.Context(), events.PageUpdated, map[string]any{"page_id": page.ID})
	respondJSON(w, http.StatusOK, page)
}

func (a *API) handleDeletePage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "page")
	if err != nil {
		fail(w, r, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	if err := a.content.DeletePage(ctx, id); err != nil {
		fail(w, r, err)
		return
	}
	a.publish(r.Context(), events.PageDeleted, map[string]any{"page_id": id})
	respondMessage(w, http.StatusOK, "Page deleted")
}

func (a *API) handleCreateSection(w http.ResponseWriter, r *http.Request) {
	var req store.SectionInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	a.createSection(w, r, req)
}

// handlePasteSection creates a copy of a section body on the page named in
// the path. The client uses it for cut, copy and paste of widgets.
func (a *API) handlePasteSection(w http.ResponseWriter, r *http.Request) {
	pageID, err := pathID(r, "id", "page")
	if err != nil {
		fail(w, r, err)
		return
	}
	var req store.SectionInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	req.PageID = pageID
	a.createSection(w, r, req)
}

func (a *API) createSection(w http.ResponseWriter, r *http.Request, req store.SectionInput) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	section, err := a.content.CreateSection(ctx, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	a.publish(r.Context(), events.SectionCreated, map[string]any{
		"section_id":   section.ID,
		"page_id":      section.PageID,
		"content_type": section.ContentType,
	})
	respondJSON(w, http.StatusCreated, section)
}

func (a *API) handleUpdateSection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "section")
	if err != nil {
		fail(w, r, err)
		return
	}
	var req store.SectionPatch
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	section, err := a.content.UpdateSection(ctx, id, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	a.publish(r.Context(), events.SectionUpdated, map[string]any{"section_id": section.ID, "page_id": section.PageID})
	respondJSON(w, http.StatusOK, section)
}

func (a *API) handleDeleteSection(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "section")
	if err != nil {
		fail(w, r, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	section, err := a.content.DeleteSection(ctx, id)
	if err != nil {
		fail(w, r, err)
		return
	}
	// Image files are left for any section that still shows them.
	if section.ContentType == content.TypeFile {
		if _, err := a.files.RemoveAttachment(ctx, section); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("section_id", id.String()).Msg("remove section file")
		}
	}
	a.publish(r.Context(), events.SectionDeleted, map[string]any{"section_id": id, "page_id": section.PageID})
	respondMessage(w, http.StatusOK, "Section deleted")
}
