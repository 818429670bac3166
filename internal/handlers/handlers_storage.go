package handlers

import (
	"errors"
	"net/http"
	"os"

	"wownote/internal/models"
	"wownote/internal/storage"
	"wownote/internal/store"
)

func (a *API) handleListLocations(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	locations, err := a.locations.ListLocations(ctx, true)
	if err != nil {
		fail(w, r, err)
		return
	}
	if locations == nil {
		locations = []models.StorageLocation{}
	}
	respondJSON(w, http.StatusOK, locations)
}

func (a *API) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	var req store.LocationInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	loc, err := a.locations.CreateLocation(ctx, req)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, loc)
}

func (a *API) handleListDirectories(w http.ResponseWriter, r *http.Request) {
	listing, err := storage.Browse(r.URL.Query().Get("path"))
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, listing)
}

type createDirectoryRequest struct {
	Path string `json:"path"`
	Name string `json:"name"`
}

func (a *API) handleCreateDirectory(w http.ResponseWriter, r *http.Request) {
	var req createDirectoryRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}

	path, err := storage.CreateDirectory(req.Path, req.Name)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]any{"message": "Directory created", "path": path})
}

func (a *API) handleCloudPaths(w http.ResponseWriter, r *http.Request) {
	home, err := os.UserHomeDir()
	if err != nil {
		fail(w, r, errors.New("home directory unavailable"))
		return
	}
	paths := storage.DetectCloudPaths(home)
	if paths == nil {
		paths = []storage.CloudPath{}
	}
	respondJSON(w, http.StatusOK, paths)
}
