package handlers

import (
	"errors"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/hlog"

	"wownote/internal/apperr"
	"wownote/internal/content"
	"wownote/internal/events"
	"wownote/internal/metrics"
	"wownote/internal/store"
)

const multipartMemory = 32 << 20

type transferRequest struct {
	TargetSectionID uuid.UUID `json:"target_section_id"`
	Overwrite       bool      `json:"overwrite"`
}

// formFile reads one file part from a size-limited multipart body. The
// caller closes the returned file.
func (a *API) formFile(w http.ResponseWriter, r *http.Request, field string) (multipart.File, *multipart.FileHeader, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxUploadBytes)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(w, http.StatusRequestEntityTooLarge, errors.New("file too large"))
			return nil, nil, false
		}
		respondError(w, http.StatusBadRequest, errors.New("invalid multipart form"))
		return nil, nil, false
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		respondError(w, http.StatusBadRequest, errors.New("No file part"))
		return nil, nil, false
	}
	if strings.TrimSpace(header.Filename) == "" {
		_ = file.Close()
		respondError(w, http.StatusBadRequest, errors.New("No selected file"))
		return nil, nil, false
	}
	return file, header, true
}

// uploadTarget picks the directory for a generic upload. An unknown or
// inactive storage location falls back to the uploads folder.
func (a *API) uploadTarget(r *http.Request) string {
	raw := strings.TrimSpace(r.FormValue("storage_location_id"))
	if raw == "" {
		return a.config.UploadFolder
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return a.config.UploadFolder
	}
	ctx, cancel := withTimeout(r.Context())
	defer cancel()
	loc, err := a.locations.GetActiveLocation(ctx, id)
	if err != nil {
		if !errors.Is(err, apperr.ErrNotFound) {
			hlog.FromRequest(r).Warn().Err(err).Str("storage_location_id", raw).Msg("load storage location")
		}
		return a.config.UploadFolder
	}
	return loc.Path
}

func (a *API) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, ok := a.formFile(w, r, "file")
	if !ok {
		return
	}
	defer file.Close()

	fc, err := a.ingester.Ingest(r.Context(), file, header.Filename, header.Header.Get("Content-Type"), a.uploadTarget(r))
	metrics.ObserveFileOp("ingest", err)
	if err != nil {
		fail(w, r, err)
		return
	}
	metrics.UploadedBytes.Add(float64(fc.FileSize))
	a.publish(r.Context(), events.FileUploaded, map[string]any{"filename": fc.Filename, "file_size": fc.FileSize})
	respondJSON(w, http.StatusCreated, fc)
}

// handleGetFile streams the attachment of a file or image section.
func (a *API) handleGetFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "section")
	if err != nil {
		fail(w, r, err)
		return
	}
	f, fc, ctype, err := a.files.OpenAttachment(r.Context(), id)
	if err != nil {
		fail(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		fail(w, r, err)
		return
	}
	name := fc.Filename
	if name == "" {
		name = info.Name()
	}
	if fc.FileType != "" && fc.FileType != "application/octet-stream" {
		ctype = fc.FileType
	}
	serveFile(w, r, f, info, name, ctype, "inline")
}

func serveFile(w http.ResponseWriter, r *http.Request, f *os.File, info os.FileInfo, name, ctype, disposition string) {
	if ctype != "" {
		w.Header().Set("Content-Type", ctype)
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType(disposition, map[string]string{"filename": name}))
	http.ServeContent(w, r, name, info.ModTime(), f)
}

func (a *API) handleListSectionFiles(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "section")
	if err != nil {
		fail(w, r, err)
		return
	}

	ctx, cancel := withTimeout(r.Context())
	defer cancel()

	entries, err := a.files.List(ctx, id)
	metrics.ObserveFileOp("list", err)
	if err != nil {
		fail(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, entries)
}

func (a *API) handleUploadSectionFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "section")
	if err != nil {
		fail(w, r, err)
		return
	}
	file, header, ok := a.formFile(w, r, "file")
	if !ok {
		return
	}
	defer file.Close()

	entry, err := a.files.Upload(r.Context(), id, file, header.Filename)
	metrics.ObserveFileOp("upload", err)
	if err != nil {
		fail(w, r, err)
		return
	}
	metrics.UploadedBytes.Add(float64(entry.Size))
	a.publish(r.Context(), events.FileUploaded, map[string]any{"section_id": id, "filename": entry.Name, "file_size": entry.Size})
	respondJSON(w, http.StatusCreated, map[string]any{"message": "File uploaded successfully", "file": entry})
}

func (a *API) handleDownloadSectionFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "section")
	if err != nil {
		fail(w, r, err)
		return
	}
	name, err := pathFilename(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	f, ctype, err := a.files.Open(r.Context(), id, name)
	metrics.ObserveFileOp("download", err)
	if err != nil {
		fail(w, r, err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		fail(w, r, err)
		return
	}
	serveFile(w, r, f, info, info.Name(), ctype, "inline")
}

func (a *API) handleDeleteSectionFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "section")
	if err != nil {
		fail(w, r, err)
		return
	}
	name, err := pathFilename(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	err = a.files.Delete(r.Context(), id, name)
	metrics.ObserveFileOp("delete", err)
	if err != nil {
		fail(w, r, err)
		return
	}
	a.publish(r.Context(), events.FileDeleted, map[string]any{"section_id": id, "filename": name})
	respondMessage(w, http.StatusOK, "File deleted successfully")
}

func (a *API) handleMoveSectionFile(w http.ResponseWriter, r *http.Request) {
	a.transferSectionFile(w, r, "move")
}

func (a *API) handleCopySectionFile(w http.ResponseWriter, r *http.Request) {
	a.transferSectionFile(w, r, "copy")
}

func (a *API) transferSectionFile(w http.ResponseWriter, r *http.Request, op string) {
	id, err := pathID(r, "id", "section")
	if err != nil {
		fail(w, r, err)
		return
	}
	name, err := pathFilename(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return
	}
	if req.TargetSectionID == uuid.Nil {
		respondError(w, http.StatusBadRequest, errors.New("target_section_id is required"))
		return
	}

	subject, msg := events.FileMoved, "File moved successfully"
	if op == "copy" {
		subject, msg = events.FileCopied, "File copied successfully"
		err = a.files.Copy(r.Context(), id, name, req.TargetSectionID, req.Overwrite)
	} else {
		err = a.files.Move(r.Context(), id, name, req.TargetSectionID, req.Overwrite)
	}
	metrics.ObserveFileOp(op, err)
	if err != nil {
		fail(w, r, err)
		return
	}
	a.publish(r.Context(), subject, map[string]any{
		"section_id":        id,
		"target_section_id": req.TargetSectionID,
		"filename":          name,
	})
	respondMessage(w, http.StatusOK, msg)
}

func (a *API) handleExtractSectionFile(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "section")
	if err != nil {
		fail(w, r, err)
		return
	}
	name, err := pathFilename(r)
	if err != nil {
		fail(w, r, err)
		return
	}

	n, err := a.files.ExtractZip(r.Context(), id, name)
	metrics.ObserveFileOp("extract", err)
	if err != nil {
		fail(w, r, err)
		return
	}
	a.publish(r.Context(), events.FileExtracted, map[string]any{"section_id": id, "filename": name, "files": n})
	respondJSON(w, http.StatusOK, map[string]any{"message": "ZIP file extracted successfully", "files": n})
}

// handleSectionImage replaces the picture shown by a section. The section
// becomes an image section pointing at the newly stored file.
func (a *API) handleSectionImage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id", "section")
	if err != nil {
		fail(w, r, err)
		return
	}
	ctx, cancel := withTimeout(r.Context())
	prev, err := a.content.GetSection(ctx, id)
	cancel()
	if err != nil {
		fail(w, r, err)
		return
	}

	file, header, ok := a.formFile(w, r, "image")
	if !ok {
		return
	}
	defer file.Close()

	fc, err := a.ingester.Ingest(r.Context(), file, header.Filename, header.Header.Get("Content-Type"), a.config.UploadFolder)
	metrics.ObserveFileOp("ingest", err)
	if err != nil {
		fail(w, r, err)
		return
	}
	metrics.UploadedBytes.Add(float64(fc.FileSize))
	fc.ImageURL = "/api/files/" + id.String()

	data, err := content.Encode(fc)
	if err != nil {
		fail(w, r, err)
		return
	}
	imageType := string(content.TypeImage)
	ctx, cancel = withTimeout(r.Context())
	section, err := a.content.UpdateSection(ctx, id, store.SectionPatch{ContentType: &imageType, ContentData: data})
	cancel()
	if err != nil {
		_ = os.Remove(fc.FilePath)
		fail(w, r, err)
		return
	}

	if prevFile, err := content.File(prev.ContentType, prev.ContentData); err == nil && prevFile.FilePath != "" && prevFile.FilePath != fc.FilePath {
		if _, err := a.files.RemoveAttachment(r.Context(), prev); err != nil {
			hlog.FromRequest(r).Warn().Err(err).Str("section_id", id.String()).Msg("remove previous image")
		}
	}
	a.publish(r.Context(), events.SectionUpdated, map[string]any{"section_id": id, "page_id": section.PageID})
	respondJSON(w, http.StatusOK, map[string]any{"image_url": fc.ImageURL, "section": section})
}
