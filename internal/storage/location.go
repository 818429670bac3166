// Package storage implements the filesystem side of wownote: storage
// sections that mount a directory, upload ingestion, the folder picker and
// detection of cloud-sync folders.
package storage

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"wownote/internal/apperr"
)

// StorageType classifies a registered storage location.
type StorageType string

const (
	Local       StorageType = "local"
	OneDrive    StorageType = "onedrive"
	GoogleDrive StorageType = "googledrive"
	ICloud      StorageType = "icloud"
)

// ParseStorageType validates a storage type name. Empty means local.
func ParseStorageType(raw string) (StorageType, error) {
	t := StorageType(strings.ToLower(strings.TrimSpace(raw)))
	switch t {
	case "":
		return Local, nil
	case Local, OneDrive, GoogleDrive, ICloud:
		return t, nil
	default:
		return "", apperr.Validation("unsupported storage_type %q", raw)
	}
}

// CloudPath is a cloud-sync folder found on this host.
type CloudPath struct {
	StorageType StorageType `json:"storage_type"`
	Name        string      `json:"name"`
	Path        string      `json:"path"`
}

type cloudCandidate struct {
	storageType StorageType
	name        string
	pattern     string
}

var cloudCandidates = []cloudCandidate{
	{OneDrive, "OneDrive", "OneDrive"},
	{OneDrive, "OneDrive", "OneDrive - *"},
	{OneDrive, "OneDrive", "Library/CloudStorage/OneDrive*"},
	{GoogleDrive, "Google Drive", "Google Drive"},
	{GoogleDrive, "Google Drive", "GoogleDrive"},
	{GoogleDrive, "Google Drive", "My Drive"},
	{GoogleDrive, "Google Drive", "Library/CloudStorage/GoogleDrive*"},
	{ICloud, "iCloud Drive", "Library/Mobile Documents/com~apple~CloudDocs"},
	{ICloud, "iCloud Drive", "iCloudDrive"},
	{ICloud, "iCloud Drive", "iCloud Drive"},
}

// DetectCloudPaths looks for well-known cloud-sync folders under home. If
// home is empty the current user's home directory is used. Only existing
// directories are returned, each at most once.
func DetectCloudPaths(home string) []CloudPath {
	if home == "" {
		h, err := os.UserHomeDir()
		if err != nil {
			return nil
		}
		home = h
	}

	seen := make(map[string]struct{})
	var found []CloudPath
	for _, c := range cloudCandidates {
		matches, err := filepath.Glob(filepath.Join(home, c.pattern))
		if err != nil {
			continue
		}
		sort.Strings(matches)
		for _, m := range matches {
			if _, ok := seen[m]; ok {
				continue
			}
			info, err := os.Stat(m)
			if err != nil || !info.IsDir() {
				continue
			}
			seen[m] = struct{}{}
			name := c.name
			if base := filepath.Base(m); base != c.name {
				name = c.name + " (" + base + ")"
			}
			found = append(found, CloudPath{StorageType: c.storageType, Name: name, Path: m})
		}
	}
	return found
}
