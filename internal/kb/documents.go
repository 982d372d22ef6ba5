// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package kb

import (
	"fmt"
	"path"
	"strings"

	"github.com/pdiddy/kbpanel/internal/storage"
	"github.com/pdiddy/kbpanel/pkg/types"
)

const documentExt = ".txt"

// Upload is one file received for a knowledge base's input directory.
type Upload struct {
	Name string
	Data []byte
}

// FileError is a failure to save one uploaded file.
type FileError struct {
	Name string
	Err  error
}

func (e FileError) Error() string { return e.Name + ": " + e.Err.Error() }

// UploadResult reports which uploads were saved and which failed.
type UploadResult struct {
	Saved  []string
	Failed []FileError
}

// ListDocuments returns the .txt files in the knowledge base's input
// directory, sorted by name.
func (m *Manager) ListDocuments(name string) ([]types.Document, error) {
	if err := m.require(name); err != nil {
		return nil, err
	}
	dir := path.Join(name, types.InputDir)
	names, err := m.fs.Glob(dir, "*"+documentExt)
	if err != nil {
		return nil, fmt.Errorf("listing documents of %q: %w", name, err)
	}
	docs := make([]types.Document, 0, len(names))
	for _, n := range names {
		doc := types.Document{Name: n}
		if info, err := m.fs.Stat(path.Join(dir, n)); err == nil {
			doc.Size = info.Size()
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// documentName reduces a client-supplied file name to its base name.
func documentName(raw string) string {
	return path.Base(strings.ReplaceAll(raw, `\`, "/"))
}

// UploadDocuments writes each upload verbatim to input/<base name>,
// overwriting any file of the same name. Files are independent: one
// failure does not undo or stop the others.
func (m *Manager) UploadDocuments(name string, uploads []Upload) (UploadResult, error) {
	var res UploadResult
	if err := m.require(name); err != nil {
		return res, err
	}
	dir := path.Join(name, types.InputDir)
	if err := m.fs.MkdirAll(dir); err != nil {
		return res, fmt.Errorf("creating input directory of %q: %w", name, err)
	}

	for _, u := range uploads {
		file := documentName(u.Name)
		if err := ValidateName(file); err != nil {
			res.Failed = append(res.Failed, FileError{Name: u.Name, Err: err})
			continue
		}
		ext := path.Ext(file)
		if !strings.EqualFold(ext, documentExt) {
			res.Failed = append(res.Failed, FileError{Name: u.Name, Err: ErrUnsupportedFile})
			continue
		}
		// The tool only picks up lower-case .txt inputs.
		file = strings.TrimSuffix(file, ext) + documentExt
		if err := m.fs.WriteFile(path.Join(dir, file), u.Data); err != nil {
			m.logger.Error("uploading document", "kb", name, "file", file, "error", err)
			res.Failed = append(res.Failed, FileError{Name: u.Name, Err: err})
			continue
		}
		res.Saved = append(res.Saved, file)
	}
	m.logger.Info("uploaded documents", "kb", name, "saved", len(res.Saved), "failed", len(res.Failed))
	return res, nil
}

// DeleteDocument removes input/<file> from the knowledge base.
func (m *Manager) DeleteDocument(name, file string) error {
	if err := m.require(name); err != nil {
		return err
	}
	if err := ValidateName(file); err != nil {
		return err
	}
	p := path.Join(name, types.InputDir, file)
	if err := m.fs.Remove(p); err != nil {
		if storage.IsNotExist(err) {
			return fmt.Errorf("document %q: %w", file, ErrNotFound)
		}
		return fmt.Errorf("deleting document %q: %w", file, err)
	}
	m.logger.Info("deleted document", "kb", name, "file", file)
	return nil
}
