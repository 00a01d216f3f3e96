package scene

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
)

// ArchiveSceneEntry is the required scene document inside an archive.
const ArchiveSceneEntry = "scene.json"

// Archive is a loaded scene archive: the scene plus the payload of every
// asset referenced by its manifest, keyed by asset id.
type Archive struct {
	Scene *Scene
	Files map[string][]byte
}

// Asset returns the payload for an asset id.
func (a *Archive) Asset(id string) ([]byte, bool) {
	b, ok := a.Files[id]
	return b, ok
}

// LoadArchive opens and reads a zip scene archive from disk.
func LoadArchive(name string) (*Archive, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, &ParseError{Source: name, Err: err}
	}
	a, err := ReadArchive(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		if pe, ok := err.(*ParseError); ok && pe.Source == "" {
			pe.Source = name
		}
		return nil, err
	}
	return a, nil
}

// ReadArchive reads a zip scene archive. Loading fails when scene.json or
// any asset entry named by the manifest is missing.
func ReadArchive(r io.ReaderAt, size int64) (*Archive, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, &ParseError{Err: fmt.Errorf("open archive: %w", err)}
	}

	entries := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		entries[cleanEntry(f.Name)] = f
	}

	sf, ok := entries[ArchiveSceneEntry]
	if !ok {
		return nil, &ParseError{Field: ArchiveSceneEntry, Err: fmt.Errorf("archive has no %s entry", ArchiveSceneEntry)}
	}
	data, err := readEntry(sf)
	if err != nil {
		return nil, &ParseError{Field: ArchiveSceneEntry, Err: err}
	}
	s, err := Parse(data)
	if err != nil {
		if pe, ok := err.(*ParseError); ok {
			pe.Source = ArchiveSceneEntry
		}
		return nil, err
	}

	files := make(map[string][]byte, len(s.Assets))
	for id, asset := range s.Assets {
		f, ok := entries[cleanEntry(asset.Path)]
		if !ok {
			return nil, &ParseError{
				Field: "assets." + id,
				Err:   fmt.Errorf("archive entry %q not found", asset.Path),
			}
		}
		b, err := readEntry(f)
		if err != nil {
			return nil, &ParseError{Field: "assets." + id, Err: err}
		}
		files[id] = b
	}
	return &Archive{Scene: s, Files: files}, nil
}

// WriteArchive writes a scene and its asset payloads as a zip archive.
func WriteArchive(w io.Writer, s *Scene, files map[string][]byte) error {
	zw := zip.NewWriter(w)
	data, err := s.Marshal()
	if err != nil {
		return err
	}
	fw, err := zw.Create(ArchiveSceneEntry)
	if err != nil {
		return err
	}
	if _, err := fw.Write(data); err != nil {
		return err
	}
	for id, asset := range s.Assets {
		b, ok := files[id]
		if !ok {
			return fmt.Errorf("scene: no payload for asset %q", id)
		}
		fw, err := zw.Create(cleanEntry(asset.Path))
		if err != nil {
			return err
		}
		if _, err := fw.Write(b); err != nil {
			return err
		}
	}
	return zw.Close()
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func cleanEntry(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	return strings.TrimPrefix(path.Clean("/"+name), "/")
}
