// Package source resolves dataset identifiers to readable CSV files,
// unpacking compressed uploads on the way in.
package source

import (
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pierrec/lz4"
	uuid "github.com/satori/go.uuid"

	"github.com/insightlab/insightengine/domain/models"
)

// Resolve turns a file path into a DatasetSource. Archives (.zip/.gz/.lz4)
// are unpacked next to the original first; plain files pass through.
func Resolve(path string) (models.DatasetSource, error) {
	if _, err := os.Stat(path); err != nil {
		return models.DatasetSource{}, fmt.Errorf("dataset not readable: %w", err)
	}
	unpacked, err := UnpackArchive(path)
	if err != nil {
		return models.DatasetSource{}, fmt.Errorf("unpack %s: %w", path, err)
	}
	if unpacked != "" {
		path = unpacked
	}
	return models.DatasetSource{ID: uuid.NewV4().String(), Path: path}, nil
}

// UnpackArchive extracts a compressed dataset and removes the archive.
// Returns empty for files that need no unpacking.
func UnpackArchive(filePath string) (string, error) {
	switch filepath.Ext(filePath) {
	case ".zip":
		return unpackZip(filePath)
	case ".gz":
		return unpackGzip(filePath)
	case ".lz4":
		return unpackLZ4(filePath)
	}
	return "", nil
}

func unpackZip(filePath string) (string, error) {
	r, err := zip.OpenReader(filePath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	// a zip upload carries the dataset as its largest member
	var largest *zip.File
	var largestSize uint64
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if f.UncompressedSize64 > largestSize {
			largest = f
			largestSize = f.UncompressedSize64
		}
	}
	if largest == nil {
		return "", fmt.Errorf("archive holds no files")
	}

	destPath := filepath.Join(filepath.Dir(filePath), filepath.Base(largest.Name))
	outFile, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	defer outFile.Close()
	rc, err := largest.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()
	if _, err := io.Copy(outFile, rc); err != nil {
		return "", err
	}
	if err := os.Remove(filePath); err != nil {
		return "", err
	}
	return destPath, nil
}

func unpackGzip(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	gr, err := gzip.NewReader(file)
	if err != nil {
		return "", err
	}
	defer gr.Close()

	destPath := strings.TrimSuffix(filePath, ".gz")
	outFile, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	defer outFile.Close()
	if _, err := io.Copy(outFile, gr); err != nil {
		return "", err
	}
	if err := os.Remove(filePath); err != nil {
		return "", err
	}
	return destPath, nil
}

func unpackLZ4(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	destPath := strings.TrimSuffix(filePath, ".lz4")
	outFile, err := os.Create(destPath)
	if err != nil {
		return "", err
	}
	defer outFile.Close()
	if _, err := io.Copy(outFile, lz4.NewReader(file)); err != nil {
		return "", err
	}
	if err := os.Remove(filePath); err != nil {
		return "", err
	}
	return destPath, nil
}
