package archiver

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/semmidev/influx-s3/internal/domain"
)

// TarGz writes and reads gzip-compressed tarballs of backup shard files.
type TarGz struct {
	level int
}

func NewTarGz() *TarGz {
	return &TarGz{level: gzip.DefaultCompression}
}

// CreateArchive bundles every regular file in sourceDir matching pattern into
// outputPath. Entries are stored under their base name only.
func (t *TarGz) CreateArchive(sourceDir, pattern, outputPath string) (domain.Archive, error) {
	files, err := matchFiles(sourceDir, pattern)
	if err != nil {
		return domain.Archive{}, domain.NewArchiveError("match shard files", err)
	}
	if len(files) == 0 {
		return domain.Archive{}, domain.NewArchiveError("create archive",
			fmt.Errorf("no files matching %q in %s", pattern, sourceDir))
	}

	if err := t.writeArchive(files, outputPath); err != nil {
		os.Remove(outputPath)
		return domain.Archive{}, domain.NewArchiveError("create archive", err)
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return domain.Archive{}, domain.NewArchiveError("stat archive", err)
	}

	names := make([]string, len(files))
	for i, f := range files {
		names[i] = filepath.Base(f)
	}

	return domain.Archive{
		Name:  filepath.Base(outputPath),
		Path:  outputPath,
		Files: names,
		Size:  info.Size(),
	}, nil
}

func (t *TarGz) writeArchive(files []string, outputPath string) error {
	destFile, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create dest file: %w", err)
	}
	defer destFile.Close()

	gzipWriter, err := gzip.NewWriterLevel(destFile, t.level)
	if err != nil {
		return fmt.Errorf("failed to create gzip writer: %w", err)
	}
	tarWriter := tar.NewWriter(gzipWriter)

	for _, name := range files {
		if err := addFile(tarWriter, name); err != nil {
			return err
		}
	}

	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return destFile.Close()
}

func addFile(tw *tar.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("failed to build header for %s: %w", path, err)
	}
	header.Name = filepath.Base(path)

	if err := tw.WriteHeader(header); err != nil {
		return fmt.Errorf("failed to write header for %s: %w", path, err)
	}
	if _, err := io.Copy(tw, file); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ExtractArchive unpacks archivePath into destDir, keeping the relative paths
// stored in the archive.
func (t *TarGz) ExtractArchive(archivePath, destDir string) error {
	sourceFile, err := os.Open(archivePath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.NewNotFoundError("open archive", err)
		}
		return domain.NewArchiveError("open archive", err)
	}
	defer sourceFile.Close()

	gzipReader, err := gzip.NewReader(sourceFile)
	if err != nil {
		return domain.NewArchiveError("extract archive", fmt.Errorf("failed to create gzip reader: %w", err))
	}
	defer gzipReader.Close()

	if err := untar(tar.NewReader(gzipReader), destDir); err != nil {
		return domain.NewArchiveError("extract archive", err)
	}
	return nil
}

func untar(tr *tar.Reader, destDir string) error {
	root, err := filepath.Abs(destDir)
	if err != nil {
		return err
	}

	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar entry: %w", err)
		}

		target := filepath.Join(root, filepath.FromSlash(header.Name))
		if target != root && !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return fmt.Errorf("entry %q escapes destination", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0755); err != nil {
				return fmt.Errorf("failed to create %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := writeEntry(tr, target, header.FileInfo().Mode().Perm()); err != nil {
				return err
			}
		}
	}
}

func writeEntry(r io.Reader, target string, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(target), err)
	}

	destFile, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return fmt.Errorf("failed to create dest file: %w", err)
	}
	defer destFile.Close()

	if _, err := io.Copy(destFile, r); err != nil {
		return fmt.Errorf("failed to write %s: %w", target, err)
	}
	return destFile.Close()
}

// MostRecentFile returns the newest regular file in dir matching pattern.
func (t *TarGz) MostRecentFile(dir, pattern string) (string, error) {
	files, err := matchFiles(dir, pattern)
	if err != nil {
		return "", domain.NewArchiveError("match files", err)
	}

	var newest string
	var newestInfo fs.FileInfo
	for _, f := range files {
		info, err := os.Stat(f)
		if err != nil {
			continue
		}
		if newestInfo == nil || !info.ModTime().Before(newestInfo.ModTime()) {
			newest, newestInfo = f, info
		}
	}

	if newest == "" {
		return "", domain.NewNotFoundError("most recent file",
			fmt.Errorf("no files matching %q in %s", pattern, dir))
	}
	return newest, nil
}

func matchFiles(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	files := matches[:0]
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}
		files = append(files, m)
	}
	return files, nil
}
