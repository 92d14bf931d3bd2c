package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/ScanReflow/core/errors"
	"github.com/FocuswithJustin/ScanReflow/internal/fileutil"
)

// epoch is the fixed modification time of packaged files so that the same
// inputs give the same archive bytes.
var epoch = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

// Create packages files into dst, flat by base name, choosing the format
// from dst's extension. The archive is written atomically.
func Create(dst string, files []string) (Format, error) {
	format, err := FormatOf(dst)
	if err != nil {
		return format, err
	}

	var buf bytes.Buffer
	switch format {
	case FormatZip:
		err = writeZip(&buf, files)
	case FormatTarXz:
		var xw *xz.Writer
		if xw, err = xz.NewWriter(&buf); err == nil {
			if err = writeTar(xw, files); err == nil {
				err = xw.Close()
			}
		}
	case FormatTarGz:
		gw := gzip.NewWriter(&buf)
		if err = writeTar(gw, files); err == nil {
			err = gw.Close()
		}
	}
	if err != nil {
		return format, fmt.Errorf("failed to create archive %s: %w", dst, err)
	}
	return format, fileutil.WriteFileAtomic(dst, buf.Bytes(), 0644)
}

func writeZip(w io.Writer, files []string) error {
	zw := zip.NewWriter(w)
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			return errors.NewIO("stat", path, err)
		}
		header, err := zip.FileInfoHeader(info)
		if err != nil {
			return err
		}
		header.Name = filepath.Base(path)
		header.Method = zip.Deflate
		header.Modified = epoch
		fw, err := zw.CreateHeader(header)
		if err != nil {
			return err
		}
		if err := copyFile(fw, path); err != nil {
			return err
		}
	}
	return zw.Close()
}

func writeTar(w io.Writer, files []string) error {
	tw := tar.NewWriter(w)
	for _, path := range files {
		info, err := os.Stat(path)
		if err != nil {
			return errors.NewIO("stat", path, err)
		}
		header, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		header.Name = filepath.Base(path)
		header.ModTime = epoch
		header.Uname, header.Gname = "", ""
		header.Uid, header.Gid = 0, 0
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if err := copyFile(tw, path); err != nil {
			return err
		}
	}
	return tw.Close()
}

func copyFile(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.NewIO("open", path, err)
	}
	defer f.Close()
	_, err = io.Copy(w, f)
	return err
}
