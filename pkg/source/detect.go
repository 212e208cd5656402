package source

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pranav-jay26/Crossbow/pkg/compression"
	"github.com/pranav-jay26/Crossbow/pkg/config"
	"github.com/pranav-jay26/Crossbow/pkg/errors"
)

// Format names of the bundled adapters.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatXLS  = "xls"
	FormatODS  = "ods"
)

var (
	zipMagic = []byte{'P', 'K', 0x03, 0x04}
	cfbMagic = []byte{0xd0, 0xcf, 0x11, 0xe0, 0xa1, 0xb1, 0x1a, 0xe1}
)

const odsMimetype = "application/vnd.oasis.opendocument.spreadsheet"

// Detect picks the adapter for the local file at path.
func (r *Registry) Detect(path string, cfg config.SourceConfig) (Format, error) {
	if cfg.Format != "" {
		return r.Lookup(cfg.Format)
	}

	algo, base := compression.FromPath(path)
	if f, ok := r.ByExtension(filepath.Ext(base)); ok {
		if algo != compression.None && f.Name() != FormatCSV {
			return nil, errors.New(errors.ErrorTypeSourceOpen, "compressed workbooks are not supported").
				WithDetail(errors.DetailFormat, f.Name())
		}
		return f, nil
	}

	name, err := sniff(path)
	if err != nil {
		return nil, err
	}
	return r.Lookup(name)
}

// sniff names the format from the leading bytes of path.
func sniff(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeSourceOpen, "failed to open source")
	}
	defer f.Close()

	header := make([]byte, len(cfbMagic))
	n, err := io.ReadFull(f, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", errors.Wrap(err, errors.ErrorTypeSourceOpen, "failed to read source header")
	}
	header = header[:n]

	switch {
	case bytes.HasPrefix(header, zipMagic):
		return sniffZip(path)
	case bytes.HasPrefix(header, cfbMagic):
		return FormatXLS, nil
	default:
		return FormatCSV, nil
	}
}

func sniffZip(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrorTypeSourceOpen, "malformed zip container")
	}
	defer zr.Close()

	for _, zf := range zr.File {
		switch zf.Name {
		case "mimetype":
			rc, err := zf.Open()
			if err != nil {
				return "", errors.Wrap(err, errors.ErrorTypeSourceOpen, "malformed zip container")
			}
			mt, err := io.ReadAll(io.LimitReader(rc, 256))
			rc.Close()
			if err != nil {
				return "", errors.Wrap(err, errors.ErrorTypeSourceOpen, "malformed zip container")
			}
			if strings.TrimSpace(string(mt)) == odsMimetype {
				return FormatODS, nil
			}
		case "xl/workbook.xml":
			return FormatXLSX, nil
		}
	}
	return "", errors.New(errors.ErrorTypeSourceOpen, "zip container is neither an xlsx nor an ods workbook")
}
