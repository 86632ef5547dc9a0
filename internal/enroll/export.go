package enroll

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// FeaturesPath returns dir/features_<Subject>.csv.
func FeaturesPath(dir, subject string) string {
	return filepath.Join(dir, "features_"+NormalizeName(subject)+".csv")
}

// WriteCSV writes one row per identity: name, v0..v127. Absent references
// are written as zeros.
func WriteCSV(w io.Writer, identities []domain.Identity) error {
	cw := csv.NewWriter(w)
	row := make([]string, domain.DescriptorSize+1)

	for _, id := range identities {
		row[0] = id.Name
		for i := 0; i < domain.DescriptorSize; i++ {
			v := 0.0
			if id.Reference.Valid {
				v = id.Reference.Vector[i]
			}
			row[i+1] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row %s: %w", id.Name, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadCSV parses an export. All-zero rows become absent references.
func ReadCSV(r io.Reader, subject string) ([]domain.Identity, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = domain.DescriptorSize + 1

	var identities []domain.Identity
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read features: %w", err)
		}

		values := make([]float64, domain.DescriptorSize)
		for i := range values {
			v, err := strconv.ParseFloat(rec[i+1], 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i+1, err)
			}
			values[i] = v
		}

		d, err := domain.DescriptorFromSlice(values)
		if err != nil {
			return nil, err
		}

		id := domain.Identity{Name: rec[0], Subject: subject, Reference: domain.Absent()}
		if !d.IsZero() {
			id.Reference = domain.Present(d)
		}
		identities = append(identities, id)
	}
	return identities, nil
}

// SaveCSV overwrites the export of subject in dir and returns its path.
func SaveCSV(dir, subject string, identities []domain.Identity) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create features dir: %w", err)
	}

	path := FeaturesPath(dir, subject)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	if err := WriteCSV(f, identities); err != nil {
		return "", err
	}
	return path, f.Close()
}

// LoadCSV reads the export of subject from dir.
func LoadCSV(dir, subject string) ([]domain.Identity, error) {
	path := FeaturesPath(dir, subject)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	return ReadCSV(f, NormalizeName(subject))
}
