package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"tourist-overwatch/pkg/logger"
	"tourist-overwatch/pkg/ontology"
	"tourist-overwatch/pkg/shared"

	"go.uber.org/zap"
)

var requiredColumns = []string{"tourist_id", "lat", "lon", "path_type"}

// Dataset is the preloaded set of simulated paths. It is immutable after
// loading and safe for concurrent readers.
type Dataset struct {
	paths   map[string]ontology.Path
	order   []string
	loadErr error
}

// Load reads the simulation CSV. A failure is logged and captured: the
// returned Dataset answers every lookup with ErrUnavailable.
func Load(path string) *Dataset {
	f, err := os.Open(path)
	if err != nil {
		logger.Error("Simulation dataset not loaded", zap.String("path", path), zap.Error(err))
		return Unavailable(err)
	}
	defer f.Close()

	ds, err := Parse(f)
	if err != nil {
		logger.Error("Simulation dataset not loaded", zap.String("path", path), zap.Error(err))
		return Unavailable(err)
	}

	logger.Info("Simulation dataset loaded",
		zap.String("path", path),
		zap.Int("tourists", len(ds.order)),
	)
	return ds
}

// Unavailable returns a Dataset that reports cause on every lookup.
func Unavailable(cause error) *Dataset {
	if cause == nil {
		cause = errors.New("no dataset")
	}
	return &Dataset{loadErr: cause}
}

// Parse reads rows with at least tourist_id, lat, lon and path_type columns.
// Rows are grouped by tourist in file order; a tourist's type is taken from
// its first row.
func Parse(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}

	ds := &Dataset{paths: make(map[string]ontology.Path)}
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		field := func(name string) string {
			i := cols[name]
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		id := field("tourist_id")
		if id == "" {
			return nil, fmt.Errorf("line %d: empty tourist_id", line)
		}
		lat, err := strconv.ParseFloat(field("lat"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid lat: %w", line, err)
		}
		lon, err := strconv.ParseFloat(field("lon"), 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid lon: %w", line, err)
		}

		p, ok := ds.paths[id]
		if !ok {
			p = ontology.Path{TouristID: id, PathType: ontology.PathType(field("path_type"))}
			ds.order = append(ds.order, id)
		}
		p.Coordinates = append(p.Coordinates, ontology.Coordinate{Lat: lat, Lon: lon})
		ds.paths[id] = p
	}

	return ds, nil
}

func (d *Dataset) Err() error {
	return d.loadErr
}

// Lookup returns a copy of the tourist's path.
func (d *Dataset) Lookup(touristID string) (ontology.Path, error) {
	if d.loadErr != nil {
		return ontology.Path{}, fmt.Errorf("%w: %v", shared.ErrUnavailable, d.loadErr)
	}
	p, ok := d.paths[touristID]
	if !ok {
		return ontology.Path{}, fmt.Errorf("tourist %s: %w", touristID, shared.ErrNotFound)
	}
	coords := make([]ontology.Coordinate, len(p.Coordinates))
	copy(coords, p.Coordinates)
	p.Coordinates = coords
	return p, nil
}

// IDsByType lists distinct tourist ids in file order, split by path type.
func (d *Dataset) IDsByType() (ontology.TouristDirectory, error) {
	if d.loadErr != nil {
		return ontology.TouristDirectory{}, fmt.Errorf("%w: %v", shared.ErrUnavailable, d.loadErr)
	}
	dir := ontology.TouristDirectory{Normal: []string{}, Anomaly: []string{}}
	for _, id := range d.order {
		switch d.paths[id].PathType {
		case ontology.PathNormal:
			dir.Normal = append(dir.Normal, id)
		case ontology.PathAnomaly:
			dir.Anomaly = append(dir.Anomaly, id)
		}
	}
	return dir, nil
}
