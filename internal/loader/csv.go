// Package loader converts upstream CAD-derived layout exports into validated
// hole inputs. DXF parsing happens upstream; the console receives CSV.
package loader

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ndtworks/tubescan/internal/inspect"
)

// ParseFile reads a layout CSV from disk.
func ParseFile(path string) ([]inspect.HoleInput, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open layout: %w", err)
	}
	defer f.Close()
	holes, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse layout %s: %w", path, err)
	}
	return holes, nil
}

// Parse reads a layout CSV. The header must name id, x, y and radius columns;
// row and column are optional. Column order is free.
func Parse(r io.Reader) ([]inspect.HoleInput, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols, err := resolveColumns(header)
	if err != nil {
		return nil, err
	}

	var holes []inspect.HoleInput
	for line := 2; ; line++ {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		hole, err := cols.parse(record)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		holes = append(holes, hole)
	}
	return holes, nil
}

type columnMap struct {
	id     int
	x      int
	y      int
	radius int
	row    int
	column int

	// diameter marks that the radius column actually carries diameters,
	// which are halved during parsing.
	diameter bool
}

func resolveColumns(header []string) (columnMap, error) {
	cols := columnMap{id: -1, x: -1, y: -1, radius: -1, row: -1, column: -1}
	for i, name := range header {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "id", "hole_id", "hole":
			cols.id = i
		case "x":
			cols.x = i
		case "y":
			cols.y = i
		case "radius", "r":
			cols.radius = i
		case "diameter":
			cols.radius = i
			cols.diameter = true
		case "row":
			cols.row = i
		case "column", "col":
			cols.column = i
		}
	}
	for _, req := range []struct {
		idx  int
		name string
	}{
		{cols.id, "id"},
		{cols.x, "x"},
		{cols.y, "y"},
		{cols.radius, "radius"},
	} {
		if req.idx < 0 {
			return columnMap{}, fmt.Errorf("header missing required column %q", req.name)
		}
	}
	return cols, nil
}

func (c columnMap) parse(record []string) (inspect.HoleInput, error) {
	field := func(idx int) string {
		if idx < 0 || idx >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[idx])
	}

	id := field(c.id)
	if id == "" {
		return inspect.HoleInput{}, fmt.Errorf("empty hole id")
	}
	x, err := strconv.ParseFloat(field(c.x), 64)
	if err != nil {
		return inspect.HoleInput{}, fmt.Errorf("hole %s: bad x: %w", id, err)
	}
	y, err := strconv.ParseFloat(field(c.y), 64)
	if err != nil {
		return inspect.HoleInput{}, fmt.Errorf("hole %s: bad y: %w", id, err)
	}
	radius, err := strconv.ParseFloat(field(c.radius), 64)
	if err != nil {
		return inspect.HoleInput{}, fmt.Errorf("hole %s: bad radius: %w", id, err)
	}
	if c.diameter {
		radius /= 2
	}

	hole := inspect.HoleInput{ID: id, X: x, Y: y, Radius: radius}
	if v := field(c.row); v != "" {
		if hole.Row, err = strconv.Atoi(v); err != nil {
			return inspect.HoleInput{}, fmt.Errorf("hole %s: bad row: %w", id, err)
		}
	}
	if v := field(c.column); v != "" {
		if hole.Column, err = strconv.Atoi(v); err != nil {
			return inspect.HoleInput{}, fmt.Errorf("hole %s: bad column: %w", id, err)
		}
	}
	return hole, nil
}
