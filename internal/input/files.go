package input

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/mtzgroup/tcpb-go/internal/global/logger"
)

// ReadTCFile reads a TeraChem keyword file. Blank lines and lines starting
// with # or ! are skipped; a value runs until the first token starting with
// # or !. A repeated key keeps its first value.
func ReadTCFile(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open TC file: %w", err)
	}
	defer f.Close()

	options := make(map[string]string)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		key := fields[0]
		var value []string
		for i, tok := range fields[1:] {
			// the first value token is kept even if it looks like a comment
			if i > 0 && (tok[0] == '#' || tok[0] == '!') {
				break
			}
			value = append(value, tok)
		}

		if prev, exists := options[key]; exists {
			logger.Warn("Duplicate key in TC file, keeping first value",
				"file", path, "key", key, "kept", prev, "skipped", strings.Join(value, " "))
			continue
		}
		options[key] = strings.Join(value, " ")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read TC file %s: %w", path, err)
	}
	return options, nil
}

// ReadXYZ reads an XYZ file, multiplying every coordinate by scale
func ReadXYZ(path string, scale float64) ([]string, []float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open XYZ file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return nil, nil, fmt.Errorf("XYZ file %s: missing atom count", path)
	}
	natoms, err := strconv.Atoi(strings.TrimSpace(scanner.Text()))
	if err != nil || natoms < 0 {
		return nil, nil, fmt.Errorf("XYZ file %s: bad atom count %q", path, scanner.Text())
	}
	// comment line
	scanner.Scan()

	atoms := make([]string, 0, natoms)
	geom := make([]float64, 0, 3*natoms)
	for i := 0; i < natoms; i++ {
		if !scanner.Scan() {
			return nil, nil, fmt.Errorf("XYZ file %s: expected %d atoms, found %d", path, natoms, i)
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) < 4 {
			return nil, nil, fmt.Errorf("XYZ file %s: atom line %d has %d fields", path, i+1, len(fields))
		}
		atoms = append(atoms, fields[0])
		for _, field := range fields[1:4] {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("XYZ file %s: atom line %d: %w", path, i+1, err)
			}
			geom = append(geom, v*scale)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("failed to read XYZ file %s: %w", path, err)
	}
	return atoms, geom, nil
}

// WriteXYZ writes atoms and geom (3 per atom) as an XYZ file
func WriteXYZ(path string, atoms []string, geom []float64) error {
	if len(geom) != 3*len(atoms) {
		return fmt.Errorf("geometry has %d values for %d atoms", len(geom), len(atoms))
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create XYZ file: %w", err)
	}
	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "%d\n\n", len(atoms))
	for i, atom := range atoms {
		fmt.Fprintf(w, "%3s\t% .10f % .10f % .10f\n", atom, geom[3*i], geom[3*i+1], geom[3*i+2])
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write XYZ file %s: %w", path, err)
	}
	return f.Close()
}
