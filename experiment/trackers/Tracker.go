// Package trackers implements Trackers, which track and save data in an
// experiment
package trackers

import (
	"encoding/gob"
	"fmt"
	"os"

	ts "github.com/samuelfneumann/navenv/timestep"
)

// Tracker keeps track of experiment data and saves the data after the
// experiment has finished
type Tracker interface {
	Track(t ts.TimeStep) error
	Save() error
}

// LoadData loads and returns the data saved by a file Tracker
func LoadData[T any](filename string) ([]T, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("load data: %w", err)
	}
	defer file.Close()

	var data []T
	if err := gob.NewDecoder(file).Decode(&data); err != nil {
		return nil, fmt.Errorf("load data: decode %v: %w", filename, err)
	}
	return data, nil
}

// save gob-encodes data into filename
func save(filename string, data any) error {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("save: %w", err)
	}

	if err := gob.NewEncoder(file).Encode(data); err != nil {
		file.Close()
		return fmt.Errorf("save: encode %v: %w", filename, err)
	}
	return file.Close()
}
