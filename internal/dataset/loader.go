package dataset

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// columnFile is the on-disk shape of one column in the provider's columnar
// JSON format. Values are raw JSON so numeric columns can mix numbers and
// nulls and string columns can mix strings and nulls.
type columnFile struct {
	Name   string            `json:"name"`
	Kind   Kind              `json:"kind"`
	Values []json.RawMessage `json:"values"`
}

type datasetFile struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Columns []columnFile `json:"columns"`
}

// LoadFile parses one dataset from the provider's columnar JSON format.
func LoadFile(path string) (*Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read dataset file: %w", err)
	}
	var df datasetFile
	if err := json.Unmarshal(raw, &df); err != nil {
		return nil, fmt.Errorf("parse dataset file %s: %w", filepath.Base(path), err)
	}
	if df.ID == "" {
		df.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	if df.Name == "" {
		df.Name = df.ID
	}

	rows := 0
	cols := make([]Column, 0, len(df.Columns))
	for _, cf := range df.Columns {
		col, err := buildColumn(cf)
		if err != nil {
			return nil, fmt.Errorf("dataset %s column %q: %w", df.ID, cf.Name, err)
		}
		if col.Len() > rows {
			rows = col.Len()
		}
		cols = append(cols, col)
	}
	return NewDataset(df.ID, df.Name, rows, cols), nil
}

func buildColumn(cf columnFile) (Column, error) {
	switch cf.Kind {
	case KindNumeric, KindCategorical, KindDatetime, KindBoolean, KindText:
	case "":
		return Column{}, fmt.Errorf("missing kind")
	default:
		return Column{}, fmt.Errorf("unknown kind %q", cf.Kind)
	}

	col := Column{
		Name: cf.Name,
		Kind: cf.Kind,
		Null: make([]bool, len(cf.Values)),
	}
	if cf.Kind == KindNumeric {
		col.Floats = make([]float64, len(cf.Values))
	} else {
		col.Strings = make([]string, len(cf.Values))
	}

	for i, rv := range cf.Values {
		if string(rv) == "null" {
			col.Null[i] = true
			continue
		}
		if cf.Kind == KindNumeric {
			var f float64
			if err := json.Unmarshal(rv, &f); err != nil {
				return Column{}, fmt.Errorf("row %d: %w", i, err)
			}
			col.Floats[i] = f
			continue
		}
		var s string
		if err := json.Unmarshal(rv, &s); err != nil {
			// Booleans and bare numbers in string columns are kept verbatim;
			// the profiler surfaces them as mixed-format evidence.
			s = string(rv)
		}
		col.Strings[i] = s
	}
	return col, nil
}

// LoadDir loads every *.json dataset in dir into the registry.
func LoadDir(reg *Registry, dir string, logger *zap.Logger) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read dataset dir: %w", err)
	}
	loaded := 0
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		ds, err := LoadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return err
		}
		if err := reg.Register(ds); err != nil {
			return err
		}
		loaded++
	}
	logger.Info("Datasets loaded", zap.String("dir", dir), zap.Int("count", loaded))
	return nil
}
