package store

import (
	"context"
	"embed"
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"procurement-api/internal/apperr"

	"golang.org/x/crypto/bcrypt"
)

//go:embed demo/*.json
var demoFS embed.FS

// NewDemo returns a Memory store seeded with the embedded demo dataset.
func NewDemo() (*Memory, error) {
	m := NewMemory()
	if err := LoadDemo(m); err != nil {
		return nil, err
	}
	return m, nil
}

// LoadDemo seeds m with the embedded demo dataset.
func LoadDemo(m *Memory) error {
	data, err := demoRecords()
	if err != nil {
		return err
	}
	for collection, records := range data {
		m.Seed(collection, records...)
	}
	return nil
}

// SeedDemo writes the demo dataset into any backend, keeping record ids.
// Records that already exist are left alone.
func SeedDemo(ctx context.Context, s Store) error {
	data, err := demoRecords()
	if err != nil {
		return err
	}
	for collection, records := range data {
		for _, rec := range records {
			_, err := s.Create(ctx, collection, rec)
			if apperr.IsConflict(err) {
				continue
			}
			if err != nil {
				return fmt.Errorf("seed %s %s: %w", collection, rec.ID(), err)
			}
		}
	}
	return nil
}

// demoRecords reads the embedded dataset. Each file under demo/ holds one
// collection, named after the file. Plain "password" fields on users are
// replaced by a bcrypt hash.
func demoRecords() (map[string][]Record, error) {
	entries, err := demoFS.ReadDir("demo")
	if err != nil {
		return nil, fmt.Errorf("read demo dataset: %w", err)
	}
	out := make(map[string][]Record, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		data, err := demoFS.ReadFile(path.Join("demo", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		var records []Record
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		collection := strings.TrimSuffix(e.Name(), ".json")
		if collection == Users {
			for _, rec := range records {
				if err := hashDemoPassword(rec); err != nil {
					return nil, err
				}
			}
		}
		out[collection] = records
	}
	return out, nil
}

func hashDemoPassword(rec Record) error {
	plain, ok := rec["password"].(string)
	if !ok {
		return nil
	}
	delete(rec, "password")
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash demo password for %s: %w", rec.ID(), err)
	}
	rec["password_hash"] = string(hash)
	return nil
}
