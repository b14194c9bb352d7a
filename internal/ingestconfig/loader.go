package ingestconfig

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads and validates a declarative YAML configuration document from
// path, resolving derived fields into an immutable Snapshot (§4.1).
// Unknown keys fail the load rather than being silently ignored.
func Load(path string) (Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("ingestconfig: open %s: %w", path, err)
	}
	defer f.Close()
	return decode(f, path)
}

// LoadString parses YAML already in memory, for tests and embedded
// defaults.
func LoadString(content string) (Snapshot, error) {
	return decode(strings.NewReader(content), "<string>")
}

func decode(r io.Reader, source string) (Snapshot, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return Snapshot{}, fmt.Errorf("ingestconfig: parse %s: %w", source, err)
	}

	if err := validate.Struct(doc); err != nil {
		return Snapshot{}, fmt.Errorf("ingestconfig: validate %s: %w", source, err)
	}
	for i, job := range allJobs(doc) {
		if err := validate.Struct(job); err != nil {
			return Snapshot{}, fmt.Errorf("ingestconfig: validate %s job #%d: %w", source, i, err)
		}
	}

	snapshot, err := resolve(doc)
	if err != nil {
		return Snapshot{}, fmt.Errorf("ingestconfig: resolve %s: %w", source, err)
	}
	return snapshot, nil
}

func allJobs(doc document) []JobSpec {
	var out []JobSpec
	out = append(out, doc.Jobs.Static...)
	out = append(out, doc.Jobs.Daily...)
	out = append(out, doc.Jobs.Backfill...)
	out = append(out, doc.Jobs.Reconcile...)
	return out
}
