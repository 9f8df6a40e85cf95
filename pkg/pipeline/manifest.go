package pipeline

import (
	"os"

	gojson "github.com/goccy/go-json"

	"github.com/ajitpratap0/transmuta/pkg/errors"
)

// Manifest is the JSON document written next to the output of a run. It
// lets downstream jobs verify part files without re-reading them.
type Manifest struct {
	Output      string  `json:"output"`
	Format      string  `json:"format"`
	Compression string  `json:"compression"`
	Rows        int64   `json:"rows"`
	Seed        *uint64 `json:"seed,omitempty"`
	Parts       []Part  `json:"parts"`
}

func (r *Runner) manifest(res *Result, seed *uint64) Manifest {
	return Manifest{
		Output:      r.opts.Output,
		Format:      string(r.opts.Writer.Format()),
		Compression: string(r.opts.Compression),
		Rows:        res.Rows,
		Seed:        seed,
		Parts:       res.Parts,
	}
}

func writeManifest(path string, m Manifest) error {
	data, err := gojson.MarshalIndent(m, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeEncoding, "failed to encode manifest")
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write manifest").WithDetail("file", path)
	}
	return nil
}

// ReadManifest loads a manifest written by a previous run.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeIO, "failed to read manifest").WithDetail("file", path)
	}
	var m Manifest
	if err := gojson.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeMalformedInput, "invalid manifest").WithDetail("file", path)
	}
	return &m, nil
}
