package config

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/transmuta/pkg/compression"
	"github.com/ajitpratap0/transmuta/pkg/errors"
	"github.com/ajitpratap0/transmuta/pkg/sink"
)

// readFile merges the config file at path into v. ${VAR} references are
// replaced with environment values before parsing.
func readFile(v *viper.Viper, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path comes from the --config flag
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to read config file").WithDetail("file", path)
	}

	typ := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	switch typ {
	case "yml":
		typ = "yaml"
	case "yaml", "json", "toml":
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unsupported config file type %q", filepath.Ext(path)).
			WithDetail("file", path)
	}

	v.SetConfigType(typ)
	content := substituteEnvVars(string(data))
	if err := v.MergeConfig(strings.NewReader(content)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to parse config file").WithDetail("file", path)
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with environment variable values
func substituteEnvVars(content string) string {
	var out strings.Builder
	for {
		start := strings.Index(content, "${")
		if start == -1 {
			break
		}
		end := strings.Index(content[start:], "}")
		if end == -1 {
			break
		}
		end += start

		out.WriteString(content[:start])
		out.WriteString(os.Getenv(content[start+2 : end]))
		content = content[end+1:]
	}
	out.WriteString(content)
	return out.String()
}

// Encode writes cfg as YAML.
func Encode(w io.Writer, cfg *Config) error {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return errors.Wrap(err, errors.ErrorTypeEncoding, "failed to encode configuration")
	}
	if err := enc.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeEncoding, "failed to encode configuration")
	}
	if _, err := w.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, errors.ErrorTypeIO, "failed to write configuration")
	}
	return nil
}

// ParseDelimiter accepts a single character or one of the escapes \t, \n
// and \r.
func ParseDelimiter(s string) (rune, error) {
	switch s {
	case `\t`:
		return '\t', nil
	case `\n`:
		return '\n', nil
	case `\r`:
		return '\r', nil
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, errors.Newf(errors.ErrorTypeConfig,
			"delimiter must be a single character or one of \\t, \\n, \\r, got %q", s).
			WithDetail("value", s)
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r, nil
}

// ResolveFormat picks the output format: an explicit name wins, otherwise
// it is guessed from the extension of output, looking through a trailing
// compression extension.
func ResolveFormat(name, output string) (sink.Format, error) {
	if name != "" {
		return sink.ParseFormat(name)
	}
	if f, ok := sink.FormatFromPath(output); ok {
		return f, nil
	}
	return "", errors.Newf(errors.ErrorTypeConfig,
		"cannot determine output format from %q, use --format", output).
		WithDetail("file", output)
}

// CheckCompression rejects stream compression around formats that carry
// their own block compression.
func CheckCompression(f sink.Format, a compression.Algorithm) error {
	if a == compression.None {
		return nil
	}
	switch f {
	case sink.CSV, sink.JSON, sink.JSONL:
		return nil
	default:
		return errors.Newf(errors.ErrorTypeConfig,
			"%s output is compressed internally, use the format specific compression setting", f).
			WithDetail("format", string(f)).
			WithDetail("compression", string(a))
	}
}
