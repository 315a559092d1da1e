package policy

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/spec-kit/sla-monitor/internal/domain"
	apperrors "github.com/spec-kit/sla-monitor/pkg/util"
)

// Format identifies the encoding of a policy document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatFromPath picks the format from a file extension, defaulting to YAML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".toml":
		return FormatTOML
	default:
		return FormatYAML
	}
}

// Source yields a raw policy document.
type Source interface {
	Name() string
	Format() Format
	Read() ([]byte, error)
}

// FileSource reads the policy from disk.
type FileSource struct {
	Path string
}

func (s FileSource) Name() string   { return s.Path }
func (s FileSource) Format() Format { return FormatFromPath(s.Path) }

func (s FileSource) Read() ([]byte, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, apperrors.NewConfigError("read policy source", err)
	}
	return data, nil
}

var errEmptyDocument = errors.New("policy document is empty")

// maxClockSeconds is the longest clock that still fits in a time.Duration.
const maxClockSeconds = math.MaxInt64 / int64(time.Second)

// Parse decodes and validates a policy document. Keys are normalized to lower case.
// Zero or negative durations are accepted; the evaluator treats them as already past due.
// Clocks too long for a time.Duration are rejected.
func Parse(data []byte, format Format) (Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, apperrors.NewConfigError("parse policy", errEmptyDocument)
	}

	var raw map[string]map[string]map[string]int64
	var err error
	switch format {
	case FormatJSON:
		err = json.Unmarshal(data, &raw)
	case FormatTOML:
		err = toml.Unmarshal(data, &raw)
	case FormatYAML, "":
		err = yaml.Unmarshal(data, &raw)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, apperrors.NewConfigError("parse policy", err)
	}
	if len(raw) == 0 {
		return nil, apperrors.NewConfigError("parse policy", errEmptyDocument)
	}

	doc := make(Document, len(raw))
	for priority, tiers := range raw {
		pKey := domain.NormalizeKey(priority)
		if pKey == "" {
			return nil, apperrors.NewConfigError("parse policy", errors.New("empty priority key"))
		}
		if _, dup := doc[pKey]; dup {
			return nil, apperrors.NewConfigError("parse policy", fmt.Errorf("duplicate priority %q", pKey))
		}
		tierMap := make(map[string]Clocks, len(tiers))
		for tier, clocks := range tiers {
			tKey := domain.NormalizeKey(tier)
			if tKey == "" {
				return nil, apperrors.NewConfigError("parse policy", fmt.Errorf("empty tier key under %q", pKey))
			}
			if _, dup := tierMap[tKey]; dup {
				return nil, apperrors.NewConfigError("parse policy", fmt.Errorf("duplicate tier %q under %q", tKey, pKey))
			}
			clockMap := make(Clocks, len(clocks))
			for name, secs := range clocks {
				name = strings.TrimSpace(name)
				if name == "" {
					return nil, apperrors.NewConfigError("parse policy", fmt.Errorf("empty clock name under %s/%s", pKey, tKey))
				}
				if secs > maxClockSeconds || secs < -maxClockSeconds {
					return nil, apperrors.NewConfigError("parse policy",
						fmt.Errorf("clock %s/%s/%s: %d seconds is out of range", pKey, tKey, name, secs))
				}
				clockMap[name] = secs
			}
			tierMap[tKey] = clockMap
		}
		doc[pKey] = tierMap
	}
	return doc, nil
}
