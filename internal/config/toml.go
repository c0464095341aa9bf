package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/xvzc/xrayctl/internal/ptr"
)

func fromTomlFile(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// searchTomlFile returns customPath if given, else the first existing file of
// lookupPaths. Finding nothing in lookupPaths is not an error.
func searchTomlFile(customPath string, lookupPaths []string) (string, error) {
	if customPath != "" {
		if _, err := os.Stat(customPath); err != nil {
			return "", fmt.Errorf("no such file: %s", customPath)
		}

		return customPath, nil
	}

	for _, p := range lookupPaths {
		if p == "" {
			continue
		}

		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", nil
}

func findFrom[T any](
	data map[string]any,
	key string,
	parser func(any) (T, error),
	err *error,
) *T {
	if err != nil && *err != nil {
		return nil
	}

	anyVal, ok := data[key]
	if !ok {
		return nil
	}

	val, parseErr := parser(anyVal)
	if parseErr != nil {
		*err = fmt.Errorf("field %q: %w", key, parseErr)
		return nil
	}

	return ptr.FromValue(val)
}

func findStructFrom[T any, PT interface {
	*T
	toml.Unmarshaler
}](m map[string]any, key string, errPtr *error) *T {
	if errPtr != nil && *errPtr != nil {
		return nil
	}

	val, ok := m[key]
	if !ok {
		return nil
	}

	var item T
	if err := PT(&item).UnmarshalTOML(val); err != nil {
		*errPtr = fmt.Errorf("failed to decode '%s': %w", key, err)
		return nil
	}

	return &item
}

func findStructSliceFrom[T any, PT interface {
	*T
	toml.Unmarshaler
}](m map[string]any, key string, errPtr *error) []T {
	if errPtr != nil && *errPtr != nil {
		return nil
	}

	val, ok := m[key]
	if !ok {
		return nil
	}

	rawList, ok := val.([]any)
	if !ok {
		if mapList, ok := val.([]map[string]any); ok {
			rawList = make([]any, len(mapList))
			for i, v := range mapList {
				rawList[i] = v
			}
		} else {
			*errPtr = fmt.Errorf("field '%s' is not a list", key)
			return nil
		}
	}

	res := make([]T, 0, len(rawList))
	for i, raw := range rawList {
		var item T
		if err := PT(&item).UnmarshalTOML(raw); err != nil {
			*errPtr = fmt.Errorf("failed to decode '%s' item [%d]: %w", key, i, err)
			return nil
		}
		res = append(res, item)
	}

	return res
}
