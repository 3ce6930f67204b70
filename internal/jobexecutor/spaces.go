package jobexecutor

import (
	"path/filepath"
	"strings"
)

// classifySpaces returns the Drive spaces a file should be created in: both
// "drive" and "photos" for configured photo extensions, "drive" only
// otherwise. Classification is by the lowercased final extension; a name
// with no extension, or whose last extension isn't in photoExtensions,
// falls back to ["drive"].
func classifySpaces(name string, photoExtensions map[string]struct{}) []string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if _, ok := photoExtensions[ext]; ok {
		return []string{"drive", "photos"}
	}

	return []string{"drive"}
}

// photoExtensionSet builds a lookup set from the configured extension list,
// lowercasing each entry.
func photoExtensionSet(extensions []string) map[string]struct{} {
	set := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		set[strings.ToLower(strings.TrimPrefix(e, "."))] = struct{}{}
	}

	return set
}
