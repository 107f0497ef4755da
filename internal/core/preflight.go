package core

import (
	"fmt"
)

// CheckFolders compares the folder mapping with the folders on the server and
// returns a warning for each problem found. A nil stats slice skips the
// existence checks.
func CheckFolders(mapping FolderMapping, source string, stats []FolderStat) []string {
	var warnings []string

	for _, c := range Categories {
		if c != CategoryPersonal && mapping.Destination(c) == source {
			warnings = append(warnings, fmt.Sprintf(
				"category %s maps to the source folder %q, its messages will never leave it", c, source))
		}
	}

	if stats == nil {
		return warnings
	}

	existing := make(map[string]bool, len(stats))
	for _, s := range stats {
		existing[s.Name] = s.Selectable
	}
	if selectable, ok := existing[source]; !ok || !selectable {
		warnings = append(warnings, fmt.Sprintf("source folder %q does not exist", source))
	}
	for _, folder := range mapping.Folders() {
		if folder == source {
			continue
		}
		if selectable, ok := existing[folder]; !ok || !selectable {
			warnings = append(warnings, fmt.Sprintf(
				"destination folder %q for %v does not exist, please create it", folder, mapping.CategoriesFor(folder)))
		}
	}

	return warnings
}
