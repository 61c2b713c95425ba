package ui

import (
	"fmt"
	"os"
	"strings"
)

// ExpandTemplate substitutes the logger's download-tag placeholders in an
// output-filename template: "%d" becomes the file's date (YYYYMMDD), "%t"
// its time (HHMMSS), and "%s" the given session tag. A template with no
// placeholders names a single concatenated output file regardless of how
// many logs are read.
func ExpandTemplate(template, date, timeOfDay, session string) string {
	r := strings.NewReplacer("%d", date, "%t", timeOfDay, "%s", session)
	return r.Replace(template)
}

// BackupExisting renames path to path+".bak" if path already exists,
// overwriting any prior backup, so a re-run never silently clobbers a
// previous download. It is a no-op if path does not exist.
func BackupExisting(path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	backup := path + ".bak"
	if err := os.Rename(path, backup); err != nil {
		return fmt.Errorf("backup %s to %s: %w", path, backup, err)
	}
	return nil
}
