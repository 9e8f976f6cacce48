package migrate

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

const (
	versionLayout = "20060102150405"
	markerUp      = "-- +goose Up"
	markerDown    = "-- +goose Down"
	markerBegin   = "-- +goose StatementBegin"
	markerEnd     = "-- +goose StatementEnd"
)

var (
	fileNameRe = regexp.MustCompile(`^(\d{14})_([a-z0-9]+(?:_[a-z0-9]+)*)\.sql$`)
	unsafeRe   = regexp.MustCompile(`[^a-z0-9]+`)
)

// NewSQLMigration writes an empty goose migration named
// <dir>/<UTC timestamp>_<slug>.sql and returns its path. The Up section
// holds only a placeholder, so ValidateDir fails until it is filled in.
func NewSQLMigration(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("dir is required")
	}
	slug := strings.Trim(unsafeRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create %q: %w", dir, err)
	}

	path := filepath.Join(dir, now.UTC().Format(versionLayout)+"_"+slug+".sql")
	body := strings.Join([]string{
		markerUp, markerBegin, "-- " + slug + ": statements go here", markerEnd, "",
		markerDown, markerBegin, "-- " + slug + ": rollback goes here", markerEnd, "",
	}, "\n")

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create migration: %w", err)
	}
	if _, err := f.WriteString(body); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("write %q: %w", path, err)
	}
	return path, f.Close()
}

// ValidateDir checks every .sql file in dir: the filename format, unique
// versions, Up before Down, balanced statement blocks and a non-empty Up.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read %q: %w", dir, err)
	}

	versions := map[string]string{}
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || filepath.Ext(name) != ".sql" {
			continue
		}
		m := fileNameRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("%s: expected YYYYMMDDHHMMSS_snake_name.sql", name)
		}
		if _, err := time.Parse(versionLayout, m[1]); err != nil {
			return fmt.Errorf("%s: version is not a timestamp", name)
		}
		if prev, dup := versions[m[1]]; dup {
			return fmt.Errorf("%s: version %s already used by %s", name, m[1], prev)
		}
		versions[m[1]] = name

		if err := checkSections(filepath.Join(dir, name)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if len(versions) == 0 {
		return fmt.Errorf("no migrations in %q", dir)
	}
	return nil
}

func checkSections(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var (
		section    string
		open       bool
		statements int
	)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case line == markerUp:
			if section != "" {
				return fmt.Errorf("up section must come first")
			}
			section = "up"
		case line == markerDown:
			if section != "up" {
				return fmt.Errorf("down section appears before up")
			}
			section = "down"
		case line == markerBegin || line == markerEnd:
			if open == (line == markerBegin) {
				return fmt.Errorf("unbalanced StatementBegin/StatementEnd")
			}
			open = !open
		case section == "up" && line != "" && !strings.HasPrefix(line, "--"):
			statements++
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	switch {
	case section == "":
		return fmt.Errorf("missing %q", markerUp)
	case section == "up":
		return fmt.Errorf("missing %q", markerDown)
	case open:
		return fmt.Errorf("statement block left open")
	case statements == 0:
		return fmt.Errorf("up section has no statements")
	}
	return nil
}
