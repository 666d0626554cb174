package post

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/54b3r/forumrag-go/internal/logging"
)

// filePatterns is tried in order against file base names anywhere under the
// scan root; the first pattern with at least one match selects the file set.
var filePatterns = []string{
	"post_*.txt",
	"post*.txt",
	"*.txt",
	"*.md",
}

// Files returns the sorted list of post files under root together with the
// pattern that selected them. A missing root yields fs.ErrNotExist; a root
// with no matching files yields an empty list and an empty pattern.
func Files(root string) ([]string, string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, "", fmt.Errorf("post: scan root %s: %w", root, err)
	}
	if !info.IsDir() {
		return nil, "", fmt.Errorf("post: scan root %s is not a directory", root)
	}

	var all []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // unreadable entries are skipped
		}
		if d.Type().IsRegular() {
			all = append(all, path)
		}
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("post: walk %s: %w", root, err)
	}

	for _, pattern := range filePatterns {
		var matched []string
		for _, path := range all {
			if ok, _ := filepath.Match(pattern, filepath.Base(path)); ok {
				matched = append(matched, path)
			}
		}
		if len(matched) > 0 {
			sort.Strings(matched)
			return matched, pattern, nil
		}
	}
	return []string{}, "", nil
}

// LoadAll scans root for post files, parses them in sorted path order and
// returns one Record per parsed file with its topK highest-scored comments.
//
// Files that fail to parse are logged and skipped. A missing root or a root
// without matching files returns an empty slice and no error.
func LoadAll(ctx context.Context, root string, topK int) ([]Record, error) {
	log := logging.FromContext(ctx)
	log.Info("post: scanning root", slog.String("root", root))

	files, pattern, err := Files(root)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			log.Error("post: scan root does not exist", slog.String("root", root))
			return []Record{}, nil
		}
		return nil, err
	}
	if len(files) == 0 {
		log.Warn("post: no post files found",
			slog.String("root", root),
			slog.Any("patterns", filePatterns),
		)
		return []Record{}, nil
	}
	log.Info("post: matched files", slog.String("pattern", pattern), slog.Int("files", len(files)))

	records := make([]Record, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("post: scan cancelled: %w", err)
		}

		p, err := ParseFile(path)
		if err != nil {
			log.Warn("post: skipping file", slog.String("path", path), slog.Any("error", err))
			continue
		}
		rec := p.Record(topK)
		rec.Path = path
		records = append(records, rec)
	}

	log.Info("post: loaded posts", slog.Int("posts", len(records)), slog.Int("skipped", len(files)-len(records)))
	return records, nil
}
