package moderation

import (
	"collab-live/errors"
	"embed"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/samber/lo"
)

//go:embed dictionaries/*.txt
var dictionaries embed.FS

// Dictionary is the merged word list of every language file, deduplicated
// and sorted.
type Dictionary struct {
	Words     []string
	Languages []string
}

// DefaultDictionary loads the word lists shipped with the binary.
func DefaultDictionary() (Dictionary, error) {
	return LoadDictionary(dictionaries, "dictionaries")
}

// LoadDictionary reads one word per line from every {lang}.txt file in dir.
// Blank lines and lines starting with # are ignored.
func LoadDictionary(fsys fs.FS, dir string) (Dictionary, error) {
	files, err := fs.Glob(fsys, path.Join(dir, "*.txt"))
	if err != nil {
		return Dictionary{}, err
	}

	words := make(map[string]struct{})
	languages := make([]string, 0, len(files))
	for _, file := range files {
		data, err := fs.ReadFile(fsys, file)
		if err != nil {
			return Dictionary{}, err
		}
		languages = append(languages, strings.TrimSuffix(path.Base(file), ".txt"))
		for _, line := range strings.Split(string(data), "\n") {
			word := strings.ToLower(strings.TrimSpace(line))
			if word == "" || strings.HasPrefix(word, "#") {
				continue
			}
			words[word] = struct{}{}
		}
	}
	if len(words) == 0 {
		return Dictionary{}, errors.ErrEmptyWords
	}

	sorted := lo.Keys(words)
	slices.Sort(sorted)
	return Dictionary{Words: sorted, Languages: languages}, nil
}
