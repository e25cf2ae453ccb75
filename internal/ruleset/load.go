// internal/ruleset/load.go
package ruleset

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/solatis/commissar/internal/rules"
)

// File is the on-disk rule file layout.
type File struct {
	Rules []Entry `yaml:"rules"`
}

// Entry is one rule in a rule file.
type Entry struct {
	Name    string `yaml:"name"`
	Message string `yaml:"message"`
	Body    string `yaml:"body"`
}

// Decode parses rule file contents.
func Decode(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse rules file: %w", err)
	}
	return &f, nil
}

// ReadFile reads and parses a rule file.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return Decode(data)
}

// Build parses, compiles and registers every entry of f into a new sealed
// book. Entries that fail are skipped and their errors joined into the
// returned error; the book always holds the valid rules.
func Build(f *File) (*rules.RuleBook, error) {
	book := rules.NewRuleBook()
	var errs []error

	for i, entry := range f.Rules {
		def, err := Parse(entry.Name, entry.Body)
		if err == nil {
			def.Message = entry.Message
			_, err = book.RegisterDefinition(def)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("rules[%d] %s: %w", i, entry.Name, err))
		}
	}

	book.Seal()
	return book, errors.Join(errs...)
}

// LoadFile reads path and builds a sealed book from it.
func LoadFile(path string, logger *slog.Logger) (*rules.RuleBook, error) {
	if logger == nil {
		logger = slog.Default()
	}

	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}

	book, err := Build(f)
	if err != nil {
		logger.Warn("Rule file has invalid rules",
			"path", path,
			"loaded", book.Len(),
			"declared", len(f.Rules),
			"error", err)
		return book, err
	}

	logger.Info("Rules loaded", "path", path, "rules", book.Len())
	return book, nil
}
