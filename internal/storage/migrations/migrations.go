// Package migrations applies the embedded schema files of each backend.
package migrations

import (
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

// file is one migration, named NNN_description.sql.
type file struct {
	name string
	sql  string
}

// load reads every .sql file under dir in lexical order. Blank files are skipped.
func load(fsys fs.FS, dir string) ([]file, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read embedded %s migrations: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	files := make([]file, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, dir+"/"+name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		files = append(files, file{name: name, sql: string(data)})
	}
	return files, nil
}

// splitStatements splits SQL content into individual statements by semicolon.
// Lines starting with -- are dropped first.
//
// The splitter does NOT handle semicolons inside string literals or /* */
// comments. validateNoSemicolonInStrings rejects the first case at migration time.
func splitStatements(input string) []string {
	var filtered []string
	for _, line := range strings.Split(input, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "--") {
			continue
		}
		filtered = append(filtered, line)
	}
	joined := strings.Join(filtered, "\n")

	var stmts []string
	for _, part := range strings.Split(joined, ";") {
		stmt := strings.TrimSpace(part)
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	return stmts
}

// validateNoSemicolonInStrings checks that SQL doesn't contain semicolons inside
// single-quoted strings, which would break splitStatements.
func validateNoSemicolonInStrings(sql string) error {
	inString := false
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if ch == '\'' {
			// Handle escaped quotes ''
			if i+1 < len(sql) && sql[i+1] == '\'' {
				i++
				continue
			}
			inString = !inString
		} else if ch == ';' && inString {
			return fmt.Errorf("semicolon inside string literal at offset %d", i)
		}
	}
	return nil
}

// statements validates and splits every file.
func statements(files []file) (map[string][]string, error) {
	out := make(map[string][]string, len(files))
	for _, f := range files {
		if err := validateNoSemicolonInStrings(f.sql); err != nil {
			return nil, fmt.Errorf("validate migration %s: %w", f.name, err)
		}
		out[f.name] = splitStatements(f.sql)
	}
	return out, nil
}
