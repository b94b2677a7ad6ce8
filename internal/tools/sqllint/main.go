// Command sqllint fails when a SQL constant lacks a "--sql <uuid>" marker or
// reuses another constant's marker. SQLRunner logs statements by marker, so
// both mistakes make log lines untraceable.
//
//	go run ./internal/tools/sqllint ./internal/sqlinline
package main

import (
	"errors"
	"flag"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"stylegen/internal/infra"
)

// looksLikeSQL matches string constants that open with a DML verb.
var looksLikeSQL = regexp.MustCompile(`(?is)^\s*(select|insert|update|delete|with)\s`)

type violation struct {
	pos     token.Position
	name    string
	message string
}

func (v violation) String() string {
	return fmt.Sprintf("%s:%d %s: %s", v.pos.Filename, v.pos.Line, v.name, v.message)
}

// linter carries marker ownership across files so duplicates are caught
// package-wide.
type linter struct {
	fset  *token.FileSet
	owner map[string]violation
	found []violation
}

func newLinter() *linter {
	return &linter{fset: token.NewFileSet(), owner: map[string]violation{}}
}

func main() {
	flag.Parse()
	targets := flag.Args()
	if len(targets) == 0 {
		targets = []string{"."}
	}
	l := newLinter()
	for _, target := range targets {
		if err := l.walk(target); err != nil {
			fmt.Fprintf(os.Stderr, "sqllint: %v\n", err)
			os.Exit(2)
		}
	}
	if len(l.found) == 0 {
		return
	}
	for _, v := range l.found {
		fmt.Fprintln(os.Stderr, v)
	}
	fmt.Fprintf(os.Stderr, "sqllint: %d marker problem(s)\n", len(l.found))
	os.Exit(1)
}

func (l *linter) walk(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir() && path != root && (strings.HasPrefix(d.Name(), ".") || strings.HasPrefix(d.Name(), "_") || d.Name() == "vendor"):
			return filepath.SkipDir
		case d.IsDir() || filepath.Ext(path) != ".go":
			return nil
		}
		return l.file(path)
	})
}

func (l *linter) file(path string) error {
	f, err := parser.ParseFile(l.fset, path, nil, 0)
	if err != nil {
		return err
	}
	for _, decl := range f.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || (gen.Tok != token.CONST && gen.Tok != token.VAR) {
			continue
		}
		for _, spec := range gen.Specs {
			vs := spec.(*ast.ValueSpec)
			for i, value := range vs.Values {
				lit, ok := value.(*ast.BasicLit)
				if !ok || lit.Kind != token.STRING || i >= len(vs.Names) {
					continue
				}
				text, err := strconv.Unquote(lit.Value)
				if err != nil {
					continue
				}
				l.check(vs.Names[i].Name, l.fset.Position(lit.Pos()), text)
			}
		}
	}
	return nil
}

func (l *linter) check(name string, pos token.Position, text string) {
	tagged := strings.HasPrefix(strings.TrimSpace(text), "--sql")
	if !tagged && !looksLikeSQL.MatchString(text) {
		return
	}
	v := violation{pos: pos, name: name}
	marker, _, err := infra.ExtractMarker(text)
	switch {
	case errors.Is(err, infra.ErrMissingMarker):
		v.message = "missing or malformed --sql <uuid> marker"
	case err != nil:
		v.message = err.Error()
	default:
		if prev, dup := l.owner[marker]; dup {
			v.message = fmt.Sprintf("marker %s already used by %s (%s:%d)", marker, prev.name, prev.pos.Filename, prev.pos.Line)
			break
		}
		l.owner[marker] = v
		return
	}
	l.found = append(l.found, v)
}
