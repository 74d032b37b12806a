// Package shell interprets the line commands of the tdb client against an
// open database.
package shell

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/tuannm99/tdb/internal/engine"
	"github.com/tuannm99/tdb/internal/format"
)

var (
	ErrUnknownCommand = errors.New("shell: unknown command")
	ErrUsage          = errors.New("shell: usage")
	ErrInvalidID      = errors.New("shell: invalid id")
)

type Options struct {
	Out     io.Writer
	Version string
	// Confirm asks a yes/no question. A nil Confirm answers no.
	Confirm func(question string) bool
	// ListConfirmRows is the row count above which list asks first. Zero
	// never asks.
	ListConfirmRows int
}

type command struct {
	names []string
	usage string
	help  string
	run   func(s *Shell, args []string) (bool, error)
}

type Shell struct {
	db   engine.DatabaseOperation
	opts Options
	cmds []command
}

func New(db engine.DatabaseOperation, opts Options) *Shell {
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	s := &Shell{db: db, opts: opts}
	s.cmds = []command{
		{names: []string{"help", "?"}, help: "show this help", run: (*Shell).help},
		{names: []string{"version", "v", "ver"}, help: "show tool and format version", run: (*Shell).version},
		{names: []string{"exit", "quit", "q"}, help: "commit and exit; exit! quits without saving", run: (*Shell).exit},
		{names: []string{"search", "s"}, usage: "<column> <query...>", help: "find rows by id, or by value prefix for other columns", run: (*Shell).search},
		{names: []string{"list", "ls"}, help: "print every row", run: (*Shell).list},
		{names: []string{"types", "lst"}, help: "print column modifiers, types and names", run: (*Shell).types},
		{names: []string{"size"}, help: "print row and column counts", run: (*Shell).size},
		{names: []string{"add"}, usage: "<values...>", help: "add a row; values for every column except the id", run: (*Shell).add},
		{names: []string{"remove", "rm"}, usage: "<id>", help: "remove the row with this id", run: (*Shell).remove},
		{names: []string{"edit", "e"}, usage: "<id> <column> <value...>", help: "change one value", run: (*Shell).edit},
		{names: []string{"clear"}, help: "remove every row", run: (*Shell).clear},
		{names: []string{"commit", "save"}, usage: "[path]", help: "write the table, or a copy of it to a new file", run: (*Shell).commit},
		{names: []string{"revert", "reverse"}, help: "drop uncommitted changes", run: (*Shell).revert},
	}
	return s
}

// Commands returns every command name, for completion.
func (s *Shell) Commands() []string {
	var out []string
	for _, c := range s.cmds {
		out = append(out, c.names...)
	}
	return out
}

// Exec runs one command line. quit is true when the caller should stop
// reading commands.
func (s *Shell) Exec(line string) (quit bool, err error) {
	args, err := SplitArgs(line)
	if err != nil {
		return false, err
	}
	if len(args) == 0 {
		return false, nil
	}

	name := args[0]
	switch name {
	case "exit!", "quit!", "q!":
		if s.db.Dirty() {
			slog.Warn("discarding uncommitted changes", "path", s.db.Path())
		}
		return true, nil
	}
	for _, c := range s.cmds {
		if slices.Contains(c.names, name) {
			slog.Debug("shell: exec", "command", c.names[0], "args", len(args)-1)
			return c.run(s, args[1:])
		}
	}
	return false, fmt.Errorf("%w %q, type help for a list", ErrUnknownCommand, name)
}

func (s *Shell) printf(msg string, a ...any) {
	fmt.Fprintf(s.opts.Out, msg, a...)
}

func (s *Shell) confirm(question string) bool {
	if s.opts.Confirm == nil {
		return false
	}
	return s.opts.Confirm(question)
}

func (s *Shell) usage(name string) error {
	for _, c := range s.cmds {
		if c.names[0] == name {
			return fmt.Errorf("%w: %s %s", ErrUsage, name, c.usage)
		}
	}
	return ErrUsage
}

func parseID(arg string) (uint64, error) {
	id, err := strconv.ParseUint(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w %q", ErrInvalidID, arg)
	}
	return id, nil
}

func (s *Shell) help(_ []string) (bool, error) {
	var b strings.Builder
	b.WriteString("commands:\n")
	for _, c := range s.cmds {
		syntax := strings.Join(c.names, "|")
		if c.usage != "" {
			syntax += " " + c.usage
		}
		fmt.Fprintf(&b, "  %-36s %s\n", syntax, c.help)
	}
	b.WriteString("\nquote values containing spaces with \"...\"; \\ escapes the next character\n")
	s.printf("%s", b.String())
	return false, nil
}

func (s *Shell) version(_ []string) (bool, error) {
	s.printf("tdb %s (format %s)\n", s.opts.Version, format.HeaderLine())
	return false, nil
}

func (s *Shell) exit(_ []string) (bool, error) {
	if s.db.Dirty() {
		if err := s.db.Commit(); err != nil {
			return false, fmt.Errorf("not exiting: %w", err)
		}
		s.printf("committed %s\n", s.db.Path())
	}
	return true, nil
}

func (s *Shell) search(args []string) (bool, error) {
	if len(args) < 2 {
		return false, s.usage("search")
	}
	column, query := args[0], strings.Join(args[1:], " ")

	schema := s.db.Schema()
	if schema.IDCol >= 0 && schema.Cols[schema.IDCol].Name == column {
		id, err := parseID(query)
		if err != nil {
			return false, err
		}
		var rows []int
		if pos, ok := s.db.SearchByID(id); ok {
			rows = append(rows, pos)
		}
		return false, s.printRows(rows)
	}

	rows, err := s.db.SearchByPrefix(column, query)
	if err != nil {
		return false, err
	}
	return false, s.printRows(rows)
}

func (s *Shell) list(_ []string) (bool, error) {
	n := s.db.RowCount()
	if limit := s.opts.ListConfirmRows; limit > 0 && n > limit {
		if !s.confirm(fmt.Sprintf("print all %d rows?", n)) {
			return false, nil
		}
	}
	rows := make([]int, n)
	for i := range rows {
		rows[i] = i
	}
	return false, s.printRows(rows)
}

func (s *Shell) printRows(positions []int) error {
	cells := make([][]string, 0, len(positions))
	for _, pos := range positions {
		row, err := s.db.GetRow(pos)
		if err != nil {
			return err
		}
		out := make([]string, len(row))
		for i, v := range row {
			out[i] = v.String()
		}
		cells = append(cells, out)
	}
	renderTable(s.opts.Out, s.db.ColumnNames(), cells)
	s.printf("(%d rows)\n", len(positions))
	return nil
}

func (s *Shell) types(_ []string) (bool, error) {
	schema := s.db.Schema()
	mods := make([]string, schema.NumCols())
	types := make([]string, schema.NumCols())
	for i, c := range schema.Cols {
		if m := c.Mods.String(); m != "" {
			mods[i] = "[" + m + "]"
		}
		types[i] = c.Type.String()
	}
	renderTable(s.opts.Out, schema.Names(), [][]string{mods, types})
	return false, nil
}

func (s *Shell) size(_ []string) (bool, error) {
	s.printf("%d rows, %d columns\n", s.db.RowCount(), s.db.ColumnCount())
	return false, nil
}

func (s *Shell) add(args []string) (bool, error) {
	id, err := s.db.AddRow(args)
	if err != nil {
		return false, err
	}
	s.printf("added row %d\n", id)
	return false, nil
}

func (s *Shell) remove(args []string) (bool, error) {
	if len(args) != 1 {
		return false, s.usage("remove")
	}
	id, err := parseID(args[0])
	if err != nil {
		return false, err
	}
	if err := s.db.RemoveByID(id); err != nil {
		return false, err
	}
	s.printf("removed row %d\n", id)
	return false, nil
}

func (s *Shell) edit(args []string) (bool, error) {
	if len(args) < 3 {
		return false, s.usage("edit")
	}
	id, err := parseID(args[0])
	if err != nil {
		return false, err
	}
	return false, s.db.EditCell(id, args[1], strings.Join(args[2:], " "))
}

func (s *Shell) clear(_ []string) (bool, error) {
	n := s.db.RowCount()
	if n == 0 {
		return false, nil
	}
	if !s.confirm(fmt.Sprintf("remove all %d rows?", n)) {
		return false, nil
	}
	if err := s.db.Clear(); err != nil {
		return false, err
	}
	s.printf("removed %d rows\n", n)
	return false, nil
}

func (s *Shell) commit(args []string) (bool, error) {
	switch len(args) {
	case 0:
		if err := s.db.Commit(); err != nil {
			return false, err
		}
		s.printf("committed %s\n", s.db.Path())
	case 1:
		if err := s.db.CommitAs(args[0]); err != nil {
			return false, err
		}
		s.printf("saved copy to %s\n", args[0])
	default:
		return false, s.usage("commit")
	}
	return false, nil
}

func (s *Shell) revert(_ []string) (bool, error) {
	if err := s.db.Revert(); err != nil {
		return false, err
	}
	s.printf("reverted to %s (%d rows)\n", s.db.Path(), s.db.RowCount())
	return false, nil
}

// FormatHelp describes the on-disk table format.
const FormatHelp = `A tdb table is a text file.

Line 1 is the magic "tdb" followed by the format version: tdb1
Line 2 is the schema, one |-delimited field per column:

  |id const uint id|str name|int age|

  each field is: [modifiers...] <type> <name>
  types:      int (signed 64-bit), uint (unsigned 64-bit), str
  modifiers:  const  the value can not be edited after the row is added
              id     the table key; exactly one column, must be const uint

Every further line is one row with one value per column:

  |0|Alice|30|

Values may not contain | [ ] or line breaks. Numbers are plain decimal.
Files ending in .zst or .sz are read and written compressed.
`
