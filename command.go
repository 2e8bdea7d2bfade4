package fedds

// CommandKind tags the commands the executor knows how to run.
type CommandKind int

const (
	// KindUnsupported commands are skipped: executing one is a no-op that
	// returns a zero result.
	KindUnsupported CommandKind = iota
	// KindSQL is SQL text with positional arguments.
	KindSQL
)

func (k CommandKind) String() string {
	if k == KindSQL {
		return "sql"
	}
	return "unsupported"
}

// Command is a statement to run through a Database.
type Command struct {
	Kind CommandKind
	Text string
	Args []any

	tx Tx
}

// NewCommand builds a SQL command. Placeholders follow the backend driver.
func NewCommand(text string, args ...any) Command {
	return Command{Kind: KindSQL, Text: text, Args: args}
}

// WithTx returns a copy of the command bound to tx. A bound command runs on
// the transaction instead of a freshly opened connection.
func (c Command) WithTx(tx Tx) Command {
	c.tx = tx
	return c
}

// Tx returns the bound transaction, if any.
func (c Command) Tx() Tx { return c.tx }
