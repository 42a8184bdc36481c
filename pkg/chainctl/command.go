package chainctl

import "github.com/readalong/chainstore/pkg/models"

// Command is one parsed chainctl subcommand.
type Command interface {
	Name() string
	// Writes reports whether the command modifies the store. Commands that
	// do not run against a read-only store.
	Writes() bool
}

type MigrateCommand struct{}

func (c *MigrateCommand) Name() string { return "migrate" }
func (c *MigrateCommand) Writes() bool { return true }

// ImportCommand loads pages from a JSON or YAML file into a new item.
type ImportCommand struct {
	Item models.ItemID
	File string
}

func (c *ImportCommand) Name() string { return "import" }
func (c *ImportCommand) Writes() bool { return true }

// DumpCommand prints the blocks of pages [Start, End).
type DumpCommand struct {
	Item       models.ItemID
	Start, End *int
}

func (c *DumpCommand) Name() string { return "dump" }
func (c *DumpCommand) Writes() bool { return false }

// IDsCommand prints block ids from From to To inclusive.
type IDsCommand struct {
	Item     models.ItemID
	From, To *models.BlockID
}

func (c *IDsCommand) Name() string { return "ids" }
func (c *IDsCommand) Writes() bool { return false }

type VerifyCommand struct {
	Item models.ItemID
}

func (c *VerifyCommand) Name() string { return "verify" }
func (c *VerifyCommand) Writes() bool { return false }

type DeleteBlockCommand struct {
	Item  models.ItemID
	Block models.BlockID
}

func (c *DeleteBlockCommand) Name() string { return "delete-block" }
func (c *DeleteBlockCommand) Writes() bool { return true }

type DeleteItemCommand struct {
	Item models.ItemID
}

func (c *DeleteItemCommand) Name() string { return "delete-item" }
func (c *DeleteItemCommand) Writes() bool { return true }

// CopyCommand copies the content of an item into another backend. The
// source store is only read.
type CopyCommand struct {
	Item      models.ItemID
	ToBackend string
	// ToItem is the item id in the target. Zero keeps the source id.
	ToItem models.ItemID
}

func (c *CopyCommand) Name() string { return "copy" }
func (c *CopyCommand) Writes() bool { return false }
