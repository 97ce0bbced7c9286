// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history_cmd.go - Saved conversation management.
//
//	tiller history               List saved conversations
//	tiller history list          Same
//	tiller history show <id>     Print a conversation transcript
//	tiller history search <text> Search titles and content
//	tiller history export <id>   Export as markdown
//	  --output FILE              Write to a file instead of stdout
//	tiller history delete <id>   Delete one conversation
//	tiller history clear --confirm
//	                             Delete everything
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/morganforge/tiller/internal/storage"
	"github.com/morganforge/tiller/internal/util"
)

// HandleHistory dispatches the history subcommands.
func HandleHistory(args Args) error {
	parser := NewArgParser(args.Raw)

	store, err := OpenStore()
	if err != nil {
		return fmt.Errorf("opening conversation store: %w", err)
	}
	defer store.Close()

	ctx := context.Background()

	switch parser.Subcommand() {
	case "", "list":
		return listHistory(ctx, store, args.JSON)

	case "show":
		return showHistory(ctx, store, parser.Positional(1))

	case "search":
		query := strings.Join(parser.Positionals(), " ")
		return searchHistory(ctx, store, query)

	case "export":
		return exportHistory(ctx, store, parser.Positional(1), parser.Flag("output"))

	case "delete":
		id := parser.Positional(1)
		if id == "" {
			return fmt.Errorf("usage: tiller history delete <id>")
		}
		if err := store.Delete(ctx, id); err != nil {
			return err
		}
		fmt.Println("deleted", id)
		return nil

	case "clear":
		if !parser.BoolFlag("confirm") {
			return fmt.Errorf("refusing to delete all conversations without --confirm")
		}
		if err := store.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("all conversations deleted")
		return nil

	default:
		return fmt.Errorf("unknown subcommand %q, try list|show|search|export|delete|clear", parser.Subcommand())
	}
}

func listHistory(ctx context.Context, store *storage.Store, asJSON bool) error {
	metas, err := store.List(ctx)
	if err != nil {
		return err
	}

	if asJSON {
		out, err := json.MarshalIndent(metas, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	}

	if len(metas) == 0 {
		fmt.Println("no saved conversations")
		return nil
	}
	for _, meta := range metas {
		fmt.Printf("%s  %-40s  %3d msgs  %s\n",
			meta.ID[:8],
			util.TruncateRunes(meta.Title, 40),
			meta.MessageCount,
			meta.UpdatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func showHistory(ctx context.Context, store *storage.Store, id string) error {
	if id == "" {
		return fmt.Errorf("usage: tiller history show <id>")
	}
	conv, err := store.Load(ctx, id)
	if err != nil {
		return err
	}

	fmt.Printf("%s (%s, %d messages)\n\n", conv.Title, conv.Model, len(conv.Messages))
	for _, msg := range conv.Messages {
		fmt.Printf("[%s]\n%s\n\n", msg.Role.DisplayName(), msg.Content)
	}
	return nil
}

func searchHistory(ctx context.Context, store *storage.Store, query string) error {
	if query == "" {
		return fmt.Errorf("usage: tiller history search <text>")
	}
	metas, err := store.Search(ctx, query)
	if err != nil {
		return err
	}
	if len(metas) == 0 {
		fmt.Println("no matches")
		return nil
	}
	for _, meta := range metas {
		fmt.Printf("%s  %s\n", meta.ID[:8], meta.Title)
	}
	return nil
}

func exportHistory(ctx context.Context, store *storage.Store, id, output string) error {
	if id == "" {
		return fmt.Errorf("usage: tiller history export <id> [--output FILE]")
	}
	conv, err := store.Load(ctx, id)
	if err != nil {
		return err
	}
	md := conv.ExportMarkdown()
	if output == "" {
		fmt.Print(md)
		return nil
	}
	if err := util.AtomicWriteFile(output, []byte(md), 0644); err != nil {
		return err
	}
	fmt.Println("exported to", output)
	return nil
}
