package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kuitang/notewise/internal/client"
	"github.com/kuitang/notewise/internal/notes"
)

func newListCmd(opts *options) *cobra.Command {
	var (
		view  string
		tag   string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List notes",
		Long: `List notes in one of the sidebar views.

Views:
  active    unarchived notes, pinned first (default)
  all       every note, archived included
  pinned    pinned notes
  archived  archived notes
  recent    most recently updated unarchived notes (see --limit)
  tag       same as passing --tag alone

--tag restricts the listing to unarchived notes carrying that tag id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := opts.loadCache(cmd.Context())
			if err != nil {
				return err
			}

			var list []notes.Note
			switch {
			case tag != "":
				list = cache.Tagged(tag)
			case view == "tag":
				return fmt.Errorf("--view tag needs --tag <id>")
			case view == "active":
				list = cache.Active()
			case view == "all":
				list = cache.Notes()
				notes.SortByUpdated(list)
			case view == "pinned":
				list = cache.Pinned()
			case view == "archived":
				list = cache.Archived()
			case view == "recent":
				list = cache.Recent(limit)
			default:
				return fmt.Errorf("unknown view %q", view)
			}

			r := newRenderer(cmd.OutOrStdout())
			r.notes(list)
			r.counts(cache.Counts())
			return nil
		},
	}
	cmd.Flags().StringVar(&view, "view", "active", "active, all, pinned, archived, recent or tag")
	cmd.Flags().StringVar(&tag, "tag", "", "only notes with this tag id")
	cmd.Flags().IntVar(&limit, "limit", notes.DefaultRecentLimit, "number of notes in the recent view")
	return cmd
}

func newSearchCmd(opts *options) *cobra.Command {
	var remote bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Find notes whose title, content or tags contain the query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if query == "" {
				return fmt.Errorf("search query is empty")
			}
			var list []notes.Note
			if remote {
				c, err := opts.apiClient(true)
				if err != nil {
					return err
				}
				if list, err = c.SearchNotes(cmd.Context(), query); err != nil {
					return tokenHint(err)
				}
			} else {
				cache, err := opts.loadCache(cmd.Context())
				if err != nil {
					return err
				}
				list = cache.Search(query)
			}
			newRenderer(cmd.OutOrStdout()).matches(list, query)
			return nil
		},
	}
	cmd.Flags().BoolVar(&remote, "remote", false, "search on the server instead of locally")
	return cmd
}

func newShowCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one note with its full content",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.apiClient(true)
			if err != nil {
				return err
			}
			n, err := c.GetNote(cmd.Context(), args[0])
			if err != nil {
				return tokenHint(err)
			}
			newRenderer(cmd.OutOrStdout()).full(*n)
			return nil
		},
	}
}

func newAddCmd(opts *options) *cobra.Command {
	var (
		content string
		tags    []string
		pin     bool
	)
	cmd := &cobra.Command{
		Use:     "add <title>",
		Short:   "Create a note",
		Example: `  notectl add Groceries --content "milk, eggs" --tag home:blue --pin`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseTags(tags)
			if err != nil {
				return err
			}
			cache, err := opts.loadCache(cmd.Context())
			if err != nil {
				return err
			}
			created, err := cache.Create(cmd.Context(), notes.CreateNoteParams{
				Title:    args[0],
				Content:  content,
				Tags:     reuseTagIDs(parsed, cache.Tags()),
				IsPinned: pin,
			})
			if err != nil {
				return err
			}
			newRenderer(cmd.OutOrStdout()).note(created)
			return nil
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "note body")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "tag as name:color, repeatable")
	cmd.Flags().BoolVar(&pin, "pin", false, "pin the new note")
	return cmd
}

func newEditCmd(opts *options) *cobra.Command {
	var (
		title   string
		content string
		tags    []string
	)
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change a note's title, content or tags",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var params notes.UpdateNoteParams
			flags := cmd.Flags()
			if flags.Changed("title") {
				params.Title = &title
			}
			if flags.Changed("content") {
				params.Content = &content
			}

			cache, err := opts.loadCache(cmd.Context())
			if err != nil {
				return err
			}
			if flags.Changed("tag") {
				parsed, err := parseTags(tags)
				if err != nil {
					return err
				}
				parsed = reuseTagIDs(parsed, cache.Tags())
				params.Tags = &parsed
			}

			updated, err := cache.Update(cmd.Context(), args[0], params)
			if err != nil {
				return err
			}
			newRenderer(cmd.OutOrStdout()).note(updated)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "new title")
	cmd.Flags().StringVar(&content, "content", "", "new body")
	cmd.Flags().StringArrayVar(&tags, "tag", nil, "replace tags with name:color, repeatable")
	return cmd
}

func newPinCmd(opts *options) *cobra.Command {
	return newToggleCmd(opts, "pin", "Pin or unpin a note", (*client.Cache).TogglePin)
}

func newArchiveCmd(opts *options) *cobra.Command {
	return newToggleCmd(opts, "archive", "Archive or restore a note", (*client.Cache).ToggleArchive)
}

func newRemoveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Delete a note permanently",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := opts.loadCache(cmd.Context())
			if err != nil {
				return err
			}
			if err := cache.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Note removed")
			return nil
		},
	}
}

func newTagsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tags",
		Short: "List tags with the number of notes carrying each",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cache, err := opts.loadCache(cmd.Context())
			if err != nil {
				return err
			}
			newRenderer(cmd.OutOrStdout()).tags(cache.Tags())
			return nil
		},
	}
}

// parseTags turns name:color arguments into tags without ids.
func parseTags(args []string) ([]notes.Tag, error) {
	out := make([]notes.Tag, 0, len(args))
	for _, arg := range args {
		name, color, ok := strings.Cut(arg, ":")
		name, color = strings.TrimSpace(name), strings.TrimSpace(color)
		if !ok || name == "" || color == "" {
			return nil, fmt.Errorf("invalid tag %q: want name:color", arg)
		}
		out = append(out, notes.Tag{Name: name, Color: color})
	}
	return out, nil
}

// reuseTagIDs gives a tag the id of an existing tag with the same name, so
// the same label groups together across notes.
func reuseTagIDs(tags []notes.Tag, existing map[string]notes.TagCount) []notes.Tag {
	byName := make(map[string]string, len(existing))
	ids := make([]string, 0, len(existing))
	for id := range existing {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		name := notes.Fold(existing[id].Name)
		if _, ok := byName[name]; !ok {
			byName[name] = id
		}
	}
	for i := range tags {
		if id, ok := byName[notes.Fold(tags[i].Name)]; ok {
			tags[i].ID = id
		}
	}
	return tags
}
