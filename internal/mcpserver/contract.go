package mcpserver

// NoteSyntax describes the markup mindweave derives structure from. Clients
// should follow it when creating or updating notes.
const NoteSyntax = `# Mindweave Note Syntax

Notes are plain Markdown identified by a title. There is no frontmatter;
tags and links are derived from the content on every save.

## Links

- ` + "`" + `[[Other note]]` + "`" + ` links to the note titled "Other note".
- The text between the brackets is the target title, verbatim. It must not
  span a line break.
- Links to titles that do not exist yet are kept and show up as dangling
  in the graph.

## Tags

- ` + "`" + `#tag` + "`" + ` tags the note. A tag is ASCII letters, digits and underscore.
- Tags are case sensitive. ` + "`" + `#Go` + "`" + ` and ` + "`" + `#go` + "`" + ` are different tags.
- A ` + "`" + `# ` + "`" + ` followed by a space at line start is a heading, not a tag.

## Checklists

- ` + "`" + `- [ ] item` + "`" + ` is an open checklist item, ` + "`" + `- [x] item` + "`" + ` a finished one.

## Formatting

Headings (` + "`" + `#` + "`" + ` to ` + "`" + `######` + "`" + `), ` + "`" + `**bold**` + "`" + `, ` + "`" + `*italic*` + "`" + `,
` + "`" + "`code`" + "`" + ` and ` + "`" + `[text](url)` + "`" + ` are rendered in previews. Raw HTML is escaped.

## Example

` + "```" + `markdown
# Weekly standup

Notes for #meeting with follow ups in [[Project X]].

- [ ] review the [[Design doc]]
- [x] ship the release
` + "```" + `
`
