package graph

import "github.com/starford/mindweave/internal/parser"

// Node types.
const (
	NodeNote = "note"
	NodeTag  = "tag"
)

// Tag node ids carry this prefix so they never collide with note ids.
const tagIDPrefix = "tag:"

// Node is a vertex of the derived graph.
type Node struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Type        string `json:"type"`
	Connections int    `json:"connections"`
}

// Edge is a directed connection. Strength counts repeated links.
type Edge struct {
	Source   string `json:"source"`
	Target   string `json:"target"`
	Strength int    `json:"strength"`
}

// Graph is the node/edge view of a collection.
type Graph struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
	// Dangling lists link targets matching no note title, first appearance order.
	Dangling []string `json:"dangling"`
}

// Options controls what Build emits.
type Options struct {
	IncludeTags bool
}

// TagNodeID returns the node id used for tag.
func TagNodeID(tag string) string {
	return tagIDPrefix + tag
}

// Build derives the graph of notes. Backlinks should already be computed;
// node connection counts use them as given. A note linking to its own
// title gets no edge.
func Build(notes []NoteView, opts Options) Graph {
	g := Graph{Nodes: []Node{}, Edges: []Edge{}, Dangling: []string{}}
	byTitle := titleIndex(notes)

	for _, n := range notes {
		g.Nodes = append(g.Nodes, Node{ID: n.ID, Label: n.Title, Type: NodeNote, Connections: n.Connections()})
	}

	dangling := make(map[string]struct{})
	for _, src := range notes {
		strength := make(map[string]int)
		var targets []string
		for _, target := range src.Links {
			matches, ok := byTitle[target]
			if !ok {
				if _, seen := dangling[target]; !seen {
					dangling[target] = struct{}{}
					g.Dangling = append(g.Dangling, target)
				}
				continue
			}
			for _, i := range matches {
				id := notes[i].ID
				if id == src.ID {
					continue
				}
				if strength[id] == 0 {
					targets = append(targets, id)
				}
				strength[id]++
			}
		}
		for _, id := range targets {
			g.Edges = append(g.Edges, Edge{Source: src.ID, Target: id, Strength: strength[id]})
		}
	}

	if !opts.IncludeTags {
		return g
	}

	tagNotes := make(map[string]int)
	var order []string
	for _, n := range notes {
		for _, tag := range parser.Unique(n.Tags) {
			if tagNotes[tag] == 0 {
				order = append(order, tag)
			}
			tagNotes[tag]++
			g.Edges = append(g.Edges, Edge{Source: n.ID, Target: TagNodeID(tag), Strength: 1})
		}
	}
	for _, tag := range order {
		g.Nodes = append(g.Nodes, Node{ID: TagNodeID(tag), Label: tag, Type: NodeTag, Connections: tagNotes[tag]})
	}
	return g
}
