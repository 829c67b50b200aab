// Package graphexport pushes the derived note graph into Neo4j.
package graphexport

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/starford/mindweave/internal/graph"
)

// Config holds Neo4j connection configuration.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Statement is one parameterized Cypher query.
type Statement struct {
	Query  string
	Params map[string]any
}

// Writer executes statements atomically.
type Writer interface {
	Write(ctx context.Context, stmts []Statement) error
}

// Summary counts what an export pushed.
type Summary struct {
	Notes  int
	Tags   int
	Links  int
	Tagged int
}

const (
	mergeNotes = `
		UNWIND $notes AS n
		MERGE (x:Note {id: n.id})
		SET x.title = n.title, x.connections = n.connections`

	removeStaleNotes = `
		MATCH (x:Note)
		WHERE NOT x.id IN $ids
		DETACH DELETE x`

	clearEdges = `
		MATCH (:Note)-[r:LINKS_TO|TAGGED]->()
		DELETE r`

	mergeTags = `
		UNWIND $tags AS t
		MERGE (x:Tag {name: t.name})
		SET x.connections = t.connections`

	mergeLinks = `
		UNWIND $links AS l
		MATCH (a:Note {id: l.source})
		MATCH (b:Note {id: l.target})
		MERGE (a)-[r:LINKS_TO]->(b)
		SET r.strength = l.strength`

	mergeTagged = `
		UNWIND $tagged AS l
		MATCH (a:Note {id: l.source})
		MATCH (t:Tag {name: l.tag})
		MERGE (a)-[:TAGGED]->(t)`

	removeOrphanTags = `
		MATCH (t:Tag)
		WHERE NOT (t)<-[:TAGGED]-()
		DELETE t`
)

// Plan turns g into the statements that make Neo4j mirror it. g should be
// built with tag nodes. Running the plan twice leaves the same graph.
func Plan(g graph.Graph) ([]Statement, Summary) {
	kinds := make(map[string]graph.Node, len(g.Nodes))
	notes := []map[string]any{}
	tags := []map[string]any{}
	ids := []string{}
	for _, n := range g.Nodes {
		kinds[n.ID] = n
		switch n.Type {
		case graph.NodeNote:
			notes = append(notes, map[string]any{"id": n.ID, "title": n.Label, "connections": n.Connections})
			ids = append(ids, n.ID)
		case graph.NodeTag:
			tags = append(tags, map[string]any{"name": n.Label, "connections": n.Connections})
		}
	}

	links := []map[string]any{}
	tagged := []map[string]any{}
	for _, e := range g.Edges {
		target, ok := kinds[e.Target]
		if !ok {
			continue
		}
		if target.Type == graph.NodeTag {
			tagged = append(tagged, map[string]any{"source": e.Source, "tag": target.Label})
			continue
		}
		links = append(links, map[string]any{"source": e.Source, "target": e.Target, "strength": e.Strength})
	}

	sum := Summary{Notes: len(notes), Tags: len(tags), Links: len(links), Tagged: len(tagged)}
	return []Statement{
		{Query: removeStaleNotes, Params: map[string]any{"ids": ids}},
		{Query: mergeNotes, Params: map[string]any{"notes": notes}},
		{Query: clearEdges},
		{Query: mergeTags, Params: map[string]any{"tags": tags}},
		{Query: mergeLinks, Params: map[string]any{"links": links}},
		{Query: mergeTagged, Params: map[string]any{"tagged": tagged}},
		{Query: removeOrphanTags},
	}, sum
}

// Exporter writes graphs through a Writer.
type Exporter struct {
	w      Writer
	logger *slog.Logger
}

// NewExporter creates an Exporter. A nil logger uses slog.Default.
func NewExporter(w Writer, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{w: w, logger: logger}
}

// Export replaces the exported graph with g.
func (e *Exporter) Export(ctx context.Context, g graph.Graph) (Summary, error) {
	stmts, sum := Plan(g)
	if err := e.w.Write(ctx, stmts); err != nil {
		return Summary{}, fmt.Errorf("graphexport: write: %w", err)
	}
	e.logger.Info("graph exported",
		slog.Int("notes", sum.Notes),
		slog.Int("tags", sum.Tags),
		slog.Int("links", sum.Links),
		slog.Int("tagged", sum.Tagged),
	)
	return sum, nil
}

// Neo4j is a Writer backed by a Neo4j driver.
type Neo4j struct {
	driver   neo4j.DriverWithContext
	database string
}

// Connect opens a driver and verifies connectivity.
func Connect(ctx context.Context, cfg Config) (*Neo4j, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("graphexport: creating neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("graphexport: connecting to neo4j: %w", err)
	}
	db := cfg.Database
	if db == "" {
		db = "neo4j"
	}
	return &Neo4j{driver: driver, database: db}, nil
}

// Close closes the driver.
func (n *Neo4j) Close(ctx context.Context) error {
	return n.driver.Close(ctx)
}

// Write runs stmts in a single write transaction.
func (n *Neo4j) Write(ctx context.Context, stmts []Statement) error {
	session := n.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for _, st := range stmts {
			res, err := tx.Run(ctx, st.Query, st.Params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}
