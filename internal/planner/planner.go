package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cast"
	"github.com/yourbasic/graph"

	"github.com/bellroy/sample-data-dump-postgres-data-store/internal/connector"
	"github.com/bellroy/sample-data-dump-postgres-data-store/pkg/models"
)

// ForeignKeysQuery lists the foreign keys declared in the comma separated
// schemas passed as $1. Table names are schema qualified.
const ForeignKeysQuery = `SELECT
  tc.table_schema || '.' || tc.table_name AS table_name,
  kcu.column_name,
  ccu.table_schema || '.' || ccu.table_name AS referenced_table_name,
  ccu.column_name AS referenced_column_name,
  tc.constraint_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name
  AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON ccu.constraint_name = tc.constraint_name
  AND ccu.constraint_schema = tc.constraint_schema
WHERE tc.constraint_type = 'FOREIGN KEY'
AND tc.table_schema = ANY(string_to_array($1, ','))
ORDER BY 1, 2`

// Plan is the order in which configured tables are wiped and loaded
type Plan struct {
	LoadOrder   []models.TableConfiguration
	WipeOrder   []models.TableConfiguration
	ForeignKeys []models.ForeignKey
	// Cycles lists groups of tables that reference each other
	Cycles [][]string
}

// Planner orders configured tables by their foreign keys
type Planner struct {
	DB     connector.Executor
	Logger *logrus.Logger
}

// NewPlanner creates a new planner
func NewPlanner(db connector.Executor, logger *logrus.Logger) *Planner {
	return &Planner{
		DB:     db,
		Logger: logger,
	}
}

// ForeignKeys returns the foreign keys between the given tables. Keys to
// tables outside the set and self references are ignored.
func (p *Planner) ForeignKeys(tables []models.TableConfiguration) ([]models.ForeignKey, error) {
	if len(tables) == 0 {
		return nil, nil
	}

	schemas := lo.Uniq(lo.Map(tables, func(tc models.TableConfiguration, _ int) string {
		return tc.SchemaName
	}))
	sort.Strings(schemas)

	rows, err := p.DB.ExecuteQuery(ForeignKeysQuery, strings.Join(schemas, ","))
	if err != nil {
		p.Logger.Errorf("Error getting foreign keys: %v", err)
		return nil, err
	}

	configured := lo.SliceToMap(tables, func(tc models.TableConfiguration) (string, bool) {
		return tc.QualifiedTableName(), true
	})

	var fks []models.ForeignKey
	for _, row := range rows {
		fk := models.ForeignKey{
			Table:            cast.ToString(row["table_name"]),
			Column:           cast.ToString(row["column_name"]),
			ReferencedTable:  cast.ToString(row["referenced_table_name"]),
			ReferencedColumn: cast.ToString(row["referenced_column_name"]),
			ConstraintName:   cast.ToString(row["constraint_name"]),
		}
		if fk.Table == fk.ReferencedTable || !configured[fk.Table] || !configured[fk.ReferencedTable] {
			continue
		}
		fks = append(fks, fk)
	}
	p.Logger.Debugf("Found %d foreign keys between configured tables", len(fks))
	return fks, nil
}

// Plan reads the foreign keys between tables and orders them
func (p *Planner) Plan(tables []models.TableConfiguration) (*Plan, error) {
	fks, err := p.ForeignKeys(tables)
	if err != nil {
		return nil, err
	}

	plan := BuildPlan(tables, fks)
	for _, cycle := range plan.Cycles {
		p.Logger.Warningf("Circular foreign keys between %s; loading them in configuration order", strings.Join(cycle, ", "))
	}
	return plan, nil
}

// BuildPlan orders tables so that every referenced table is loaded before the
// tables referencing it. Tables referencing each other are kept together in
// configuration order. Wipe order is the reverse of load order.
func BuildPlan(tables []models.TableConfiguration, fks []models.ForeignKey) *Plan {
	index := make(map[string]int, len(tables))
	for i, tc := range tables {
		index[tc.QualifiedTableName()] = i
	}

	// edges run from a referenced table to the table referencing it
	g := graph.New(len(tables))
	for _, fk := range fks {
		from, ok := index[fk.ReferencedTable]
		if !ok {
			continue
		}
		to, ok := index[fk.Table]
		if !ok || from == to {
			continue
		}
		g.Add(from, to)
	}

	components := graph.StrongComponents(graph.Sort(g))
	componentOf := make([]int, len(tables))
	for c, members := range components {
		sort.Ints(members)
		for _, v := range members {
			componentOf[v] = c
		}
	}

	condensed := graph.New(len(components))
	for v := range tables {
		g.Visit(v, func(w int, _ int64) (skip bool) {
			if componentOf[v] != componentOf[w] {
				condensed.Add(componentOf[v], componentOf[w])
			}
			return
		})
	}

	order, _ := graph.TopSort(graph.Sort(condensed))

	plan := &Plan{ForeignKeys: fks}
	for _, c := range order {
		members := components[c]
		if len(members) > 1 {
			plan.Cycles = append(plan.Cycles, lo.Map(members, func(v int, _ int) string {
				return tables[v].QualifiedTableName()
			}))
		}
		for _, v := range members {
			plan.LoadOrder = append(plan.LoadOrder, tables[v])
		}
	}
	plan.WipeOrder = lo.Reverse(append([]models.TableConfiguration(nil), plan.LoadOrder...))
	return plan
}

// Describe renders the plan as one line per table
func (p *Plan) Describe() []string {
	cyclic := make(map[string]bool)
	for _, cycle := range p.Cycles {
		for _, table := range cycle {
			cyclic[table] = true
		}
	}

	lines := make([]string, 0, len(p.LoadOrder))
	for i, tc := range p.LoadOrder {
		refs := lo.FilterMap(p.ForeignKeys, func(fk models.ForeignKey, _ int) (string, bool) {
			return fk.ReferencedTable, fk.Table == tc.QualifiedTableName()
		})
		line := fmt.Sprintf("%d. %s", i+1, tc.QualifiedTableName())
		if refs = lo.Uniq(refs); len(refs) > 0 {
			line += " -> " + strings.Join(refs, ", ")
		}
		if cyclic[tc.QualifiedTableName()] {
			line += " (circular)"
		}
		lines = append(lines, line)
	}
	return lines
}
