package database

import (
	"context"
	"fmt"

	"github.com/nao1215/domainmap/internal/model"
)

// GroupField is a record column successful crawls can be grouped by.
type GroupField string

const (
	// GroupByASN groups successful records by autonomous system number.
	GroupByASN GroupField = "asn"
	// GroupByCountry groups successful records by country name.
	GroupByCountry GroupField = "country"
)

// GroupCount is the number of successful records sharing one value.
type GroupCount struct {
	Key   string `json:"key"`
	Count int64  `json:"count"`
}

// GroupCount returns the most frequent values of field among successful
// records, most frequent first. Records with no value are not counted.
// A limit of 0 or less returns every group.
func (d *DomainDB) GroupCount(ctx context.Context, field GroupField, limit int) ([]GroupCount, error) {
	// field is interpolated, so only known columns are accepted
	switch field {
	case GroupByASN, GroupByCountry:
	default:
		return nil, fmt.Errorf("unknown group field %q", field)
	}

	query := fmt.Sprintf(`
	SELECT CAST(%[1]s AS TEXT), COUNT(*) AS n
	FROM domains
	WHERE status = ? AND %[1]s IS NOT NULL
	GROUP BY %[1]s
	ORDER BY n DESC, %[1]s ASC
	LIMIT ?
	`, field)

	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}

	rows, err := d.db.QueryContext(ctx, query, model.StatusSuccess.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to group by %s: %w", field, err)
	}
	defer rows.Close()

	groups := make([]GroupCount, 0)
	for rows.Next() {
		var g GroupCount
		if err := rows.Scan(&g.Key, &g.Count); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to group by %s: %w", field, err)
	}

	return groups, nil
}
